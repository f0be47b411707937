package domain

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	maxIdentifierLength = 50
	minIdentifierLength = 3

	subdomainPrefix  = "company-"
	subdomainSuffix  = "-co"
	subdomainPadding = "-company"
	usernamePrefix   = "user"
	usernamePadding  = "123"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	subdomainShape = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	usernameShape  = regexp.MustCompile(`^[a-z0-9._-]+$`)
)

// DeriveSubdomain turns a company name into a subdomain candidate. The result is 3-50 characters,
// starts and ends with [a-z0-9] and only contains [a-z0-9-].
func DeriveSubdomain(companyName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(companyName) {
		switch {
		case isLowerAlnum(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	candidate := whitespaceRun.ReplaceAllString(b.String(), "-")
	candidate = strings.Trim(candidate, "-")

	if candidate == "" || !isLowerAlnum(rune(candidate[0])) {
		candidate = subdomainPrefix + candidate
	}
	if !isLowerAlnum(rune(candidate[len(candidate)-1])) {
		candidate += subdomainSuffix
	}

	candidate = truncate(candidate, maxIdentifierLength)
	candidate = strings.TrimRight(candidate, "-")

	if len(candidate) < minIdentifierLength {
		candidate += subdomainPadding
	}
	return candidate
}

// DeriveUsername turns the local part of an email address into a username candidate. The result is
// 3-50 characters of [a-z0-9._-].
func DeriveUsername(email string) string {
	local := email
	if at := strings.LastIndex(local, "@"); at >= 0 {
		local = local[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if isLowerAlnum(r) || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}

	candidate := b.String()
	if candidate == "" || !isLowerAlnum(rune(candidate[0])) {
		candidate = usernamePrefix + candidate
	}

	candidate = truncate(candidate, maxIdentifierLength)

	if len(candidate) < minIdentifierLength {
		candidate += usernamePadding
	}
	return candidate
}

// WithNumericSuffix disambiguates a taken identifier: attempt 1 returns the candidate unchanged,
// attempt n returns "<candidate>-n", shortening the candidate so the result stays within 50 characters.
func WithNumericSuffix(candidate string, attempt int) string {
	if attempt <= 1 {
		return candidate
	}

	suffix := "-" + strconv.Itoa(attempt)
	base := truncate(candidate, maxIdentifierLength-len(suffix))
	base = strings.TrimRight(base, "-._")
	if base == "" {
		base = usernamePrefix
	}
	return base + suffix
}

// IsValidSubdomain reports whether s satisfies the subdomain shape and length constraints.
func IsValidSubdomain(s string) bool {
	return len(s) >= minIdentifierLength && len(s) <= maxIdentifierLength && subdomainShape.MatchString(s)
}

// IsValidUsername reports whether s satisfies the username shape and length constraints.
func IsValidUsername(s string) bool {
	return len(s) >= minIdentifierLength && len(s) <= maxIdentifierLength && usernameShape.MatchString(s)
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// truncate cuts s to at most n bytes; callers only pass ASCII.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
