package domain

import (
	"math/rand"
	"strings"
	"testing"
)

func TestDeriveSubdomain(t *testing.T) {
	tests := []struct {
		name    string
		company string
		want    string
	}{
		{name: "punctuation stripped", company: "Acme, Inc!", want: "acme-inc"},
		{name: "plain", company: "Acme", want: "acme"},
		{name: "whitespace collapsed", company: "  Big   Blue\tWidgets  ", want: "big-blue-widgets"},
		{name: "hyphens trimmed", company: "-Acme-", want: "acme"},
		{name: "non ascii dropped", company: "Café Ünïcode", want: "caf-ncode"},
		{name: "too short padded", company: "A", want: "a-company"},
		{name: "nothing usable", company: "!!!", want: "company--co"},
		{name: "digits kept", company: "3M", want: "3m-company"},
		{name: "truncated", company: strings.Repeat("abcde ", 12), want: "abcde-abcde-abcde-abcde-abcde-abcde-abcde-abcde-ab"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveSubdomain(tc.company)
			if got != tc.want {
				t.Fatalf("DeriveSubdomain(%q) = %q, want %q", tc.company, got, tc.want)
			}
			if !IsValidSubdomain(got) {
				t.Fatalf("DeriveSubdomain(%q) = %q is not a valid subdomain", tc.company, got)
			}
		})
	}
}

func TestDeriveUsername(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{email: "jo@x.com", want: "jo123"},
		{email: "Jane.Doe+crm@example.com", want: "jane.doecrm"},
		{email: "_ops@example.com", want: "user_ops"},
		{email: "@example.com", want: "user"},
		{email: "a@b.c", want: "a123"},
		{email: "no-at-sign", want: "no-at-sign"},
	}

	for _, tc := range tests {
		got := DeriveUsername(tc.email)
		if got != tc.want {
			t.Fatalf("DeriveUsername(%q) = %q, want %q", tc.email, got, tc.want)
		}
		if !IsValidUsername(got) {
			t.Fatalf("DeriveUsername(%q) = %q is not a valid username", tc.email, got)
		}
	}
}

func TestWithNumericSuffix(t *testing.T) {
	if got := WithNumericSuffix("acme", 1); got != "acme" {
		t.Fatalf("attempt 1 must not change the candidate, got %q", got)
	}
	if got := WithNumericSuffix("acme", 2); got != "acme-2" {
		t.Fatalf("expected acme-2, got %q", got)
	}

	long := strings.Repeat("a", 50)
	got := WithNumericSuffix(long, 12)
	if len(got) != 50 || !strings.HasSuffix(got, "-12") {
		t.Fatalf("expected 50 chars ending in -12, got %q (%d)", got, len(got))
	}

	// A cut landing on a separator must not leave a doubled separator before the suffix.
	if got := WithNumericSuffix(strings.Repeat("ab-", 17), 3); !IsValidSubdomain(got) || strings.Contains(got, "--") {
		t.Fatalf("unexpected suffixed candidate %q", got)
	}
}

var identifierAlphabet = []rune("abcXYZ019 -_.,!@#&'\t\néüß漢")

func randomText(r *rand.Rand, maxLen int) string {
	n := r.Intn(maxLen + 1)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteRune(identifierAlphabet[r.Intn(len(identifierAlphabet))])
	}
	return b.String()
}

func TestDerivedIdentifiersAlwaysValid(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		company := randomText(r, 120)
		subdomain := DeriveSubdomain(company)
		if !IsValidSubdomain(subdomain) {
			t.Fatalf("DeriveSubdomain(%q) = %q is invalid", company, subdomain)
		}
		if again := DeriveSubdomain(company); again != subdomain {
			t.Fatalf("DeriveSubdomain(%q) not deterministic: %q vs %q", company, subdomain, again)
		}
		for attempt := 2; attempt <= 5; attempt++ {
			if suffixed := WithNumericSuffix(subdomain, attempt); !IsValidSubdomain(suffixed) {
				t.Fatalf("WithNumericSuffix(%q, %d) = %q is invalid", subdomain, attempt, suffixed)
			}
		}

		email := randomText(r, 80) + "@example.com"
		username := DeriveUsername(email)
		if !IsValidUsername(username) {
			t.Fatalf("DeriveUsername(%q) = %q is invalid", email, username)
		}
		if again := DeriveUsername(email); again != username {
			t.Fatalf("DeriveUsername(%q) not deterministic: %q vs %q", email, username, again)
		}
	}
}
