package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
)

const (
	defaultMinPasswordLength   = 8
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 2
)

// Violation codes reported by PasswordPolicy.
const (
	ViolationMinLength        = "min_length"
	ViolationCharacterClasses = "character_classes"
	ViolationWeak             = "weak_password"
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordPolicyConfig tunes the strength requirements for new passwords.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	// MinStrengthScore is a zxcvbn score between 0 and 4.
	MinStrengthScore int
}

// PasswordPolicy rejects short, single-class and guessable passwords before any account record exists.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy returns the policy with the service defaults: 8 characters, 3 character classes
// and a zxcvbn score of at least 2.
func NewPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicyWithConfig(PasswordPolicyConfig{
		MinLength:           defaultMinPasswordLength,
		MinCharacterClasses: defaultMinCharacterClasses,
		MinStrengthScore:    defaultMinZxcvbnScore,
	})
}

// NewPasswordPolicyWithConfig builds a policy; zero values disable the corresponding check.
func NewPasswordPolicyWithConfig(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinStrengthScore > 4 {
		cfg.MinStrengthScore = 4
	}
	return &PasswordPolicy{cfg: cfg}
}

// Validate returns the first violation. Registration details are fed to zxcvbn so passwords built
// from them score low.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	if n := len([]rune(password)); n < p.cfg.MinLength {
		return &PasswordValidationError{
			Code:    ViolationMinLength,
			Message: fmt.Sprintf("password must be at least %d characters long", p.cfg.MinLength),
		}
	}

	if characterClasses(password) < p.cfg.MinCharacterClasses {
		return &PasswordValidationError{
			Code:    ViolationCharacterClasses,
			Message: fmt.Sprintf("password must include at least %d of: uppercase, lowercase, digits, symbols", p.cfg.MinCharacterClasses),
		}
	}

	if p.cfg.MinStrengthScore > 0 {
		if result := zxcvbn.PasswordStrength(password, contextInputs(ctx)); result.Score < p.cfg.MinStrengthScore {
			return &PasswordValidationError{
				Code:    ViolationWeak,
				Message: "password is too easy to guess; avoid names, company or email parts",
			}
		}
	}

	return nil
}

func characterClasses(password string) int {
	var upper, lower, digit, symbol int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = 1
		case unicode.IsLower(r):
			lower = 1
		case unicode.IsDigit(r):
			digit = 1
		case unicode.IsSymbol(r), unicode.IsPunct(r), unicode.IsSpace(r):
			symbol = 1
		}
	}
	return upper + lower + digit + symbol
}

func contextInputs(ctx domain.PasswordContext) []string {
	candidates := []string{ctx.Username, ctx.Email, ctx.FirstName, ctx.LastName, ctx.CompanyName}
	if at := strings.LastIndex(ctx.Email, "@"); at > 0 {
		candidates = append(candidates, ctx.Email[:at])
	}
	if ctx.Phone != nil {
		candidates = append(candidates, *ctx.Phone)
	}
	// company names are matched word by word ("Acme Rockets" -> "acme", "rockets")
	candidates = append(candidates, strings.Fields(ctx.CompanyName)...)

	inputs := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if trimmed := strings.ToLower(strings.TrimSpace(candidate)); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}
	return inputs
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
