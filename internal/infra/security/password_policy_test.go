package security

import (
	"errors"
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

func TestPasswordPolicyAcceptsStrongPassword(t *testing.T) {
	password := "C0mplex!Passphrase#2025"
	if strength := zxcvbn.PasswordStrength(password, nil); strength.Score < defaultMinZxcvbnScore {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := NewPasswordPolicy().Validate(password, domain.PasswordContext{}); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestPasswordPolicyViolations(t *testing.T) {
	policy := NewPasswordPolicy()

	tests := []struct {
		password string
		code     string
	}{
		{password: "Short1!", code: ViolationMinLength},
		{password: "lowercasepassword", code: ViolationCharacterClasses},
		{password: "Password123", code: ViolationWeak},
	}

	for _, tc := range tests {
		err := policy.Validate(tc.password, domain.PasswordContext{})
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%q: expected PasswordValidationError, got %v", tc.password, err)
		}
		if vErr.Code != tc.code {
			t.Fatalf("%q: expected %s, got %s", tc.password, tc.code, vErr.Code)
		}
	}
}

func TestPasswordPolicyUsesRegistrationContext(t *testing.T) {
	policy := NewPasswordPolicy()
	ctx := domain.PasswordContext{
		Email:       "Jo.Doe@Example1.com",
		FirstName:   "Jo",
		LastName:    "Doe",
		CompanyName: "Acme Rockets",
	}

	if err := policy.Validate("C0mplex!Passphrase#2025", ctx); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}

	err := policy.Validate("Jo.Doe@Example1.com", ctx)
	var vErr *PasswordValidationError
	if !errors.As(err, &vErr) || vErr.Code != ViolationWeak {
		t.Fatalf("expected weak_password for password equal to email, got %v", err)
	}
}

func TestPasswordPolicyZeroConfigDisablesChecks(t *testing.T) {
	if err := NewPasswordPolicyWithConfig(PasswordPolicyConfig{}).Validate("a", domain.PasswordContext{}); err != nil {
		t.Fatalf("expected no checks, got %v", err)
	}
}

func TestContextInputsSplitsCompanyName(t *testing.T) {
	inputs := contextInputs(domain.PasswordContext{Email: "jo@x.com", CompanyName: "Acme Rockets"})

	want := map[string]bool{"jo@x.com": false, "jo": false, "acme rockets": false, "acme": false, "rockets": false}
	for _, in := range inputs {
		if _, ok := want[in]; ok {
			want[in] = true
		}
	}
	for key, seen := range want {
		if !seen {
			t.Fatalf("expected %q among inputs %v", key, inputs)
		}
	}
}
