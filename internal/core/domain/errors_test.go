package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestServiceErrorMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("create user: %w", &ServiceError{
		Kind:     ErrorKindUnavailable,
		Service:  "users-service",
		Resource: "user",
		Message:  "user service is temporarily unavailable",
	})

	if !errors.Is(err, ErrUnavailable) {
		t.Fatal("expected errors.Is to match ErrUnavailable")
	}
	if errors.Is(err, ErrConflict) {
		t.Fatal("unavailable must not match ErrConflict")
	}
	if KindOf(err) != ErrorKindUnavailable {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}

	svcErr, ok := AsServiceError(err)
	if !ok || svcErr.Service != "users-service" {
		t.Fatalf("AsServiceError = %+v, %v", svcErr, ok)
	}
	if got := svcErr.Error(); got != "users-service: user unavailable: user service is temporarily unavailable" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKindOf(t *testing.T) {
	valErr := &ValidationError{}
	valErr.Add("email", "is required")

	tests := []struct {
		err  error
		want ErrorKind
	}{
		{err: nil, want: ""},
		{err: errors.New("disk full"), want: ErrorKindInternal},
		{err: valErr, want: ErrorKindValidation},
		{err: &StageError{Stage: StageCreatingUser, Err: NewServiceError(ErrorKindConflict, "users-service", "user", "", nil)}, want: ErrorKindConflict},
	}

	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestIsFallback(t *testing.T) {
	degraded := &ServiceError{Kind: ErrorKindNotFound, Fallback: true, Reason: DegradationReasonBreakerOpen}
	if !IsFallback(fmt.Errorf("lookup: %w", degraded)) {
		t.Fatal("expected fallback")
	}
	if IsFallback(&ServiceError{Kind: ErrorKindNotFound}) {
		t.Fatal("authoritative not found is not a fallback")
	}
}

func TestValidationError(t *testing.T) {
	var nilErr *ValidationError
	if nilErr.HasErrors() || nilErr.HasField("email") {
		t.Fatal("nil validation error has no fields")
	}

	valErr := &ValidationError{}
	valErr.Add("acceptTerms", "must be accepted")
	if !valErr.HasField("acceptTerms") || valErr.HasField("email") {
		t.Fatalf("unexpected fields %+v", valErr.Fields)
	}
	if !errors.Is(valErr, ErrValidation) {
		t.Fatal("expected errors.Is to match ErrValidation")
	}
	if got := valErr.Error(); got != "validation failed: acceptTerms: must be accepted" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDegradationPolicy(t *testing.T) {
	lenient := NewDegradationPolicy(ParseDegradationPolicyMode(""))
	if !lenient.AllowsCachedRead(DegradationReasonRetriesExhausted) {
		t.Fatal("default policy must be lenient and serve cached reads")
	}
	if lenient.AllowsCachedRead("") {
		t.Fatal("cached reads require a degradation reason")
	}

	strict := NewDegradationPolicy(ParseDegradationPolicyMode(" STRICT "))
	if strict.AllowsCachedRead(DegradationReasonBreakerOpen) {
		t.Fatal("strict policy must never serve cached reads")
	}
}

func TestTenantBillingConsistency(t *testing.T) {
	end := time.Now().Add(14 * 24 * time.Hour)

	if (Tenant{IsTrial: true}).HasConsistentBilling() {
		t.Fatal("trial tenant without trial end is inconsistent")
	}
	if !(Tenant{IsTrial: true, TrialEndsAt: &end}).HasConsistentBilling() {
		t.Fatal("trial tenant with trial end is consistent")
	}
	if (Tenant{IsTrial: true, TrialEndsAt: &end, SubscriptionExpireAt: &end}).HasConsistentBilling() {
		t.Fatal("trial tenant must not carry a subscription expiry")
	}
	if (Tenant{TrialEndsAt: &end}).HasConsistentBilling() {
		t.Fatal("paid tenant must not carry a trial end")
	}
}
