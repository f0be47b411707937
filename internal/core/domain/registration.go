package domain

import (
	"strings"
	"time"
)

// RegistrationRequest is the aggregate sign-up input covering the person, the company,
// consents and locale preferences.
type RegistrationRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Username  string

	CompanyName string
	Phone       string
	JobTitle    string
	Department  string

	AcceptTerms      bool
	AcceptPrivacy    bool
	MarketingConsent bool

	Timezone string
	Language string
}

// Normalize trims free-text fields, lowercases natural keys and applies locale defaults.
func (r RegistrationRequest) Normalize(defaultTimezone, defaultLanguage string) RegistrationRequest {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.JobTitle = strings.TrimSpace(r.JobTitle)
	r.Department = strings.TrimSpace(r.Department)
	r.Timezone = strings.TrimSpace(r.Timezone)
	r.Language = strings.ToLower(strings.TrimSpace(r.Language))

	if r.Timezone == "" {
		r.Timezone = defaultTimezone
	}
	if r.Language == "" {
		r.Language = defaultLanguage
	}
	return r
}

// HasExplicitUsername reports whether the caller chose a username instead of relying on derivation.
func (r RegistrationRequest) HasExplicitUsername() bool {
	return strings.TrimSpace(r.Username) != ""
}

// RegistrationStage identifies the saga step a registration attempt reached.
type RegistrationStage string

const (
	StageValidating         RegistrationStage = "validating"
	StageCreatingTenant     RegistrationStage = "creating_tenant"
	StageCreatingUser       RegistrationStage = "creating_user"
	StageCreatingCredential RegistrationStage = "creating_credential"
	StageCompleted          RegistrationStage = "completed"
)

// RegistrationResult is the consolidated outcome of a completed registration.
type RegistrationResult struct {
	UserID                    string
	TenantID                  string
	AuthID                    string
	Username                  string
	Email                     string
	Subdomain                 string
	LoginURL                  string
	DashboardURL              string
	EmailVerificationRequired bool
	NextSteps                 []string
	CompletedAt               time.Time
}

// StageError attaches the failing saga stage to the terminal error of a registration attempt.
type StageError struct {
	Stage RegistrationStage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
