package domain

import "time"

// PlanType enumerates subscription plans offered to tenants.
type PlanType string

const (
	PlanTypeBasic      PlanType = "basic"
	PlanTypeStandard   PlanType = "standard"
	PlanTypePremium    PlanType = "premium"
	PlanTypeEnterprise PlanType = "enterprise"
	PlanTypeTrial      PlanType = "trial"
)

// TenantStatus enumerates tenant lifecycle states.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusPending   TenantStatus = "pending"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// Tenant mirrors the record owned by the tenant service.
type Tenant struct {
	ID                   string
	Name                 string
	Subdomain            string
	PlanType             PlanType
	Status               TenantStatus
	IsTrial              bool
	TrialEndsAt          *time.Time
	SubscriptionExpireAt *time.Time
	MaxUsers             int
	MaxStorageMB         int64
	ContactEmail         string
	Phone                *string
	Timezone             string
	Language             string
	CreatedAt            time.Time
}

// HasConsistentBilling reports whether the trial and subscription fields agree:
// a trial tenant has a trial end and no subscription expiry, a paid tenant the reverse.
func (t Tenant) HasConsistentBilling() bool {
	if t.IsTrial {
		return t.TrialEndsAt != nil && t.SubscriptionExpireAt == nil
	}
	return t.TrialEndsAt == nil
}

// UserStatus enumerates possible user profile states.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusLocked   UserStatus = "locked"
	UserStatusDisabled UserStatus = "disabled"
)

// UserProfile mirrors the record owned by the user service.
type UserProfile struct {
	ID                 string
	TenantID           string
	Username           string
	Email              string
	FirstName          string
	LastName           string
	Phone              *string
	JobTitle           *string
	Department         *string
	Timezone           string
	Language           string
	Status             UserStatus
	TermsAcceptedAt    *time.Time
	PrivacyAcceptedAt  *time.Time
	MarketingConsent   bool
	MarketingConsentAt *time.Time
	CreatedAt          time.Time
}

// AuthCredential is the login record persisted locally by this service.
type AuthCredential struct {
	ID                  string
	TenantID            string
	UserID              string
	Username            string
	Email               string
	PasswordHash        string
	PasswordAlgo        string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	MFAEnabled          bool
	MFASecret           *string
	EmailVerified       bool
	PhoneVerified       bool
	IsActive            bool
	LastPasswordChange  time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PasswordContext provides user inputs the password policy uses to reject guessable passwords.
type PasswordContext struct {
	Username    string
	Email       string
	Phone       *string
	FirstName   string
	LastName    string
	CompanyName string
}

// TenantDraft is the creation payload sent to the tenant service.
type TenantDraft struct {
	Name         string
	Subdomain    string
	PlanType     PlanType
	IsTrial      bool
	TrialEndsAt  *time.Time
	MaxUsers     int
	MaxStorageMB int64
	ContactEmail string
	Phone        *string
	Timezone     string
	Language     string
}

// UserProfileDraft is the creation payload sent to the user service.
type UserProfileDraft struct {
	TenantID           string
	Username           string
	Email              string
	FirstName          string
	LastName           string
	Phone              *string
	JobTitle           *string
	Department         *string
	Timezone           string
	Language           string
	TermsAcceptedAt    *time.Time
	PrivacyAcceptedAt  *time.Time
	MarketingConsent   bool
	MarketingConsentAt *time.Time
}
