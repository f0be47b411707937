package domain

import "time"

// RegistrationCompletedEvent represents the payload for registration.completed messages.
type RegistrationCompletedEvent struct {
	EventID     string
	TenantID    string
	UserID      string
	AuthID      string
	Subdomain   string
	Username    string
	Email       string
	PlanType    PlanType
	CompletedAt time.Time
	Metadata    map[string]any
}

// CompensationFailedEvent represents the payload for registration.compensation_failed messages.
// Consumers use it to reconcile records that a failed registration could not clean up.
type CompensationFailedEvent struct {
	EventID     string
	Resource    string
	ResourceID  string
	TenantID    string
	UserID      string
	Action      string
	FailedStage RegistrationStage
	Cause       string
	Error       string
	OccurredAt  time.Time
	Metadata    map[string]any
}
