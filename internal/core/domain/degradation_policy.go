package domain

import "strings"

// DegradationReason records why a downstream call ended in a fallback instead of a response.
type DegradationReason string

const (
	DegradationReasonRetriesExhausted DegradationReason = "retries_exhausted"
	DegradationReasonBreakerOpen      DegradationReason = "breaker_open"
	DegradationReasonTimeout          DegradationReason = "timeout"
	DegradationReasonConnectionFailed DegradationReason = "connection_failed"
	DegradationReasonServerError      DegradationReason = "server_error"
)

// DegradationPolicyMode is the configured stance of a downstream client towards stale data.
type DegradationPolicyMode string

const (
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	DegradationPolicyModeStrict  DegradationPolicyMode = "strict"
)

// ParseDegradationPolicyMode maps configuration text to a mode. Anything but "strict" is lenient.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	if strings.EqualFold(strings.TrimSpace(value), string(DegradationPolicyModeStrict)) {
		return DegradationPolicyModeStrict
	}
	return DegradationPolicyModeLenient
}

// DegradationPolicy decides whether a cached snapshot may answer a read whose downstream call fell back.
// Writes never consult it.
type DegradationPolicy struct {
	strict bool
}

func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	return DegradationPolicy{strict: mode == DegradationPolicyModeStrict}
}

// AllowsCachedRead is false for strict policies and for errors that carry no degradation reason.
func (p DegradationPolicy) AllowsCachedRead(reason DegradationReason) bool {
	return !p.strict && reason != ""
}
