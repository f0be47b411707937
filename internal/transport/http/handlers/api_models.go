package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/serviceclient"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// FieldErrorResponse describes one invalid request field.
type FieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is returned with 400 when the request is malformed or incomplete.
type ValidationErrorResponse struct {
	Error   string               `json:"error"`
	Message string               `json:"message"`
	Fields  []FieldErrorResponse `json:"fieldErrors"`
	TraceID string               `json:"trace_id,omitempty"`
}

// UnavailableResponse is the uniform body returned when a downstream could not be reached.
type UnavailableResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// RegistrationRequest is the aggregate sign-up payload.
type RegistrationRequest struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Username         string `json:"username,omitempty"`
	CompanyName      string `json:"companyName"`
	Phone            string `json:"phone,omitempty"`
	JobTitle         string `json:"jobTitle,omitempty"`
	Department       string `json:"department,omitempty"`
	AcceptTerms      bool   `json:"acceptTerms"`
	AcceptPrivacy    bool   `json:"acceptPrivacy"`
	MarketingConsent bool   `json:"marketingConsent"`
	Timezone         string `json:"timezone,omitempty"`
	Language         string `json:"language,omitempty"`
}

func (r RegistrationRequest) toDomain() domain.RegistrationRequest {
	return domain.RegistrationRequest{
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		Email:            r.Email,
		Password:         r.Password,
		Username:         r.Username,
		CompanyName:      r.CompanyName,
		Phone:            r.Phone,
		JobTitle:         r.JobTitle,
		Department:       r.Department,
		AcceptTerms:      r.AcceptTerms,
		AcceptPrivacy:    r.AcceptPrivacy,
		MarketingConsent: r.MarketingConsent,
		Timezone:         r.Timezone,
		Language:         r.Language,
	}
}

// RegistrationResponse is returned with 201 once every record of the account exists.
type RegistrationResponse struct {
	UserID                    string   `json:"userId"`
	TenantID                  string   `json:"tenantId"`
	AuthID                    string   `json:"authId"`
	Subdomain                 string   `json:"subdomain"`
	Username                  string   `json:"username"`
	Email                     string   `json:"email"`
	LoginURL                  string   `json:"loginUrl"`
	DashboardURL              string   `json:"dashboardUrl"`
	EmailVerificationRequired bool     `json:"emailVerificationRequired"`
	NextSteps                 []string `json:"nextSteps"`
}

func newRegistrationResponse(res domain.RegistrationResult) RegistrationResponse {
	steps := res.NextSteps
	if steps == nil {
		steps = []string{}
	}
	return RegistrationResponse{
		UserID:                    res.UserID,
		TenantID:                  res.TenantID,
		AuthID:                    res.AuthID,
		Subdomain:                 res.Subdomain,
		Username:                  res.Username,
		Email:                     res.Email,
		LoginURL:                  res.LoginURL,
		DashboardURL:              res.DashboardURL,
		EmailVerificationRequired: res.EmailVerificationRequired,
		NextSteps:                 steps,
	}
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse lists the result of every dependency check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// DownstreamStatusResponse reports breaker state and fallback statistics per downstream.
type DownstreamStatusResponse struct {
	Downstreams []serviceclient.Status `json:"downstreams"`
	CheckedAt   time.Time              `json:"checkedAt"`
}
