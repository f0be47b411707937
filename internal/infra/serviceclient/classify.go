package serviceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

// errorBody is the structured error payload returned by sibling services.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// failure is the classified outcome of a single downstream exchange.
type failure struct {
	kind    domain.ErrorKind
	reason  domain.DegradationReason
	field   string
	message string
	status  int
	cause   error
}

func (f *failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s (%s): %v", f.kind, f.reason, f.cause)
	}
	if f.status != 0 {
		return fmt.Sprintf("%s: status %d: %s", f.kind, f.status, f.message)
	}
	return string(f.kind)
}

func (f *failure) Unwrap() error {
	return f.cause
}

// countsAgainstBreaker reports whether the failure says something about downstream health.
func (f *failure) countsAgainstBreaker() bool {
	return f != nil && (f.kind == domain.ErrorKindUnavailable || f.kind == domain.ErrorKindAmbiguous)
}

// classifyTransportError maps an error that prevented a response from arriving. A write that may have
// reached the server before failing is ambiguous; one that never left the client is unavailable.
func classifyTransportError(err error, read bool) *failure {
	if isDialError(err) {
		return &failure{kind: domain.ErrorKindUnavailable, reason: domain.DegradationReasonConnectionFailed, cause: err}
	}

	reason := domain.DegradationReasonConnectionFailed
	if isTimeout(err) {
		reason = domain.DegradationReasonTimeout
	}

	if read || errors.Is(err, context.Canceled) {
		return &failure{kind: domain.ErrorKindUnavailable, reason: reason, cause: err}
	}
	return &failure{kind: domain.ErrorKindAmbiguous, reason: reason, cause: err}
}

// classifyStatus maps a non-2xx response.
func classifyStatus(status int, body []byte, read bool) *failure {
	parsed := parseErrorBody(body)
	message := parsed.Message
	if message == "" {
		message = parsed.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	f := &failure{status: status, message: message}
	switch {
	case status == http.StatusConflict:
		f.kind = domain.ErrorKindConflict
		f.field = conflictField(parsed)
	case status == http.StatusNotFound:
		f.kind = domain.ErrorKindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		f.kind = domain.ErrorKindValidation
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable:
		f.kind = domain.ErrorKindUnavailable
		f.reason = domain.DegradationReasonServerError
	case status >= http.StatusInternalServerError:
		// 500 and 504 can arrive after the write was applied.
		f.kind = domain.ErrorKindAmbiguous
		if read {
			f.kind = domain.ErrorKindUnavailable
		}
		f.reason = domain.DegradationReasonServerError
		if status == http.StatusGatewayTimeout {
			f.reason = domain.DegradationReasonTimeout
		}
	default:
		f.kind = domain.ErrorKindInternal
	}
	return f
}

// retryable decides whether an idempotent operation should be attempted again.
func retryable(status int, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func parseErrorBody(body []byte) errorBody {
	var parsed errorBody
	if len(body) == 0 {
		return parsed
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errorBody{Message: strings.TrimSpace(string(body))}
	}
	return parsed
}

// conflictField names the natural key behind a 409, preferring the explicit field over message text.
func conflictField(body errorBody) string {
	if body.Field != "" {
		return strings.ToLower(body.Field)
	}
	text := strings.ToLower(body.Message + " " + body.Error)
	for _, candidate := range []string{"subdomain", "username", "email"} {
		if strings.Contains(text, candidate) {
			return candidate
		}
	}
	return ""
}

func isDialError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
