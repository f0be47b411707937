package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

const (
	unavailableMessage = "A required service is temporarily unavailable. Please try again later."
	internalMessage    = "registration could not be completed"
)

// RespondWithMappedError writes the single terminal response for err. The kind of the first
// ServiceError in the chain decides the status; anything unclassified is a 500.
func RespondWithMappedError(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	switch domain.KindOf(err) {
	case domain.ErrorKindValidation:
		respondValidation(c, err)
	case domain.ErrorKindConflict:
		resp := NewErrorResponse(c, "conflict")
		if svcErr, ok := domain.AsServiceError(err); ok {
			resp.Field = svcErr.Field
			resp.Message = conflictMessage(svcErr.Field)
		}
		c.JSON(http.StatusConflict, resp)
	case domain.ErrorKindUnavailable:
		resp := UnavailableResponse{
			Error:     "service_unavailable",
			Message:   unavailableMessage,
			Status:    http.StatusServiceUnavailable,
			Timestamp: time.Now().UTC(),
		}
		if svcErr, ok := domain.AsServiceError(err); ok {
			resp.Service = svcErr.Service
		}
		c.JSON(http.StatusServiceUnavailable, resp)
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, internalMessage))
	}
}

func respondValidation(c *gin.Context, err error) {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	resp := ValidationErrorResponse{
		Error:   "validation_failed",
		Message: "request validation failed",
		Fields:  []FieldErrorResponse{},
		TraceID: traceIDStr,
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		for _, f := range valErr.Fields {
			resp.Fields = append(resp.Fields, FieldErrorResponse{Field: f.Field, Message: f.Message})
		}
	}

	c.JSON(http.StatusBadRequest, resp)
}

func conflictMessage(field string) string {
	switch field {
	case "subdomain":
		return "company subdomain is already taken"
	case "username":
		return "username already registered"
	case "email":
		return "email already registered"
	default:
		return "resource already exists"
	}
}
