package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

// Registrar runs the registration saga. Implemented by usecase.RegistrationService.
type Registrar interface {
	Register(ctx context.Context, req domain.RegistrationRequest) (domain.RegistrationResult, error)
}

// RegistrationHandler exposes the aggregate account registration endpoint.
type RegistrationHandler struct {
	registration Registrar
}

func NewRegistrationHandler(registration Registrar) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r gin.IRoutes, middlewares ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, middlewares...), h.Register)
	r.POST("/register", handlers...)
}

// Register creates the tenant, the user profile and the credential of a new account.
// 201 on success; 400, 409, 503 or 500 otherwise, with compensation already attempted.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		valErr := &domain.ValidationError{}
		valErr.Add("body", "request body must be a valid registration JSON object")
		RespondWithMappedError(c, valErr)
		return
	}

	result, err := h.registration.Register(c.Request.Context(), req.toDomain())
	if err != nil {
		_ = c.Error(err)
		RespondWithMappedError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newRegistrationResponse(result))
}
