package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
)

// registrationRules mirrors domain.RegistrationRequest with the field constraints checked before any
// remote call is made. JSON names are used in the reported field errors.
type registrationRules struct {
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email,max=255"`
	Password      string `json:"password" validate:"required,max=128"`
	Username      string `json:"username" validate:"omitempty,min=3,max=50,username"`
	CompanyName   string `json:"companyName" validate:"required,max=255"`
	Phone         string `json:"phone" validate:"omitempty,max=20,phone"`
	JobTitle      string `json:"jobTitle" validate:"max=100"`
	Department    string `json:"department" validate:"max=100"`
	AcceptTerms   bool   `json:"acceptTerms" validate:"accepted"`
	AcceptPrivacy bool   `json:"acceptPrivacy" validate:"accepted"`
	Timezone      string `json:"timezone" validate:"required,timezone"`
	Language      string `json:"language" validate:"required,min=2,max=10"`
}

func newRegistrationRules(req domain.RegistrationRequest) registrationRules {
	return registrationRules{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Password:      req.Password,
		Username:      req.Username,
		CompanyName:   req.CompanyName,
		Phone:         req.Phone,
		JobTitle:      req.JobTitle,
		Department:    req.Department,
		AcceptTerms:   req.AcceptTerms,
		AcceptPrivacy: req.AcceptPrivacy,
		Timezone:      req.Timezone,
		Language:      req.Language,
	}
}

// RequestValidator checks a normalized registration request, including password strength.
type RequestValidator struct {
	validate *validator.Validate
	policy   port.PasswordPolicyValidator
}

// NewRequestValidator builds a validator. A nil policy skips password strength checks.
func NewRequestValidator(policy port.PasswordPolicyValidator) *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("accepted", func(fl validator.FieldLevel) bool {
		return fl.Field().Bool()
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return domain.IsValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return isPhoneNumber(fl.Field().String())
	})
	_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})

	return &RequestValidator{validate: v, policy: policy}
}

// Validate returns a *domain.ValidationError listing every invalid field, or nil.
func (rv *RequestValidator) Validate(req domain.RegistrationRequest) error {
	problems := &domain.ValidationError{}

	if err := rv.validate.Struct(newRegistrationRules(req)); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate registration request: %w", err)
		}
		for _, fe := range fieldErrs {
			problems.Add(fe.Field(), fieldMessage(fe))
		}
	}

	if rv.policy != nil && req.Password != "" && !problems.HasField("password") {
		var phone *string
		if req.Phone != "" {
			phone = &req.Phone
		}
		err := rv.policy.Validate(req.Password, domain.PasswordContext{
			Username:    req.Username,
			Email:       req.Email,
			Phone:       phone,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			CompanyName: req.CompanyName,
		})
		if err != nil {
			problems.Add("password", err.Error())
		}
	}

	if problems.HasErrors() {
		return problems
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "accepted":
		return "must be accepted"
	case "username":
		return "may only contain lowercase letters, digits, '.', '_' and '-'"
	case "phone":
		return "must be a valid phone number"
	case "timezone":
		return "must be a valid IANA time zone"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// isPhoneNumber accepts an optional leading '+' followed by 7-15 digits, allowing spaces, dashes and
// parentheses as separators.
func isPhoneNumber(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
