package usecase

import (
	"errors"
	"testing"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

func TestRequestValidator(t *testing.T) {
	validator := NewRequestValidator(nil)

	base := validRegistrationRequest().Normalize("UTC", "en")

	tests := []struct {
		name   string
		mutate func(*domain.RegistrationRequest)
		fields []string
	}{
		{name: "valid", mutate: func(*domain.RegistrationRequest) {}},
		{name: "missing names", mutate: func(r *domain.RegistrationRequest) { r.FirstName, r.LastName = "", "" }, fields: []string{"firstName", "lastName"}},
		{name: "bad email", mutate: func(r *domain.RegistrationRequest) { r.Email = "jo.x.com" }, fields: []string{"email"}},
		{name: "missing company", mutate: func(r *domain.RegistrationRequest) { r.CompanyName = "" }, fields: []string{"companyName"}},
		{name: "privacy not accepted", mutate: func(r *domain.RegistrationRequest) { r.AcceptPrivacy = false }, fields: []string{"acceptPrivacy"}},
		{name: "username shape", mutate: func(r *domain.RegistrationRequest) { r.Username = "jo doe!" }, fields: []string{"username"}},
		{name: "username too short", mutate: func(r *domain.RegistrationRequest) { r.Username = "jo" }, fields: []string{"username"}},
		{name: "phone", mutate: func(r *domain.RegistrationRequest) { r.Phone = "call me" }, fields: []string{"phone"}},
		{name: "phone ok", mutate: func(r *domain.RegistrationRequest) { r.Phone = "+1 (555) 123-4567" }},
		{name: "timezone", mutate: func(r *domain.RegistrationRequest) { r.Timezone = "Nowhere/City" }, fields: []string{"timezone"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)

			err := validator.Validate(req)
			if len(tc.fields) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var valErr *domain.ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(valErr.Fields) != len(tc.fields) {
				t.Fatalf("expected fields %v, got %+v", tc.fields, valErr.Fields)
			}
			for _, field := range tc.fields {
				if !valErr.HasField(field) {
					t.Fatalf("expected %s in %+v", field, valErr.Fields)
				}
			}
		})
	}
}
