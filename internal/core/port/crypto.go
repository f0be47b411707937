package port

import "github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// PasswordHasher hashes secrets with the algorithm recorded next to each credential.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Algorithm() string
}
