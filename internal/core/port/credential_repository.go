package port

import (
	"context"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

// CredentialRepository stores the login credential written by the last registration stage.
// Delete is the compensating action for Create.
type CredentialRepository interface {
	Create(ctx context.Context, credential domain.AuthCredential) error
	Delete(ctx context.Context, id string) error
}
