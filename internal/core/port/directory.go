package port

import (
	"context"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

// TenantDirectory is the tenant service as seen by this service.
type TenantDirectory interface {
	ServiceName() string
	Create(ctx context.Context, draft domain.TenantDraft) (domain.Tenant, error)
	GetByID(ctx context.Context, id string) (domain.Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error)
	Delete(ctx context.Context, id string) error
	Suspend(ctx context.Context, id string) error
}

// UserDirectory is the user service as seen by this service.
type UserDirectory interface {
	ServiceName() string
	Create(ctx context.Context, draft domain.UserProfileDraft) (domain.UserProfile, error)
	GetByID(ctx context.Context, id string) (domain.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (domain.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (domain.UserProfile, error)
	Delete(ctx context.Context, id string) error
}
