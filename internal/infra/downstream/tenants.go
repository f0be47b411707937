package downstream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/serviceclient"
)

const tenantResourceName = "tenant"

type tenantPayload struct {
	Name         string          `json:"name"`
	Subdomain    string          `json:"subdomain"`
	PlanType     domain.PlanType `json:"planType"`
	IsTrial      bool            `json:"isTrial"`
	TrialEndsAt  *time.Time      `json:"trialEndsAt,omitempty"`
	MaxUsers     int             `json:"maxUsers"`
	MaxStorageMB int64           `json:"maxStorageMb"`
	ContactEmail string          `json:"contactEmail"`
	Phone        *string         `json:"phone,omitempty"`
	Timezone     string          `json:"timezone"`
	Language     string          `json:"language"`
}

type tenantResource struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Subdomain             string              `json:"subdomain"`
	PlanType              domain.PlanType     `json:"planType"`
	Status                domain.TenantStatus `json:"status"`
	IsTrial               bool                `json:"isTrial"`
	TrialEndsAt           *time.Time          `json:"trialEndsAt,omitempty"`
	SubscriptionExpiresAt *time.Time          `json:"subscriptionExpiresAt,omitempty"`
	MaxUsers              int                 `json:"maxUsers"`
	MaxStorageMB          int64               `json:"maxStorageMb"`
	ContactEmail          string              `json:"contactEmail"`
	Phone                 *string             `json:"phone,omitempty"`
	Timezone              string              `json:"timezone"`
	Language              string              `json:"language"`
	CreatedAt             time.Time           `json:"createdAt"`
}

func (r tenantResource) toDomain() domain.Tenant {
	return domain.Tenant{
		ID:                   r.ID,
		Name:                 r.Name,
		Subdomain:            r.Subdomain,
		PlanType:             r.PlanType,
		Status:               r.Status,
		IsTrial:              r.IsTrial,
		TrialEndsAt:          r.TrialEndsAt,
		SubscriptionExpireAt: r.SubscriptionExpiresAt,
		MaxUsers:             r.MaxUsers,
		MaxStorageMB:         r.MaxStorageMB,
		ContactEmail:         r.ContactEmail,
		Phone:                r.Phone,
		Timezone:             r.Timezone,
		Language:             r.Language,
		CreatedAt:            r.CreatedAt,
	}
}

type tenantStatusPayload struct {
	Status domain.TenantStatus `json:"status"`
}

// TenantClient talks to the tenant service. Creates are attempted once so a transient timeout
// never produces a duplicate tenant; lookups and deletes are retried.
type TenantClient struct {
	client *serviceclient.Client
	reads  readCache
}

// NewTenantClient builds a tenant client on top of a resilient service client.
func NewTenantClient(client *serviceclient.Client, opts Options) *TenantClient {
	return &TenantClient{client: client, reads: newReadCache(opts)}
}

// ServiceName returns the downstream name reported in errors.
func (c *TenantClient) ServiceName() string {
	return c.client.ServiceName()
}

// Create registers a new tenant.
func (c *TenantClient) Create(ctx context.Context, draft domain.TenantDraft) (domain.Tenant, error) {
	var created tenantResource
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:     "create_tenant",
		Resource: tenantResourceName,
		Method:   http.MethodPost,
		Path:     "/tenants",
		Body: tenantPayload{
			Name:         draft.Name,
			Subdomain:    draft.Subdomain,
			PlanType:     draft.PlanType,
			IsTrial:      draft.IsTrial,
			TrialEndsAt:  draft.TrialEndsAt,
			MaxUsers:     draft.MaxUsers,
			MaxStorageMB: draft.MaxStorageMB,
			ContactEmail: draft.ContactEmail,
			Phone:        draft.Phone,
			Timezone:     draft.Timezone,
			Language:     draft.Language,
		},
		Result: &created,
	})
	if err != nil {
		return domain.Tenant{}, err
	}

	c.reads.store(ctx, created, tenantIDKey(created.ID), tenantSubdomainKey(created.Subdomain))
	return created.toDomain(), nil
}

// GetByID fetches a tenant by its server-assigned id.
func (c *TenantClient) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return c.get(ctx, "get_tenant", "/tenants/{id}", map[string]string{"id": id}, tenantIDKey(id))
}

// GetBySubdomain fetches a tenant by its natural key.
func (c *TenantClient) GetBySubdomain(ctx context.Context, subdomain string) (domain.Tenant, error) {
	return c.get(ctx, "get_tenant_by_subdomain", "/tenants/subdomain/{subdomain}", map[string]string{"subdomain": subdomain}, tenantSubdomainKey(subdomain))
}

func (c *TenantClient) get(ctx context.Context, name, path string, params map[string]string, cacheKey string) (domain.Tenant, error) {
	var found tenantResource
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:       name,
		Resource:   tenantResourceName,
		Method:     http.MethodGet,
		Path:       path,
		PathParams: params,
		Result:     &found,
		Read:       true,
	})
	if err != nil {
		var cached tenantResource
		if c.reads.recover(ctx, err, cacheKey, &cached) {
			return cached.toDomain(), nil
		}
		return domain.Tenant{}, err
	}

	c.reads.store(ctx, found, tenantIDKey(found.ID), tenantSubdomainKey(found.Subdomain))
	return found.toDomain(), nil
}

// Delete removes a tenant. A tenant that is already gone counts as deleted.
func (c *TenantClient) Delete(ctx context.Context, id string) error {
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:       "delete_tenant",
		Resource:   tenantResourceName,
		Method:     http.MethodDelete,
		Path:       "/tenants/{id}",
		PathParams: map[string]string{"id": id},
		Idempotent: true,
	})
	if err != nil && !isAuthoritativeNotFound(err) {
		return err
	}

	c.evict(ctx, id)
	return nil
}

// Suspend moves a tenant to the suspended state.
func (c *TenantClient) Suspend(ctx context.Context, id string) error {
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:       "suspend_tenant",
		Resource:   tenantResourceName,
		Method:     http.MethodPatch,
		Path:       "/tenants/{id}/status",
		PathParams: map[string]string{"id": id},
		Body:       tenantStatusPayload{Status: domain.TenantStatusSuspended},
		Idempotent: true,
	})
	if err != nil {
		return err
	}

	c.evict(ctx, id)
	return nil
}

func (c *TenantClient) evict(ctx context.Context, id string) {
	keys := []string{tenantIDKey(id)}
	if c.reads.cache != nil {
		var cached tenantResource
		if found, err := c.reads.cache.Get(ctx, tenantIDKey(id), &cached); err == nil && found {
			keys = append(keys, tenantSubdomainKey(cached.Subdomain))
		}
	}
	c.reads.evict(ctx, keys...)
}

func tenantIDKey(id string) string {
	return "tenant:id:" + id
}

func tenantSubdomainKey(subdomain string) string {
	return "tenant:subdomain:" + subdomain
}

// isAuthoritativeNotFound reports a real 404, as opposed to a degraded lookup.
func isAuthoritativeNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound) && !domain.IsFallback(err)
}

var _ port.TenantDirectory = (*TenantClient)(nil)
