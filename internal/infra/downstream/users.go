package downstream

import (
	"context"
	"net/http"
	"time"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/serviceclient"
)

const userResourceName = "user"

type userPayload struct {
	TenantID           string     `json:"tenantId"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Phone              *string    `json:"phone,omitempty"`
	JobTitle           *string    `json:"jobTitle,omitempty"`
	Department         *string    `json:"department,omitempty"`
	Timezone           string     `json:"timezone"`
	Language           string     `json:"language"`
	TermsAcceptedAt    *time.Time `json:"termsAcceptedAt,omitempty"`
	PrivacyAcceptedAt  *time.Time `json:"privacyAcceptedAt,omitempty"`
	MarketingConsent   bool       `json:"marketingConsent"`
	MarketingConsentAt *time.Time `json:"marketingConsentAt,omitempty"`
}

type userResource struct {
	ID                 string            `json:"id"`
	TenantID           string            `json:"tenantId"`
	Username           string            `json:"username"`
	Email              string            `json:"email"`
	FirstName          string            `json:"firstName"`
	LastName           string            `json:"lastName"`
	Phone              *string           `json:"phone,omitempty"`
	JobTitle           *string           `json:"jobTitle,omitempty"`
	Department         *string           `json:"department,omitempty"`
	Timezone           string            `json:"timezone"`
	Language           string            `json:"language"`
	Status             domain.UserStatus `json:"status"`
	TermsAcceptedAt    *time.Time        `json:"termsAcceptedAt,omitempty"`
	PrivacyAcceptedAt  *time.Time        `json:"privacyAcceptedAt,omitempty"`
	MarketingConsent   bool              `json:"marketingConsent"`
	MarketingConsentAt *time.Time        `json:"marketingConsentAt,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

func (r userResource) toDomain() domain.UserProfile {
	return domain.UserProfile{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		Username:           r.Username,
		Email:              r.Email,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Phone:              r.Phone,
		JobTitle:           r.JobTitle,
		Department:         r.Department,
		Timezone:           r.Timezone,
		Language:           r.Language,
		Status:             r.Status,
		TermsAcceptedAt:    r.TermsAcceptedAt,
		PrivacyAcceptedAt:  r.PrivacyAcceptedAt,
		MarketingConsent:   r.MarketingConsent,
		MarketingConsentAt: r.MarketingConsentAt,
		CreatedAt:          r.CreatedAt,
	}
}

// UserClient talks to the user service. When the service is unavailable, creates resolve to a
// structured Unavailable error naming the service instead of a raw transport failure.
type UserClient struct {
	client *serviceclient.Client
	reads  readCache
}

// NewUserClient builds a user client on top of a resilient service client.
func NewUserClient(client *serviceclient.Client, opts Options) *UserClient {
	return &UserClient{client: client, reads: newReadCache(opts)}
}

// ServiceName returns the downstream name reported in errors.
func (c *UserClient) ServiceName() string {
	return c.client.ServiceName()
}

// Create registers a user profile inside an existing tenant.
func (c *UserClient) Create(ctx context.Context, draft domain.UserProfileDraft) (domain.UserProfile, error) {
	var created userResource
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:     "create_user",
		Resource: userResourceName,
		Method:   http.MethodPost,
		Path:     "/users",
		Body: userPayload{
			TenantID:           draft.TenantID,
			Username:           draft.Username,
			Email:              draft.Email,
			FirstName:          draft.FirstName,
			LastName:           draft.LastName,
			Phone:              draft.Phone,
			JobTitle:           draft.JobTitle,
			Department:         draft.Department,
			Timezone:           draft.Timezone,
			Language:           draft.Language,
			TermsAcceptedAt:    draft.TermsAcceptedAt,
			PrivacyAcceptedAt:  draft.PrivacyAcceptedAt,
			MarketingConsent:   draft.MarketingConsent,
			MarketingConsentAt: draft.MarketingConsentAt,
		},
		Result: &created,
	})
	if err != nil {
		return domain.UserProfile{}, err
	}

	c.reads.store(ctx, created, userKeys(created)...)
	return created.toDomain(), nil
}

// GetByID fetches a user profile by id.
func (c *UserClient) GetByID(ctx context.Context, id string) (domain.UserProfile, error) {
	return c.get(ctx, "get_user", "/users/{id}", map[string]string{"id": id}, userIDKey(id))
}

// GetByUsername fetches a user profile by username.
func (c *UserClient) GetByUsername(ctx context.Context, username string) (domain.UserProfile, error) {
	return c.get(ctx, "get_user_by_username", "/users/username/{username}", map[string]string{"username": username}, userUsernameKey(username))
}

// GetByEmail fetches a user profile by email.
func (c *UserClient) GetByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	return c.get(ctx, "get_user_by_email", "/users/email/{email}", map[string]string{"email": email}, userEmailKey(email))
}

func (c *UserClient) get(ctx context.Context, name, path string, params map[string]string, cacheKey string) (domain.UserProfile, error) {
	var found userResource
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:       name,
		Resource:   userResourceName,
		Method:     http.MethodGet,
		Path:       path,
		PathParams: params,
		Result:     &found,
		Read:       true,
	})
	if err != nil {
		var cached userResource
		if c.reads.recover(ctx, err, cacheKey, &cached) {
			return cached.toDomain(), nil
		}
		return domain.UserProfile{}, err
	}

	c.reads.store(ctx, found, userKeys(found)...)
	return found.toDomain(), nil
}

// Delete removes a user profile. A profile that is already gone counts as deleted.
func (c *UserClient) Delete(ctx context.Context, id string) error {
	err := c.client.Invoke(ctx, serviceclient.Operation{
		Name:       "delete_user",
		Resource:   userResourceName,
		Method:     http.MethodDelete,
		Path:       "/users/{id}",
		PathParams: map[string]string{"id": id},
		Idempotent: true,
	})
	if err != nil && !isAuthoritativeNotFound(err) {
		return err
	}

	keys := []string{userIDKey(id)}
	if c.reads.cache != nil {
		var cached userResource
		if found, cacheErr := c.reads.cache.Get(ctx, userIDKey(id), &cached); cacheErr == nil && found {
			keys = userKeys(cached)
		}
	}
	c.reads.evict(ctx, keys...)
	return nil
}

func userKeys(u userResource) []string {
	return []string{userIDKey(u.ID), userUsernameKey(u.Username), userEmailKey(u.Email)}
}

func userIDKey(id string) string {
	return "user:id:" + id
}

func userUsernameKey(username string) string {
	return "user:username:" + username
}

func userEmailKey(email string) string {
	return "user:email:" + email
}

var _ port.UserDirectory = (*UserClient)(nil)
