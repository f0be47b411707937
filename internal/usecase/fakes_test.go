package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/repository"
)

const (
	tenantsServiceName = "tenants-service"
	usersServiceName   = "users-service"
)

// callLog records calls across fakes so tests can assert ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

type fakeTenantDirectory struct {
	mu  sync.Mutex
	log *callLog

	tenants map[string]domain.Tenant // by subdomain
	nextID  int

	// createErrs are returned by successive Create calls before normal behaviour resumes.
	createErrs []error
	// storeOnAmbiguous persists the tenant even when Create reports an ambiguous outcome.
	storeOnAmbiguous bool
	// reshape edits each tenant before it is stored, standing in for server-assigned fields.
	reshape func(*domain.Tenant)

	getErr     error
	deleteErr  error
	suspendErr error

	createCalls  []domain.TenantDraft
	deleteCalls  []string
	suspendCalls []string
}

func newFakeTenantDirectory() *fakeTenantDirectory {
	return &fakeTenantDirectory{tenants: map[string]domain.Tenant{}}
}

func (f *fakeTenantDirectory) ServiceName() string { return tenantsServiceName }

func (f *fakeTenantDirectory) take(draft domain.TenantDraft) domain.Tenant {
	f.nextID++
	tenant := domain.Tenant{
		ID:           fmt.Sprintf("tenant-%d", f.nextID),
		Name:         draft.Name,
		Subdomain:    draft.Subdomain,
		PlanType:     draft.PlanType,
		Status:       domain.TenantStatusActive,
		IsTrial:      draft.IsTrial,
		TrialEndsAt:  draft.TrialEndsAt,
		MaxUsers:     draft.MaxUsers,
		MaxStorageMB: draft.MaxStorageMB,
		ContactEmail: draft.ContactEmail,
		Timezone:     draft.Timezone,
		Language:     draft.Language,
	}
	if f.reshape != nil {
		f.reshape(&tenant)
	}
	f.tenants[draft.Subdomain] = tenant
	return tenant
}

func (f *fakeTenantDirectory) Create(_ context.Context, draft domain.TenantDraft) (domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("tenant.create:" + draft.Subdomain)
	f.createCalls = append(f.createCalls, draft)

	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			if domain.KindOf(err) == domain.ErrorKindAmbiguous && f.storeOnAmbiguous {
				f.take(draft)
			}
			return domain.Tenant{}, err
		}
	}

	if _, taken := f.tenants[draft.Subdomain]; taken {
		return domain.Tenant{}, &domain.ServiceError{
			Kind:     domain.ErrorKindConflict,
			Service:  tenantsServiceName,
			Resource: "tenant",
			Field:    "subdomain",
			Message:  "subdomain already exists",
		}
	}
	return f.take(draft), nil
}

func (f *fakeTenantDirectory) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tenant := range f.tenants {
		if tenant.ID == id {
			return tenant, nil
		}
	}
	return domain.Tenant{}, domain.NewServiceError(domain.ErrorKindNotFound, tenantsServiceName, "tenant", "tenant not found", nil)
}

func (f *fakeTenantDirectory) GetBySubdomain(_ context.Context, subdomain string) (domain.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("tenant.get:" + subdomain)
	if f.getErr != nil {
		return domain.Tenant{}, f.getErr
	}
	if tenant, ok := f.tenants[subdomain]; ok {
		return tenant, nil
	}
	return domain.Tenant{}, domain.NewServiceError(domain.ErrorKindNotFound, tenantsServiceName, "tenant", "tenant not found", nil)
}

func (f *fakeTenantDirectory) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("tenant.delete:" + id)
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for subdomain, tenant := range f.tenants {
		if tenant.ID == id {
			delete(f.tenants, subdomain)
		}
	}
	return nil
}

func (f *fakeTenantDirectory) Suspend(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("tenant.suspend:" + id)
	f.suspendCalls = append(f.suspendCalls, id)
	if f.suspendErr != nil {
		return f.suspendErr
	}
	for subdomain, tenant := range f.tenants {
		if tenant.ID == id {
			tenant.Status = domain.TenantStatusSuspended
			f.tenants[subdomain] = tenant
		}
	}
	return nil
}

func (f *fakeTenantDirectory) subdomains() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.tenants))
	for subdomain := range f.tenants {
		out = append(out, subdomain)
	}
	return out
}

type fakeUserDirectory struct {
	mu  sync.Mutex
	log *callLog

	users  map[string]domain.UserProfile // by username
	nextID int

	createErrs       []error
	storeOnAmbiguous bool
	// stallCreate makes Create hang until ctx is done, like a downstream that never answers.
	stallCreate bool

	getErr    error
	deleteErr error

	createCalls []domain.UserProfileDraft
	deleteCalls []string
}

func newFakeUserDirectory() *fakeUserDirectory {
	return &fakeUserDirectory{users: map[string]domain.UserProfile{}}
}

func (f *fakeUserDirectory) ServiceName() string { return usersServiceName }

func (f *fakeUserDirectory) take(draft domain.UserProfileDraft) domain.UserProfile {
	f.nextID++
	user := domain.UserProfile{
		ID:                fmt.Sprintf("user-%d", f.nextID),
		TenantID:          draft.TenantID,
		Username:          draft.Username,
		Email:             draft.Email,
		FirstName:         draft.FirstName,
		LastName:          draft.LastName,
		Timezone:          draft.Timezone,
		Language:          draft.Language,
		Status:            domain.UserStatusPending,
		TermsAcceptedAt:   draft.TermsAcceptedAt,
		PrivacyAcceptedAt: draft.PrivacyAcceptedAt,
		MarketingConsent:  draft.MarketingConsent,
	}
	f.users[draft.Username] = user
	return user
}

func (f *fakeUserDirectory) Create(ctx context.Context, draft domain.UserProfileDraft) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("user.create:" + draft.Username)
	f.createCalls = append(f.createCalls, draft)

	if f.stallCreate {
		f.mu.Unlock()
		<-ctx.Done()
		f.mu.Lock()
		return domain.UserProfile{}, &domain.ServiceError{
			Kind:     domain.ErrorKindUnavailable,
			Service:  usersServiceName,
			Resource: "user",
			Message:  "user service did not answer before the deadline",
			Reason:   domain.DegradationReasonTimeout,
			Err:      ctx.Err(),
		}
	}

	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			if domain.KindOf(err) == domain.ErrorKindAmbiguous && f.storeOnAmbiguous {
				f.take(draft)
			}
			return domain.UserProfile{}, err
		}
	}

	if _, taken := f.users[draft.Username]; taken {
		return domain.UserProfile{}, &domain.ServiceError{
			Kind: domain.ErrorKindConflict, Service: usersServiceName, Resource: "user",
			Field: "username", Message: "username already exists",
		}
	}
	for _, user := range f.users {
		if user.Email == draft.Email {
			return domain.UserProfile{}, &domain.ServiceError{
				Kind: domain.ErrorKindConflict, Service: usersServiceName, Resource: "user",
				Field: "email", Message: "email already exists",
			}
		}
	}
	return f.take(draft), nil
}

func (f *fakeUserDirectory) GetByID(_ context.Context, id string) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return domain.UserProfile{}, domain.NewServiceError(domain.ErrorKindNotFound, usersServiceName, "user", "user not found", nil)
}

func (f *fakeUserDirectory) GetByUsername(_ context.Context, username string) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("user.get:" + username)
	if f.getErr != nil {
		return domain.UserProfile{}, f.getErr
	}
	if user, ok := f.users[username]; ok {
		return user, nil
	}
	return domain.UserProfile{}, domain.NewServiceError(domain.ErrorKindNotFound, usersServiceName, "user", "user not found", nil)
}

func (f *fakeUserDirectory) GetByEmail(_ context.Context, email string) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.UserProfile{}, domain.NewServiceError(domain.ErrorKindNotFound, usersServiceName, "user", "user not found", nil)
}

func (f *fakeUserDirectory) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("user.delete:" + id)
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for username, user := range f.users {
		if user.ID == id {
			delete(f.users, username)
		}
	}
	return nil
}

type fakeCredentialRepository struct {
	mu  sync.Mutex
	log *callLog

	credentials map[string]domain.AuthCredential
	createErr   error
	deleteErr   error

	deleteCalls []string
}

func newFakeCredentialRepository() *fakeCredentialRepository {
	return &fakeCredentialRepository{credentials: map[string]domain.AuthCredential{}}
}

func (f *fakeCredentialRepository) Create(_ context.Context, credential domain.AuthCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("credential.create:" + credential.Username)
	if f.createErr != nil {
		return f.createErr
	}
	f.credentials[credential.ID] = credential
	return nil
}

func (f *fakeCredentialRepository) get(id string) (domain.AuthCredential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	credential, ok := f.credentials[id]
	return credential, ok
}

func (f *fakeCredentialRepository) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.add("credential.delete:" + id)
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.credentials[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.credentials, id)
	return nil
}

func (f *fakeCredentialRepository) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.credentials)
}

type fakeHasher struct {
	err error
}

func (h fakeHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

func (fakeHasher) Algorithm() string { return "fake" }

type fakeEventPublisher struct {
	mu sync.Mutex

	completed []domain.RegistrationCompletedEvent
	failed    []domain.CompensationFailedEvent
	err       error
}

func (p *fakeEventPublisher) PublishRegistrationCompleted(_ context.Context, event domain.RegistrationCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, event)
	return p.err
}

func (p *fakeEventPublisher) PublishCompensationFailed(_ context.Context, event domain.CompensationFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
	return p.err
}

func unavailable(service, resource string) error {
	return &domain.ServiceError{
		Kind:     domain.ErrorKindUnavailable,
		Service:  service,
		Resource: resource,
		Message:  resource + " service is temporarily unavailable",
		Fallback: true,
		Reason:   domain.DegradationReasonRetriesExhausted,
	}
}

func ambiguous(service, resource string) error {
	return &domain.ServiceError{
		Kind:     domain.ErrorKindAmbiguous,
		Service:  service,
		Resource: resource,
		Message:  "request timed out after it was sent",
		Err:      errors.New("context deadline exceeded"),
	}
}
