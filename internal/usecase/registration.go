package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/telemetry"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/repository"
)

const (
	tracerName = "github.com/Mukeshmehta2041/crm-micro-sub001/internal/usecase"

	defaultMaxSubdomainAttempts = 5
	defaultMaxUsernameAttempts  = 5
	defaultTrialPeriod          = 14 * 24 * time.Hour
	defaultSagaTimeout          = 3 * time.Minute

	credentialResource = "credential"
)

// RegistrationService runs the sign-up saga: tenant, then user profile, then the local credential.
// Any failure after a remote record exists is compensated before the error is returned.
type RegistrationService struct {
	cfg         config.RegistrationSettings
	tenants     port.TenantDirectory
	users       port.UserDirectory
	credentials port.CredentialRepository
	hasher      port.PasswordHasher
	validator   *RequestValidator
	compensator *Compensator
	events      port.EventPublisher
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewRegistrationService constructs the orchestrator. The compensator must wrap the same directories.
func NewRegistrationService(
	cfg config.RegistrationSettings,
	tenants port.TenantDirectory,
	users port.UserDirectory,
	credentials port.CredentialRepository,
	hasher port.PasswordHasher,
	validator *RequestValidator,
	compensator *Compensator,
	log *zap.Logger,
) *RegistrationService {
	if cfg.MaxSubdomainAttempts <= 0 {
		cfg.MaxSubdomainAttempts = defaultMaxSubdomainAttempts
	}
	if cfg.MaxUsernameAttempts <= 0 {
		cfg.MaxUsernameAttempts = defaultMaxUsernameAttempts
	}
	if cfg.TrialPeriod <= 0 {
		cfg.TrialPeriod = defaultTrialPeriod
	}
	if cfg.SagaTimeout <= 0 {
		cfg.SagaTimeout = defaultSagaTimeout
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if validator == nil {
		validator = NewRequestValidator(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if compensator == nil {
		compensator = NewCompensator(tenants, users, credentials, log)
	}

	return &RegistrationService{
		cfg:         cfg,
		tenants:     tenants,
		users:       users,
		credentials: credentials,
		hasher:      hasher,
		validator:   validator,
		compensator: compensator,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
}

// SagaTimeout bounds the forward steps of one Register call.
func (s *RegistrationService) SagaTimeout() time.Duration {
	return s.cfg.SagaTimeout
}

// Budget is the longest Register can run: the saga deadline followed by a full compensation run.
func (s *RegistrationService) Budget() time.Duration {
	return s.cfg.SagaTimeout + s.compensator.Timeout()
}

// WithEvents publishes registration.completed for every successful registration.
func (s *RegistrationService) WithEvents(events port.EventPublisher) *RegistrationService {
	s.events = events
	return s
}

// WithMetrics counts registration outcomes per stage.
func (s *RegistrationService) WithMetrics(metrics *telemetry.Metrics) *RegistrationService {
	s.metrics = metrics
	return s
}

// WithClock overrides the time source.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	if now != nil {
		s.now = now
	}
	return s
}

// saga tracks what one registration attempt has created so far.
type saga struct {
	stage      domain.RegistrationStage
	tenant     *domain.Tenant
	user       *domain.UserProfile
	credential *domain.AuthCredential
}

func (sg *saga) compensation(cause error) Compensation {
	comp := Compensation{FailedStage: sg.stage, Cause: cause}
	if sg.tenant != nil {
		comp.TenantID = sg.tenant.ID
	}
	if sg.user != nil {
		comp.UserID = sg.user.ID
	}
	if sg.credential != nil {
		comp.CredentialID = sg.credential.ID
	}
	return comp
}

func (sg *saga) createdAnything() bool {
	return sg.tenant != nil || sg.user != nil || sg.credential != nil
}

// Register validates req and creates the tenant, user profile and credential it describes. The returned
// error is a *domain.StageError wrapping a *domain.ValidationError or *domain.ServiceError. Cancelling
// ctx does not interrupt the saga; it runs to a terminal state, compensation included. Only the saga
// timeout cuts it short, and a step cut off that way fails as unavailable.
func (s *RegistrationService) Register(ctx context.Context, req domain.RegistrationRequest) (domain.RegistrationResult, error) {
	// detached from the caller, bounded by the saga deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SagaTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "registration.register")
	defer span.End()

	log := s.log(ctx)
	sg := &saga{stage: domain.StageValidating}

	req = req.Normalize(s.cfg.DefaultTimezone, s.cfg.DefaultLanguage)
	if err := s.validator.Validate(req); err != nil {
		return domain.RegistrationResult{}, s.fail(ctx, span, sg, err)
	}

	log.Info("registration started",
		zap.String("email", logger.MaskEmail(req.Email)),
		zap.String("company", req.CompanyName),
	)

	sg.stage = domain.StageCreatingTenant
	tenant, err := s.createTenant(ctx, req)
	if err != nil {
		return domain.RegistrationResult{}, s.fail(ctx, span, sg, err)
	}
	sg.tenant = &tenant
	log.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("subdomain", tenant.Subdomain))

	sg.stage = domain.StageCreatingUser
	user, err := s.createUser(ctx, req, tenant)
	if err != nil {
		return domain.RegistrationResult{}, s.fail(ctx, span, sg, err)
	}
	sg.user = &user
	log.Info("user profile created", zap.String("tenant_id", tenant.ID), zap.String("user_id", user.ID))

	sg.stage = domain.StageCreatingCredential
	credential, err := s.createCredential(ctx, req, tenant, user)
	if err != nil {
		return domain.RegistrationResult{}, s.fail(ctx, span, sg, err)
	}
	sg.credential = &credential

	sg.stage = domain.StageCompleted
	result := s.assembleResult(tenant, user, credential)

	s.metrics.ObserveOutcome("completed", string(domain.StageCompleted))
	span.SetAttributes(
		attribute.String("registration.tenant_id", tenant.ID),
		attribute.String("registration.user_id", user.ID),
		attribute.String("registration.subdomain", tenant.Subdomain),
	)
	log.Info("registration completed",
		zap.String("tenant_id", tenant.ID),
		zap.String("user_id", user.ID),
		zap.String("auth_id", credential.ID),
		zap.String("subdomain", tenant.Subdomain),
	)

	s.publishCompleted(ctx, tenant, user, credential, result.CompletedAt)
	return result, nil
}

// fail compensates whatever the saga created and returns the terminal error tagged with its stage.
func (s *RegistrationService) fail(ctx context.Context, span trace.Span, sg *saga, err error) error {
	kind := domain.KindOf(err)

	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	span.SetAttributes(attribute.String("registration.failed_stage", string(sg.stage)))
	s.metrics.ObserveOutcome(string(kind), string(sg.stage))

	log := s.log(ctx).With(zap.String("stage", string(sg.stage)), zap.String("kind", string(kind)))
	if kind == domain.ErrorKindValidation {
		log.Info("registration rejected", zap.Error(err))
	} else {
		log.Warn("registration failed", zap.Error(err))
	}

	if sg.createdAnything() {
		report := s.compensator.Compensate(ctx, sg.compensation(err))
		if !report.Succeeded() {
			log.Error("registration compensation incomplete")
		}
	}

	return &domain.StageError{Stage: sg.stage, Err: err}
}

// createTenant creates the tenant, retrying with a suffixed subdomain while the candidate is taken.
func (s *RegistrationService) createTenant(ctx context.Context, req domain.RegistrationRequest) (domain.Tenant, error) {
	ctx, span := s.tracer.Start(ctx, "registration.create_tenant")
	defer span.End()

	base := domain.DeriveSubdomain(req.CompanyName)
	trialEndsAt := s.now().UTC().Add(s.cfg.TrialPeriod)

	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	var lastConflict error
	for attempt := 1; attempt <= s.cfg.MaxSubdomainAttempts; attempt++ {
		draft := domain.TenantDraft{
			Name:         req.CompanyName,
			Subdomain:    domain.WithNumericSuffix(base, attempt),
			PlanType:     domain.PlanTypeTrial,
			IsTrial:      true,
			TrialEndsAt:  &trialEndsAt,
			MaxUsers:     s.cfg.DefaultMaxUsers,
			MaxStorageMB: s.cfg.DefaultMaxStorageMB,
			ContactEmail: req.Email,
			Phone:        phone,
			Timezone:     req.Timezone,
			Language:     req.Language,
		}

		tenant, err := s.tenants.Create(ctx, draft)
		if domain.KindOf(err) == domain.ErrorKindAmbiguous {
			tenant, err = s.verifyTenant(ctx, draft, err)
		}
		if err == nil {
			span.SetAttributes(attribute.String("tenant.subdomain", tenant.Subdomain), attribute.Int("tenant.attempts", attempt))
			if !tenant.HasConsistentBilling() {
				// flagged only, billing belongs to the tenant service
				s.log(ctx).Warn("tenant billing fields inconsistent",
					zap.String("tenant_id", tenant.ID),
					zap.Bool("is_trial", tenant.IsTrial),
					zap.Bool("has_trial_end", tenant.TrialEndsAt != nil),
					zap.Bool("has_subscription_expiry", tenant.SubscriptionExpireAt != nil),
				)
				span.AddEvent("tenant.billing_inconsistent")
			}
			return tenant, nil
		}
		if domain.KindOf(err) != domain.ErrorKindConflict {
			return domain.Tenant{}, err
		}

		s.log(ctx).Info("subdomain taken, trying next candidate",
			zap.String("subdomain", draft.Subdomain),
			zap.Int("attempt", attempt),
		)
		lastConflict = err
	}

	return domain.Tenant{}, &domain.ServiceError{
		Kind:     domain.ErrorKindConflict,
		Service:  s.tenants.ServiceName(),
		Resource: "tenant",
		Field:    "subdomain",
		Message:  fmt.Sprintf("subdomain %q and %d alternatives are already taken", base, s.cfg.MaxSubdomainAttempts-1),
		Err:      lastConflict,
	}
}

// verifyTenant resolves an ambiguous create by reading the tenant back by subdomain. A tenant with the
// same name and contact is ours; any other tenant means the subdomain is taken. When the read cannot
// answer, the create is reported as unavailable and left for reconciliation.
func (s *RegistrationService) verifyTenant(ctx context.Context, draft domain.TenantDraft, cause error) (domain.Tenant, error) {
	found, err := s.tenants.GetBySubdomain(ctx, draft.Subdomain)
	switch {
	case err == nil:
		if found.Name == draft.Name && strings.EqualFold(found.ContactEmail, draft.ContactEmail) {
			s.log(ctx).Info("ambiguous tenant create resolved as success", zap.String("tenant_id", found.ID))
			return found, nil
		}
		return domain.Tenant{}, &domain.ServiceError{
			Kind:     domain.ErrorKindConflict,
			Service:  s.tenants.ServiceName(),
			Resource: "tenant",
			Field:    "subdomain",
			Message:  fmt.Sprintf("subdomain %q already exists", draft.Subdomain),
			Err:      cause,
		}
	case domain.KindOf(err) == domain.ErrorKindNotFound && !domain.IsFallback(err):
		return domain.Tenant{}, unavailableAfterAmbiguous(s.tenants.ServiceName(), "tenant", cause)
	default:
		s.compensator.ReportUnresolved(ctx, "tenant", draft.Subdomain, domain.StageCreatingTenant, cause)
		return domain.Tenant{}, unavailableAfterAmbiguous(s.tenants.ServiceName(), "tenant", errors.Join(cause, err))
	}
}

// createUser creates the user profile. Derived usernames are retried with a numeric suffix on a username
// conflict; explicit usernames and email conflicts are terminal.
func (s *RegistrationService) createUser(ctx context.Context, req domain.RegistrationRequest, tenant domain.Tenant) (domain.UserProfile, error) {
	ctx, span := s.tracer.Start(ctx, "registration.create_user")
	defer span.End()

	explicit := req.HasExplicitUsername()
	base := req.Username
	attempts := 1
	if !explicit {
		base = domain.DeriveUsername(req.Email)
		attempts = s.cfg.MaxUsernameAttempts
	}

	now := s.now().UTC()
	draft := domain.UserProfileDraft{
		TenantID:          tenant.ID,
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Phone:             optional(req.Phone),
		JobTitle:          optional(req.JobTitle),
		Department:        optional(req.Department),
		Timezone:          req.Timezone,
		Language:          req.Language,
		TermsAcceptedAt:   &now,
		PrivacyAcceptedAt: &now,
		MarketingConsent:  req.MarketingConsent,
	}
	if req.MarketingConsent {
		draft.MarketingConsentAt = &now
	}

	var lastConflict error
	for attempt := 1; attempt <= attempts; attempt++ {
		draft.Username = domain.WithNumericSuffix(base, attempt)

		user, err := s.users.Create(ctx, draft)
		if domain.KindOf(err) == domain.ErrorKindAmbiguous {
			user, err = s.verifyUser(ctx, draft, err)
		}
		if err == nil {
			span.SetAttributes(attribute.String("user.username", user.Username), attribute.Int("user.attempts", attempt))
			return user, nil
		}
		if domain.KindOf(err) != domain.ErrorKindConflict || conflictField(err) != "username" || explicit {
			return domain.UserProfile{}, err
		}

		s.log(ctx).Info("username taken, trying next candidate",
			zap.String("username", draft.Username),
			zap.Int("attempt", attempt),
		)
		lastConflict = err
	}

	return domain.UserProfile{}, &domain.ServiceError{
		Kind:     domain.ErrorKindConflict,
		Service:  s.users.ServiceName(),
		Resource: "user",
		Field:    "username",
		Message:  fmt.Sprintf("username %q and %d alternatives are already taken", base, attempts-1),
		Err:      lastConflict,
	}
}

// verifyUser resolves an ambiguous create by reading the profile back by username.
func (s *RegistrationService) verifyUser(ctx context.Context, draft domain.UserProfileDraft, cause error) (domain.UserProfile, error) {
	found, err := s.users.GetByUsername(ctx, draft.Username)
	switch {
	case err == nil:
		if found.TenantID == draft.TenantID && strings.EqualFold(found.Email, draft.Email) {
			s.log(ctx).Info("ambiguous user create resolved as success", zap.String("user_id", found.ID))
			return found, nil
		}
		return domain.UserProfile{}, &domain.ServiceError{
			Kind:     domain.ErrorKindConflict,
			Service:  s.users.ServiceName(),
			Resource: "user",
			Field:    "username",
			Message:  fmt.Sprintf("username %q already exists", draft.Username),
			Err:      cause,
		}
	case domain.KindOf(err) == domain.ErrorKindNotFound && !domain.IsFallback(err):
		return domain.UserProfile{}, unavailableAfterAmbiguous(s.users.ServiceName(), "user", cause)
	default:
		s.compensator.ReportUnresolved(ctx, "user", draft.Username, domain.StageCreatingUser, cause)
		return domain.UserProfile{}, unavailableAfterAmbiguous(s.users.ServiceName(), "user", errors.Join(cause, err))
	}
}

// createCredential hashes the password and persists the local login record.
func (s *RegistrationService) createCredential(ctx context.Context, req domain.RegistrationRequest, tenant domain.Tenant, user domain.UserProfile) (domain.AuthCredential, error) {
	ctx, span := s.tracer.Start(ctx, "registration.create_credential")
	defer span.End()

	if s.hasher == nil || s.credentials == nil {
		return domain.AuthCredential{}, domain.NewServiceError(domain.ErrorKindInternal, "", credentialResource, "credential store not configured", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return domain.AuthCredential{}, domain.NewServiceError(domain.ErrorKindInternal, "", credentialResource, "hash password", err)
	}

	now := s.now().UTC()
	credential := domain.AuthCredential{
		ID:                 uuid.NewString(),
		TenantID:           tenant.ID,
		UserID:             user.ID,
		Username:           user.Username,
		Email:              user.Email,
		PasswordHash:       hash,
		PasswordAlgo:       s.hasher.Algorithm(),
		EmailVerified:      !s.cfg.RequireEmailVerification,
		IsActive:           true,
		LastPasswordChange: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.credentials.Create(ctx, credential); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.AuthCredential{}, &domain.ServiceError{
				Kind:     domain.ErrorKindConflict,
				Resource: credentialResource,
				Field:    "email",
				Message:  "an account with this username or email already exists",
				Err:      err,
			}
		}
		return domain.AuthCredential{}, domain.NewServiceError(domain.ErrorKindInternal, "", credentialResource, "persist credential", err)
	}

	return credential, nil
}

func (s *RegistrationService) assembleResult(tenant domain.Tenant, user domain.UserProfile, credential domain.AuthCredential) domain.RegistrationResult {
	baseURL := "https://" + tenant.Subdomain
	if s.cfg.BaseDomain != "" {
		baseURL += "." + s.cfg.BaseDomain
	}
	loginURL := baseURL + "/login"

	nextSteps := make([]string, 0, 4)
	if s.cfg.RequireEmailVerification {
		nextSteps = append(nextSteps, fmt.Sprintf("Verify your email address using the link sent to %s", user.Email))
	}
	nextSteps = append(nextSteps, fmt.Sprintf("Sign in at %s with username %s", loginURL, user.Username))
	nextSteps = append(nextSteps, "Invite your team from the dashboard")
	if tenant.IsTrial && tenant.TrialEndsAt != nil {
		nextSteps = append(nextSteps, fmt.Sprintf("Choose a plan before your trial ends on %s", tenant.TrialEndsAt.UTC().Format("2006-01-02")))
	}

	return domain.RegistrationResult{
		UserID:                    user.ID,
		TenantID:                  tenant.ID,
		AuthID:                    credential.ID,
		Username:                  user.Username,
		Email:                     user.Email,
		Subdomain:                 tenant.Subdomain,
		LoginURL:                  loginURL,
		DashboardURL:              baseURL + "/dashboard",
		EmailVerificationRequired: s.cfg.RequireEmailVerification,
		NextSteps:                 nextSteps,
		CompletedAt:               s.now().UTC(),
	}
}

func (s *RegistrationService) publishCompleted(ctx context.Context, tenant domain.Tenant, user domain.UserProfile, credential domain.AuthCredential, completedAt time.Time) {
	if s.events == nil {
		return
	}

	err := s.events.PublishRegistrationCompleted(ctx, domain.RegistrationCompletedEvent{
		EventID:     uuid.NewString(),
		TenantID:    tenant.ID,
		UserID:      user.ID,
		AuthID:      credential.ID,
		Subdomain:   tenant.Subdomain,
		Username:    user.Username,
		Email:       user.Email,
		PlanType:    tenant.PlanType,
		CompletedAt: completedAt,
	})
	if err != nil {
		s.log(ctx).Error("publish registration completed", zap.Error(err), zap.String("tenant_id", tenant.ID))
	}
}

func (s *RegistrationService) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.logger)
}

func unavailableAfterAmbiguous(service, resource string, cause error) error {
	return &domain.ServiceError{
		Kind:     domain.ErrorKindUnavailable,
		Service:  service,
		Resource: resource,
		Message:  fmt.Sprintf("%s creation outcome could not be confirmed", resource),
		Err:      cause,
	}
}

func conflictField(err error) string {
	if svcErr, ok := domain.AsServiceError(err); ok {
		return svcErr.Field
	}
	return ""
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
