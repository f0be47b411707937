package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/telemetry"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/repository"
)

const (
	defaultCompensationTimeout = 30 * time.Second

	compensationResourceCredential = "credential"
	compensationResourceUser       = "user"
	compensationResourceTenant     = "tenant"

	compensationActionDelete  = "delete"
	compensationActionSuspend = "suspend"
	compensationActionVerify  = "verify"

	compensationResultSucceeded  = "succeeded"
	compensationResultFailed     = "failed"
	compensationResultUnresolved = "unresolved"
)

// Compensation lists what a failed registration had already created.
type Compensation struct {
	TenantID     string
	UserID       string
	CredentialID string
	FailedStage  domain.RegistrationStage
	Cause        error
}

// CompensationAction records a single undo step.
type CompensationAction struct {
	Resource   string
	ResourceID string
	Action     string
	Err        error
}

// CompensationReport is the outcome of a compensation run.
type CompensationReport struct {
	Actions []CompensationAction
}

// Succeeded reports whether every created record was removed or suspended.
func (r CompensationReport) Succeeded() bool {
	for _, action := range r.Actions {
		if action.Err != nil {
			return false
		}
	}
	return true
}

// Compensator undoes the steps of a registration that failed after at least one record was created.
// Failures are logged, counted and published for reconciliation; they are never returned.
type Compensator struct {
	tenants     port.TenantDirectory
	users       port.UserDirectory
	credentials port.CredentialRepository
	events      port.EventPublisher
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	timeout     time.Duration
	now         func() time.Time
}

// NewCompensator constructs a compensator. credentials may be nil when no local record is ever written.
func NewCompensator(tenants port.TenantDirectory, users port.UserDirectory, credentials port.CredentialRepository, log *zap.Logger) *Compensator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compensator{
		tenants:     tenants,
		users:       users,
		credentials: credentials,
		logger:      log,
		timeout:     defaultCompensationTimeout,
		now:         time.Now,
	}
}

// WithEvents publishes compensation failures to the reconciliation feed.
func (c *Compensator) WithEvents(events port.EventPublisher) *Compensator {
	c.events = events
	return c
}

// WithMetrics counts compensating actions.
func (c *Compensator) WithMetrics(metrics *telemetry.Metrics) *Compensator {
	c.metrics = metrics
	return c
}

// WithTimeout bounds the whole compensation run.
func (c *Compensator) WithTimeout(timeout time.Duration) *Compensator {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// Timeout is how long one Compensate run may take.
func (c *Compensator) Timeout() time.Duration {
	return c.timeout
}

// Compensate undoes, in reverse creation order, every record named in comp. It runs on a context detached
// from ctx's cancellation with its own timeout.
func (c *Compensator) Compensate(ctx context.Context, comp Compensation) CompensationReport {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var report CompensationReport

	if comp.CredentialID != "" && c.credentials != nil {
		err := c.credentials.Delete(ctx, comp.CredentialID)
		if errors.Is(err, repository.ErrNotFound) {
			err = nil
		}
		report.Actions = append(report.Actions, c.record(ctx, comp, CompensationAction{
			Resource:   compensationResourceCredential,
			ResourceID: comp.CredentialID,
			Action:     compensationActionDelete,
			Err:        err,
		}))
	}

	if comp.UserID != "" {
		report.Actions = append(report.Actions, c.record(ctx, comp, CompensationAction{
			Resource:   compensationResourceUser,
			ResourceID: comp.UserID,
			Action:     compensationActionDelete,
			Err:        c.users.Delete(ctx, comp.UserID),
		}))
	}

	if comp.TenantID != "" {
		report.Actions = append(report.Actions, c.record(ctx, comp, c.undoTenant(ctx, comp.TenantID)))
	}

	return report
}

// undoTenant deletes the tenant, suspending it when the delete is refused or fails.
func (c *Compensator) undoTenant(ctx context.Context, tenantID string) CompensationAction {
	action := CompensationAction{
		Resource:   compensationResourceTenant,
		ResourceID: tenantID,
		Action:     compensationActionDelete,
	}

	deleteErr := c.tenants.Delete(ctx, tenantID)
	if deleteErr == nil {
		return action
	}

	c.log(ctx).Warn("tenant delete failed during compensation, suspending instead",
		zap.String("tenant_id", tenantID),
		zap.Error(deleteErr),
	)

	action.Action = compensationActionSuspend
	if err := c.tenants.Suspend(ctx, tenantID); err != nil {
		action.Err = errors.Join(deleteErr, err)
	}
	return action
}

// ReportUnresolved publishes a record whose creation outcome could not be determined and that has no
// id to compensate with, so it can be checked by natural key.
func (c *Compensator) ReportUnresolved(ctx context.Context, resource, naturalKey string, stage domain.RegistrationStage, cause error) {
	c.metrics.ObserveCompensation(resource, compensationResultUnresolved)
	c.log(ctx).Error("registration left an unresolved record",
		zap.String("resource", resource),
		zap.String("natural_key", naturalKey),
		zap.String("stage", string(stage)),
		zap.Error(cause),
	)

	c.publish(ctx, domain.CompensationFailedEvent{
		Resource:    resource,
		ResourceID:  naturalKey,
		Action:      compensationActionVerify,
		FailedStage: stage,
		Cause:       errorText(cause),
		Error:       "creation outcome unknown",
	})
}

func (c *Compensator) record(ctx context.Context, comp Compensation, action CompensationAction) CompensationAction {
	if action.Err == nil {
		c.metrics.ObserveCompensation(action.Resource, compensationResultSucceeded)
		c.log(ctx).Info("compensating action applied",
			zap.String("resource", action.Resource),
			zap.String("resource_id", action.ResourceID),
			zap.String("action", action.Action),
			zap.String("failed_stage", string(comp.FailedStage)),
		)
		return action
	}

	c.metrics.ObserveCompensation(action.Resource, compensationResultFailed)
	c.log(ctx).Error("compensating action failed, manual reconciliation required",
		zap.String("resource", action.Resource),
		zap.String("resource_id", action.ResourceID),
		zap.String("action", action.Action),
		zap.String("tenant_id", comp.TenantID),
		zap.String("user_id", comp.UserID),
		zap.String("failed_stage", string(comp.FailedStage)),
		zap.NamedError("cause", comp.Cause),
		zap.Error(action.Err),
	)

	c.publish(ctx, domain.CompensationFailedEvent{
		Resource:    action.Resource,
		ResourceID:  action.ResourceID,
		TenantID:    comp.TenantID,
		UserID:      comp.UserID,
		Action:      action.Action,
		FailedStage: comp.FailedStage,
		Cause:       errorText(comp.Cause),
		Error:       action.Err.Error(),
	})
	return action
}

func (c *Compensator) publish(ctx context.Context, event domain.CompensationFailedEvent) {
	if c.events == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.OccurredAt = c.now().UTC()
	if err := c.events.PublishCompensationFailed(ctx, event); err != nil {
		c.log(ctx).Error("publish compensation failure", zap.Error(err), zap.String("resource_id", event.ResourceID))
	}
}

func (c *Compensator) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, c.logger)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
