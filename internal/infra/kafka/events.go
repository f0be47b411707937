package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/port"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
)

const (
	schemaVersion = "1.0"

	EventTypeRegistrationCompleted = "registration.completed"
	EventTypeCompensationFailed    = "registration.compensation_failed"
)

// sink delivers an encoded envelope keyed by tenant.
type sink interface {
	Send(ctx context.Context, eventType, key string, value []byte) error
}

// EventPublisher implements port.EventPublisher by wrapping domain events in a versioned envelope.
type EventPublisher struct {
	sink   sink
	logger *zap.Logger
	appCfg config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return newEventPublisher(producer, appCfg, logger)
}

// NewLogPublisher builds the same envelopes but writes them to the log. Used when no brokers are configured.
func NewLogPublisher(appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newEventPublisher(logSink{logger: logger.Named("events")}, appCfg, logger)
}

func newEventPublisher(s sink, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{sink: s, appCfg: appCfg, logger: logger}
}

type logSink struct {
	logger *zap.Logger
}

func (s logSink) Send(_ context.Context, eventType, key string, value []byte) error {
	s.logger.Info("event not sent, kafka disabled",
		zap.String("event_type", eventType),
		zap.String("key", key),
		zap.ByteString("envelope", value),
	)
	return nil
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	TenantID  string           `json:"tenant_id,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, tenantID, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		TenantID:  tenantID,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	return p.sink.Send(ctx, eventType, tenantID, bytes)
}

type registrationCompletedPayload struct {
	TenantID    string         `json:"tenant_id"`
	UserID      string         `json:"user_id"`
	AuthID      string         `json:"auth_id"`
	Subdomain   string         `json:"subdomain"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	PlanType    string         `json:"plan_type"`
	CompletedAt time.Time      `json:"completed_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newRegistrationCompletedPayload(event domain.RegistrationCompletedEvent) registrationCompletedPayload {
	return registrationCompletedPayload{
		TenantID:    event.TenantID,
		UserID:      event.UserID,
		AuthID:      event.AuthID,
		Subdomain:   event.Subdomain,
		Username:    event.Username,
		Email:       event.Email,
		PlanType:    string(event.PlanType),
		CompletedAt: event.CompletedAt.UTC(),
		Metadata:    event.Metadata,
	}
}

type compensationFailedPayload struct {
	Resource    string         `json:"resource"`
	ResourceID  string         `json:"resource_id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Action      string         `json:"action"`
	FailedStage string         `json:"failed_stage"`
	Cause       string         `json:"cause,omitempty"`
	Error       string         `json:"error"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func newCompensationFailedPayload(event domain.CompensationFailedEvent) compensationFailedPayload {
	return compensationFailedPayload{
		Resource:    event.Resource,
		ResourceID:  event.ResourceID,
		TenantID:    event.TenantID,
		UserID:      event.UserID,
		Action:      event.Action,
		FailedStage: string(event.FailedStage),
		Cause:       event.Cause,
		Error:       event.Error,
		OccurredAt:  event.OccurredAt.UTC(),
		Metadata:    event.Metadata,
	}
}

// PublishRegistrationCompleted publishes registration.completed events keyed by tenant.
func (p *EventPublisher) PublishRegistrationCompleted(ctx context.Context, event domain.RegistrationCompletedEvent) error {
	return p.publish(ctx, event.EventID, EventTypeRegistrationCompleted, event.TenantID, event.UserID,
		event.CompletedAt, newRegistrationCompletedPayload(event))
}

// PublishCompensationFailed publishes registration.compensation_failed events so orphaned
// records can be reconciled out of band.
func (p *EventPublisher) PublishCompensationFailed(ctx context.Context, event domain.CompensationFailedEvent) error {
	return p.publish(ctx, event.EventID, EventTypeCompensationFailed, event.TenantID, event.UserID,
		event.OccurredAt, newCompensationFailedPayload(event))
}

var _ port.EventPublisher = (*EventPublisher)(nil)
