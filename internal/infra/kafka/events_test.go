package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()

	asyncProducer := newFakeAsyncProducer()
	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "crm"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "auth-service",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func receiveEnvelope(t *testing.T, asyncProducer *fakeAsyncProducer) (*sarama.ProducerMessage, map[string]any) {
	t.Helper()

	select {
	case msg := <-asyncProducer.input:
		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}
		return msg, envelope
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
	return nil, nil
}

func TestPublishRegistrationCompleted(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	completedAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	event := domain.RegistrationCompletedEvent{
		EventID:     "evt-1",
		TenantID:    "tenant-1",
		UserID:      "user-1",
		AuthID:      "auth-1",
		Subdomain:   "acme",
		Username:    "jo",
		Email:       "jo@acme.io",
		PlanType:    domain.PlanTypeTrial,
		CompletedAt: completedAt,
		Metadata:    map[string]any{"source": "unit-test"},
	}

	ctx := context.WithValue(context.Background(), logger.RequestIDKey{}, "req-42")
	if err := publisher.PublishRegistrationCompleted(ctx, event); err != nil {
		t.Fatalf("PublishRegistrationCompleted returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, asyncProducer)
	if msg.Topic != "crm.registration.completed" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}

	key, err := msg.Key.Encode()
	if err != nil || string(key) != "tenant-1" {
		t.Fatalf("unexpected key %q (%v)", key, err)
	}

	if got := envelope["event_id"]; got != "evt-1" {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["event_type"]; got != EventTypeRegistrationCompleted {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["timestamp"]; got != completedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if payload["subdomain"] != "acme" || payload["auth_id"] != "auth-1" || payload["plan_type"] != "trial" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	metadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if metadata["service"] != "auth-service" || metadata["environment"] != "test" {
		t.Fatalf("unexpected metadata: %v", metadata)
	}
	if metadata["request_id"] != "req-42" {
		t.Fatalf("request id not propagated: %v", metadata)
	}
}

func TestPublishCompensationFailed(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	event := domain.CompensationFailedEvent{
		Resource:    "tenant",
		ResourceID:  "tenant-9",
		TenantID:    "tenant-9",
		Action:      "delete",
		FailedStage: domain.StageCreatingUser,
		Cause:       "email already exists",
		Error:       "tenants-service: tenant unavailable",
		OccurredAt:  time.Now().UTC(),
	}

	if err := publisher.PublishCompensationFailed(context.Background(), event); err != nil {
		t.Fatalf("PublishCompensationFailed returned error: %v", err)
	}

	msg, envelope := receiveEnvelope(t, asyncProducer)
	if msg.Topic != "crm.registration.compensation_failed" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}

	if id, _ := envelope["event_id"].(string); id == "" {
		t.Fatal("expected generated event id")
	}

	payload := envelope["payload"].(map[string]any)
	if payload["resource"] != "tenant" || payload["resource_id"] != "tenant-9" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["failed_stage"] != string(domain.StageCreatingUser) || payload["action"] != "delete" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	asyncProducer := &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage),
		errors: make(chan *sarama.ProducerError),
	}
	producer := newProducer(asyncProducer, config.KafkaSettings{}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })
	publisher := NewEventPublisher(producer, config.AppSettings{Name: "auth-service"}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishRegistrationCompleted(ctx, domain.RegistrationCompletedEvent{TenantID: "t"})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "crm"}}

	if got := producer.TopicName("registration.completed"); got != "crm.registration.completed" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := producer.TopicName("crm.registration.completed"); got != "crm.registration.completed" {
		t.Fatalf("prefix applied twice: %q", got)
	}
}

func TestLogPublisherWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	publisher := NewLogPublisher(config.AppSettings{Name: "registration", Env: "test"}, zap.New(core))

	if err := publisher.PublishRegistrationCompleted(context.Background(), domain.RegistrationCompletedEvent{TenantID: "tenant-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := publisher.PublishCompensationFailed(context.Background(), domain.CompensationFailedEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := logs.FilterMessage("event not sent, kafka disabled").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 logged events, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != EventTypeRegistrationCompleted || fields["key"] != "tenant-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if !strings.Contains(fields["envelope"].(string), `"service":"registration"`) {
		t.Fatalf("envelope missing metadata: %v", fields["envelope"])
	}
}
