package port

import (
	"context"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishRegistrationCompleted(ctx context.Context, event domain.RegistrationCompletedEvent) error
	PublishCompensationFailed(ctx context.Context, event domain.CompensationFailedEvent) error
}
