package ports

import (
	"context"

	"github.com/google/uuid"

	"CasaBid/internal/core/domain"
)

// Event is a generic wrapper for any event payload
type Event struct {
	Topic string
	Data  interface{}
}

// EventHandler is a function that can handle a specific event
type EventHandler func(ctx context.Context, event Event) error

// EventBus defines the interface for our in-process pub/sub system
type EventBus interface {
	// Publish sends an event to all subscribers of a topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Subscribe registers a handler for a specific topic
	Subscribe(topic string, handler EventHandler)
}

// Topics published by the verification pipeline.
const (
	TopicCheckRequested      = "verification:check_requested"
	TopicVerificationReview  = "verification:manual_review"
	TopicVerificationApprove = "verification:approved"
	TopicVerificationReject  = "verification:rejected"
	TopicVerificationFailed  = "verification:failed"
)

// CheckRequestedEvent asks the check runner to call one provider.
type CheckRequestedEvent struct {
	VerificationID uuid.UUID
	Kind           domain.CheckKind
}

// VerificationEvent is published after every status transition.
type VerificationEvent struct {
	Record *domain.VerificationRecord
	From   domain.VerificationStatus
}
