// Package events defines the domain events this service publishes and the
// Kafka publisher that carries them. Consumers are other mail-facing
// services (sync workers, notification senders) that react to a mailbox
// being linked or its credentials being refreshed.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for all published messages.
//
// Topic naming: mailapi.<domain>.<action>
type Event struct {
	// ID is a unique identifier for this event instance
	ID string `json:"id"`

	// Type describes the event, e.g. "account.linked.v1"
	Type string `json:"type"`

	// Source identifies the producing service
	Source string `json:"source"`

	// Time is when the event occurred (not when it was published)
	Time time.Time `json:"time"`

	// CorrelationID links the event to the originating request
	CorrelationID string `json:"correlation_id,omitempty"`

	// Data contains the event-specific payload
	Data any `json:"data"`

	// Metadata contains optional key-value pairs for tracing and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates an event with a generated ID and the current time.
func NewEvent(eventType, source string, data any) *Event {
	return &Event{
		ID:     uuid.New().String(),
		Type:   eventType,
		Source: source,
		Time:   time.Now().UTC(),
		Data:   data,
	}
}

// WithCorrelationID sets the correlation ID for request tracing.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

const (
	// TopicAccountLinked is published when a mail account is linked for the
	// first time. Data: AccountLinkedData.
	TopicAccountLinked = "mailapi.accounts.linked"

	// TopicCredentialRefreshed is published when an existing account's
	// credential is updated by a repeat login. Data: CredentialRefreshedData.
	TopicCredentialRefreshed = "mailapi.credentials.refreshed"
)

// AccountLinkedData is the payload for account.linked.v1 events.
type AccountLinkedData struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
	Provider  string `json:"provider"`
}

// CredentialRefreshedData is the payload for credential.refreshed.v1 events.
type CredentialRefreshedData struct {
	AccountID int64     `json:"account_id"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher sends domain events. Publishing is best-effort for this
// service: a failed publish is logged, never surfaced to the caller.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *Event) error
	Close() error
}

// NoopPublisher discards events. Used when no brokers are configured and
// in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event *Event) error { return nil }

func (NoopPublisher) Close() error { return nil }
