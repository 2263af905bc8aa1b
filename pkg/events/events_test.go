package events

import (
	"strings"
	"testing"
	"time"
)

func TestEventTopics(t *testing.T) {
	topics := []struct {
		name  string
		topic string
	}{
		{"TopicAccountLinked", TopicAccountLinked},
		{"TopicCredentialRefreshed", TopicCredentialRefreshed},
	}

	for _, tt := range topics {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.topic, "mailapi.") {
				t.Errorf("%s = %q, want mailapi. prefix", tt.name, tt.topic)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent("account.linked.v1", "mail-oauth-api", AccountLinkedData{
		AccountID: 42,
		Email:     "a@b.com",
		Provider:  "google",
	})

	if event.ID == "" {
		t.Error("NewEvent() should generate an ID")
	}
	if event.Type != "account.linked.v1" {
		t.Errorf("Event.Type = %v, want account.linked.v1", event.Type)
	}
	if event.Source != "mail-oauth-api" {
		t.Errorf("Event.Source = %v, want mail-oauth-api", event.Source)
	}
	if event.Time.IsZero() || time.Since(event.Time) > time.Minute {
		t.Errorf("Event.Time = %v, want roughly now", event.Time)
	}
}

func TestEvent_WithCorrelationID(t *testing.T) {
	event := NewEvent("credential.refreshed.v1", "mail-oauth-api", nil).
		WithCorrelationID("req-123")

	if event.CorrelationID != "req-123" {
		t.Errorf("Event.CorrelationID = %v, want req-123", event.CorrelationID)
	}
}
