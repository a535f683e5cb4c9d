package event

import (
	"context"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Flow lifecycle
	FlowStateChanged EventType = "flow.state"
	FlowCompleted    EventType = "flow.completed"
	FlowFailed       EventType = "flow.failed"
	FlowReset        EventType = "flow.reset"

	// Signing
	SigningRequested EventType = "signing.requested"
	SigningDeclined  EventType = "signing.declined"

	// Upload
	UploadStarted   EventType = "upload.started"
	UploadCompleted EventType = "upload.completed"
	UploadRetry     EventType = "upload.retry"

	// Fallback cache
	FallbackSaved EventType = "fallback.saved"
)

// EventData carries event-specific values keyed by EventDataKey.
type EventData map[EventDataKey]any

// Event represents an event emitted by the system
type Event struct {
	Type      EventType
	SessionID string // flow session that emitted the event
	Timestamp time.Time
	Data      EventData
}

// NewEvent builds an event stamped with the current time. ctx is accepted for
// symmetry with the emitters; nothing is read from it today.
func NewEvent(_ context.Context, eventType EventType, sessionID string, data EventData) Event {
	if data == nil {
		data = EventData{}
	}
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      data,
	}
}
