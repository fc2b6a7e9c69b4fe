package core

import (
	"context"
	"time"
)

// Event names
const (
	EventOrganizationJoined   = "organization.joined"
	EventOrganizationSwitched = "organization.switched"
	EventOrganizationLeft     = "organization.left"
	EventClassEnrolled        = "class.enrolled"
	EventClassUnenrolled      = "class.unenrolled"
)

// Event is a domain event broadcast after a state change was committed.
type Event struct {
	Name       string                 `json:"name"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

func NewEvent(name string, payload map[string]interface{}) Event {
	return Event{Name: name, OccurredAt: time.Now().UTC(), Payload: payload}
}

// EventPublisher broadcasts domain events.
// Publishing is best effort: services log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}
