// Package tlmt defines the minimal telemetry surface the application
// emits: anonymous usage events, disabled by default.
package tlmt

import "context"

// Event is one telemetry event.
type Event struct {
	Name       string
	Properties map[string]any
}

// NewEvent creates an Event.
func NewEvent(name string, properties map[string]any) Event {
	return Event{
		Name:       name,
		Properties: properties,
	}
}

// Telemetry sends events to a backend.
type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}
