// Package history exports launcher run events to external stores.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of run event.
type EventType string

const (
	EventRunStart          EventType = "run_start"
	EventHelperStart       EventType = "helper_start"
	EventHelperStartFailed EventType = "helper_start_failed"
	EventHelperKill        EventType = "helper_kill"
	EventMainStart         EventType = "main_start"
	EventMainExit          EventType = "main_exit"
	EventFollowUpStart     EventType = "followup_start"
	EventFollowUpExit      EventType = "followup_exit"
	EventState             EventType = "state"
	EventRunEnd            EventType = "run_end"
)

// Event is one step of a launcher run. RunID groups the events of one run.
type Event struct {
	RunID      string    `json:"run_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Reader lists the most recent events, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Nop discards events. It is used when no history DSN is configured.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }

// Memory keeps events in memory. Tests use it to observe a run.
type Memory struct {
	events chan Event
}

func NewMemory(capacity int) *Memory { return &Memory{events: make(chan Event, capacity)} }

// Send appends e, dropping it when the buffer is full.
func (m *Memory) Send(_ context.Context, e Event) error {
	select {
	case m.events <- e:
	default:
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Drain returns the buffered events in send order.
func (m *Memory) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-m.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
