package pipeline

import (
	"time"

	"render-engine/internal/ffmpeg"
)

// EventType names a job lifecycle event.
type EventType string

const (
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventProgress       EventType = "progress"
	EventCompleted      EventType = "completed"
	EventFailed         EventType = "failed"
	EventCancelled      EventType = "cancelled"
)

// Event is published to the job's listener.
type Event struct {
	Type     EventType        `json:"type"`
	JobID    string           `json:"jobId"`
	Stage    string           `json:"stage,omitempty"`
	Progress *ffmpeg.Progress `json:"progress,omitempty"`
	Percent  float64          `json:"percent,omitempty"`
	Error    string           `json:"error,omitempty"`
	Time     time.Time        `json:"time"`

	Err error `json:"-"`
}

// EventFunc receives events synchronously on the job's goroutine. It must
// not block.
type EventFunc func(Event)

// State is the lifecycle state of a pipeline.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Finished reports whether the state is terminal.
func (s State) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
