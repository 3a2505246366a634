package process

import "time"

// Status is a point-in-time view of a launched process.
type Status struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	PID       int       `json:"pid"`
	Priority  Priority  `json:"priority"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	ExitErr   error     `json:"exit_error,omitempty"`
	ExitCode  int       `json:"exit_code"`
}
