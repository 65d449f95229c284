package model

// EventKind discriminates job-state change notifications.
type EventKind string

const (
	EventSnapshot EventKind = "snapshot"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventCleared  EventKind = "cleared"
)

// JobEvent is one notification pushed to observers. A freshly opened
// subscription receives exactly one snapshot before any incremental event.
type JobEvent struct {
	Kind      EventKind `json:"event"`
	SessionID string    `json:"-"`
	Job       *Job      `json:"job,omitempty"`
	Jobs      []*Job    `json:"jobs,omitempty"`
	JobID     string    `json:"id,omitempty"`
}
