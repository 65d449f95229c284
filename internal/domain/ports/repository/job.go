package repository

import (
	"context"

	"gallery-dl-web/internal/domain/model"
)

// -----------------------------
// Jobs
// -----------------------------

// Subscription is a live stream of job events for one session. The first
// event on the channel is always a snapshot of the session's jobs.
type Subscription interface {
	Events() <-chan model.JobEvent
	Close()
}

// JobRepository owns the authoritative job table. Mutations on a single job
// are serialized; every successful mutation is published to subscribers
// exactly once.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// Update applies mutate to a copy of the stored job and commits it.
	// Status transitions are validated against the model's transition table
	// and progress is kept monotone; an illegal transition aborts the update
	// with domain.ErrInvalidTransition.
	Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error)
	Delete(ctx context.Context, id string) error
	ListBySession(ctx context.Context, sessionID string) ([]*model.Job, error)
	// ClearSession removes every job owned by the session and returns the
	// removed records. Exactly one cleared event is published.
	ClearSession(ctx context.Context, sessionID string) ([]*model.Job, error)
	// Subscribe registers an observer atomically with respect to concurrent
	// mutations: no event is lost between the snapshot and the first
	// incremental event.
	Subscribe(ctx context.Context, sessionID string) (Subscription, error)
}
