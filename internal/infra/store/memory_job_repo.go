package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"gallery-dl-web/internal/domain"
	"gallery-dl-web/internal/domain/model"
	"gallery-dl-web/internal/domain/ports/repository"
	"gallery-dl-web/internal/infra/events"
)

// MemoryJobRepository is the authoritative in-memory job table. State is
// intentionally volatile; nothing survives a restart.
//
// A single RWMutex serializes mutations, so one job is never written by two
// goroutines at once, and events are published while the lock is held, which
// keeps per-job event order identical to mutation order and makes Subscribe's
// snapshot atomic with respect to concurrent writes.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
	hub  *events.Hub
	log  zerolog.Logger
}

var _ repository.JobRepository = (*MemoryJobRepository)(nil)

func NewMemoryJobRepository(hub *events.Hub, logger *zerolog.Logger) *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*model.Job),
		hub:  hub,
		log:  logger.With().Str("component", "jobstore").Logger(),
	}
}

func (r *MemoryJobRepository) Create(ctx context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	stored := job.Clone()
	r.jobs[job.ID] = stored
	r.hub.Publish(model.JobEvent{Kind: model.EventUpdated, SessionID: stored.SessionID, Job: stored.Clone()})
	return nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryJobRepository) Update(ctx context.Context, id string, mutate func(*model.Job) error) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	// Transition rules are enforced here, not left to caller discipline.
	if next.Status != current.Status && !current.Status.CanTransition(next.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next.Status)
	}
	// Progress is clamped and monotone regardless of what the mutation wrote.
	if next.Progress > 100 {
		next.Progress = 100
	}
	if next.Progress < current.Progress {
		next.Progress = current.Progress
	}
	r.jobs[id] = next
	r.hub.Publish(model.JobEvent{Kind: model.EventUpdated, SessionID: next.SessionID, Job: next.Clone()})
	return next.Clone(), nil
}

func (r *MemoryJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, id)
	r.hub.Publish(model.JobEvent{Kind: model.EventDeleted, SessionID: job.SessionID, JobID: id})
	return nil
}

func (r *MemoryJobRepository) ListBySession(ctx context.Context, sessionID string) ([]*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionJobsLocked(sessionID), nil
}

func (r *MemoryJobRepository) ClearSession(ctx context.Context, sessionID string) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := r.sessionJobsLocked(sessionID)
	for _, job := range removed {
		delete(r.jobs, job.ID)
	}
	r.hub.Publish(model.JobEvent{Kind: model.EventCleared, SessionID: sessionID})
	return removed, nil
}

func (r *MemoryJobRepository) Subscribe(ctx context.Context, sessionID string) (repository.Subscription, error) {
	// Holding the read lock excludes writers, so no mutation (and therefore
	// no event) can slip between snapshot and registration.
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hub.Subscribe(sessionID, r.sessionJobsLocked(sessionID)), nil
}

// sessionJobsLocked returns clones of the session's jobs ordered by id.
// Job ids are ULIDs, so lexicographic order is creation order.
func (r *MemoryJobRepository) sessionJobsLocked(sessionID string) []*model.Job {
	out := make([]*model.Job, 0, 8)
	for _, job := range r.jobs {
		if job.SessionID == sessionID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
