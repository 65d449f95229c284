//go:build !integration

package store

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"gallery-dl-web/internal/domain"
	"gallery-dl-web/internal/domain/model"
	"gallery-dl-web/internal/infra/events"
)

func newTestRepo() *MemoryJobRepository {
	logger := zerolog.New(io.Discard)
	return NewMemoryJobRepository(events.NewHub(&logger), &logger)
}

func seedJob(t *testing.T, repo *MemoryJobRepository, id, session string) *model.Job {
	t.Helper()
	job := model.NewJob(id, session, "https://example.com/"+id, "out")
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return job
}

func TestMemoryJobRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	t.Run("get returns a copy", func(t *testing.T) {
		seedJob(t, repo, "j1", "s1")
		got, err := repo.Get(ctx, "j1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got.Progress = 99
		again, _ := repo.Get(ctx, "j1")
		if again.Progress == 99 {
			t.Error("mutating a returned job leaked into the store")
		}
	})

	t.Run("get unknown id", func(t *testing.T) {
		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate create rejected", func(t *testing.T) {
		job := model.NewJob("j1", "s1", "https://example.com/x", "out")
		if err := repo.Create(ctx, job); err == nil {
			t.Error("expected duplicate create to fail")
		}
	})

	t.Run("delete removes the job", func(t *testing.T) {
		seedJob(t, repo, "j2", "s1")
		if err := repo.Delete(ctx, "j2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := repo.Delete(ctx, "j2"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestMemoryJobRepositoryUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("legal transition applies", func(t *testing.T) {
		repo := newTestRepo()
		seedJob(t, repo, "j1", "s1")
		got, err := repo.Update(ctx, "j1", func(j *model.Job) error {
			j.Status = model.JobStatusStarting
			j.Attempt = 1
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Status != model.JobStatusStarting || got.Attempt != 1 {
			t.Errorf("unexpected job after update: %+v", got)
		}
	})

	t.Run("terminal status is frozen", func(t *testing.T) {
		repo := newTestRepo()
		seedJob(t, repo, "j1", "s1")
		mustUpdate(t, repo, "j1", model.JobStatusStarting)
		mustUpdate(t, repo, "j1", model.JobStatusRunning)
		mustUpdate(t, repo, "j1", model.JobStatusCompleted)

		_, err := repo.Update(ctx, "j1", func(j *model.Job) error {
			j.Status = model.JobStatusRunning
			return nil
		})
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		got, _ := repo.Get(ctx, "j1")
		if got.Status != model.JobStatusCompleted {
			t.Errorf("terminal status changed to %s", got.Status)
		}
	})

	t.Run("progress is monotone and clamped", func(t *testing.T) {
		repo := newTestRepo()
		seedJob(t, repo, "j1", "s1")
		repo.Update(ctx, "j1", func(j *model.Job) error { j.Progress = 50; return nil })
		got, _ := repo.Update(ctx, "j1", func(j *model.Job) error { j.Progress = 25; return nil })
		if got.Progress != 50 {
			t.Errorf("progress regressed to %d", got.Progress)
		}
		got, _ = repo.Update(ctx, "j1", func(j *model.Job) error { j.Progress = 500; return nil })
		if got.Progress != 100 {
			t.Errorf("progress not clamped, got %d", got.Progress)
		}
	})

	t.Run("mutation error aborts", func(t *testing.T) {
		repo := newTestRepo()
		seedJob(t, repo, "j1", "s1")
		boom := errors.New("boom")
		if _, err := repo.Update(ctx, "j1", func(j *model.Job) error { return boom }); !errors.Is(err, boom) {
			t.Errorf("expected mutation error, got %v", err)
		}
	})
}

func mustUpdate(t *testing.T, repo *MemoryJobRepository, id string, status model.JobStatus) {
	t.Helper()
	if _, err := repo.Update(context.Background(), id, func(j *model.Job) error {
		j.Status = status
		return nil
	}); err != nil {
		t.Fatalf("transition to %s failed: %v", status, err)
	}
}

func TestMemoryJobRepositorySessions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	seedJob(t, repo, "a1", "sessA")
	seedJob(t, repo, "a2", "sessA")
	seedJob(t, repo, "b1", "sessB")

	t.Run("list is scoped and ordered", func(t *testing.T) {
		jobs, err := repo.ListBySession(ctx, "sessA")
		if err != nil {
			t.Fatalf("ListBySession failed: %v", err)
		}
		if len(jobs) != 2 || jobs[0].ID != "a1" || jobs[1].ID != "a2" {
			t.Errorf("unexpected session listing: %+v", jobs)
		}
	})

	t.Run("clear removes only the session", func(t *testing.T) {
		removed, err := repo.ClearSession(ctx, "sessA")
		if err != nil {
			t.Fatalf("ClearSession failed: %v", err)
		}
		if len(removed) != 2 {
			t.Errorf("expected 2 removed jobs, got %d", len(removed))
		}
		if _, err := repo.Get(ctx, "a1"); !errors.Is(err, domain.ErrNotFound) {
			t.Error("sessA job survived clear")
		}
		if _, err := repo.Get(ctx, "b1"); err != nil {
			t.Error("sessB job was removed by sessA clear")
		}
	})
}

func TestMemoryJobRepositorySubscribe(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	seedJob(t, repo, "j1", "s1")

	sub, err := repo.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	first := <-sub.Events()
	if first.Kind != model.EventSnapshot || len(first.Jobs) != 1 || first.Jobs[0].ID != "j1" {
		t.Fatalf("expected snapshot of one job, got %+v", first)
	}

	mustUpdate(t, repo, "j1", model.JobStatusStarting)
	evt := <-sub.Events()
	if evt.Kind != model.EventUpdated || evt.Job.Status != model.JobStatusStarting {
		t.Fatalf("expected updated event, got %+v", evt)
	}

	if err := repo.Delete(ctx, "j1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	evt = <-sub.Events()
	if evt.Kind != model.EventDeleted || evt.JobID != "j1" {
		t.Fatalf("expected deleted event, got %+v", evt)
	}
}

func TestMemoryJobRepositoryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	seedJob(t, repo, "j1", "s1")
	mustUpdate(t, repo, "j1", model.JobStatusStarting)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Update(ctx, "j1", func(j *model.Job) error {
				j.FilesDownloaded++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := repo.Get(ctx, "j1")
	if got.FilesDownloaded != 32 {
		t.Errorf("lost updates: FilesDownloaded = %d, want 32", got.FilesDownloaded)
	}
}
