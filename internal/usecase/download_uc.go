package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"gallery-dl-web/internal/domain"
	"gallery-dl-web/internal/domain/model"
	"gallery-dl-web/internal/domain/ports/adapter"
	"gallery-dl-web/internal/domain/ports/repository"
	"gallery-dl-web/internal/infra/gallerydl"
	"gallery-dl-web/internal/infra/logging"
	"gallery-dl-web/internal/infra/metrics"
)

// DownloadUseCase supervises one goroutine per download job: it runs the
// attempt loop, streams worker output into progress updates, applies the
// retry policy, and settles the job into a terminal status. Concurrency is
// bounded by a weighted semaphore.
type DownloadUseCase struct {
	jobs    repository.JobRepository
	fetcher adapter.FetchWorker
	vault   adapter.CredentialVault
	net     adapter.Connectivity
	policy  RetryPolicy

	cookiesDir string
	sem        *semaphore.Weighted
	log        zerolog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc

	rootCtx context.Context
	stopAll context.CancelFunc
	wg      sync.WaitGroup
}

func NewDownloadUseCase(
	jobs repository.JobRepository,
	fetcher adapter.FetchWorker,
	vault adapter.CredentialVault,
	net adapter.Connectivity,
	policy RetryPolicy,
	maxConcurrent int,
	cookiesDir string,
	logger *zerolog.Logger,
) *DownloadUseCase {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	rootCtx, stopAll := context.WithCancel(context.Background())
	dlLog := logger.With().Str("component", "DownloadUseCase").Logger()
	return &DownloadUseCase{
		jobs:       jobs,
		fetcher:    fetcher,
		vault:      vault,
		net:        net,
		policy:     policy,
		cookiesDir: cookiesDir,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		log:        dlLog,
		running:    make(map[string]context.CancelFunc),
		rootCtx:    rootCtx,
		stopAll:    stopAll,
	}
}

// Launch starts the supervised attempt chain for an already-registered job.
// It returns immediately; all outcomes are reported through the repository.
func (uc *DownloadUseCase) Launch(job *model.Job) {
	ctx, cancel := context.WithCancel(uc.rootCtx)
	uc.mu.Lock()
	uc.running[job.ID] = cancel
	uc.mu.Unlock()

	metrics.IncDownloadStarted()
	uc.wg.Add(1)
	go uc.run(ctx, cancel, job.Clone())
}

// Cancel terminates the job's worker process promptly. The job settles into
// cancelled from inside its own goroutine.
func (uc *DownloadUseCase) Cancel(jobID string) error {
	uc.mu.Lock()
	cancel, ok := uc.running[jobID]
	uc.mu.Unlock()
	if !ok {
		return domain.ErrNotActive
	}
	cancel()
	return nil
}

// IsActive reports whether the job still has a supervising goroutine.
func (uc *DownloadUseCase) IsActive(jobID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	_, ok := uc.running[jobID]
	return ok
}

// Shutdown cancels every running job and waits for their goroutines, bounded
// by ctx.
func (uc *DownloadUseCase) Shutdown(ctx context.Context) error {
	uc.stopAll()
	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *DownloadUseCase) run(ctx context.Context, cancel context.CancelFunc, job *model.Job) {
	defer uc.wg.Done()
	defer logging.TraceDuration(&uc.log, "DownloadUseCase.run")()
	defer func() {
		cancel()
		uc.mu.Lock()
		delete(uc.running, job.ID)
		uc.mu.Unlock()
	}()

	if err := uc.sem.Acquire(ctx, 1); err != nil {
		uc.settleCancelled(job.ID)
		return
	}
	defer uc.sem.Release(1)

	metrics.IncDownloadsActive()
	defer metrics.DecDownloadsActive()
	started := time.Now()

	for attempt := 1; ; attempt++ {
		if err := uc.beginAttempt(job.ID, attempt); err != nil {
			// Lost the race against a concurrent cancel or delete.
			uc.log.Debug().Err(err).Str("job_id", job.ID).Msg("attempt not started")
			return
		}

		output, failText, preflight := uc.runAttempt(ctx, job)
		if ctx.Err() != nil {
			uc.settleCancelled(job.ID)
			metrics.ObserveDownloadFinished(model.JobStatusCancelled.String(), time.Since(started).Seconds())
			return
		}
		if failText == "" {
			files := gallerydl.CountDownloadedFiles(output)
			uc.settleCompleted(job.ID, files)
			metrics.AddFilesDownloaded(files)
			metrics.ObserveDownloadFinished(model.JobStatusCompleted.String(), time.Since(started).Seconds())
			uc.log.Info().Str("job_id", job.ID).Int("files", files).Int("attempt", attempt).Msg("download completed")
			return
		}

		class := uc.policy.Classify(failText)
		if preflight {
			// A failed connectivity check is always worth another attempt;
			// only the attempt budget limits it.
			class = FailureTransient
		}
		if uc.policy.ShouldRetry(class, attempt) {
			metrics.IncDownloadRetry()
			uc.log.Warn().Str("job_id", job.ID).Int("attempt", attempt).Str("error", failText).Msg("transient failure, will retry")
			select {
			case <-time.After(uc.policy.Backoff(attempt)):
			case <-ctx.Done():
				uc.settleCancelled(job.ID)
				metrics.ObserveDownloadFinished(model.JobStatusCancelled.String(), time.Since(started).Seconds())
				return
			}
			continue
		}

		uc.settleFailed(job.ID, failText, attempt)
		metrics.ObserveDownloadFinished(model.JobStatusFailed.String(), time.Since(started).Seconds())
		uc.log.Error().Str("job_id", job.ID).Int("attempt", attempt).Str("error", failText).Msg("download failed")
		return
	}
}

// beginAttempt moves the job to starting and records the attempt counter.
func (uc *DownloadUseCase) beginAttempt(jobID string, attempt int) error {
	msg := "Starting download..."
	if attempt > 1 {
		msg = fmt.Sprintf("Retrying download (attempt %d/%d)...", attempt, uc.policy.MaxAttempts)
	}
	_, err := uc.jobs.Update(context.Background(), jobID, func(j *model.Job) error {
		j.Status = model.JobStatusStarting
		j.Attempt = attempt
		j.Message = msg
		if j.StartTime.IsZero() {
			j.StartTime = time.Now()
		}
		return nil
	})
	return err
}

// runAttempt executes one attempt end to end and returns the captured output
// plus a failure text; an empty failure text means success. preflight marks
// failures from the connectivity checks, which are transient regardless of
// their error text and never spawn the worker process.
func (uc *DownloadUseCase) runAttempt(ctx context.Context, job *model.Job) (output []string, failText string, preflight bool) {
	if err := uc.net.CheckNetwork(ctx); err != nil {
		return nil, fmt.Sprintf("network connectivity issue: %v", err), true
	}
	if err := uc.net.CheckURL(ctx, job.URL); err != nil {
		return nil, fmt.Sprintf("url not accessible: %v", err), true
	}

	req := adapter.FetchRequest{URL: job.URL, OutputDir: job.OutputDir}
	if job.HasCredentials {
		credPath, cleanup, err := uc.materializeCredentials(job)
		if err != nil {
			return nil, fmt.Sprintf("credential error: %v", err), false
		}
		// Plaintext credentials must disappear on every exit path.
		defer cleanup()
		req.CookiesPath = credPath
	}

	if _, err := uc.jobs.Update(context.Background(), job.ID, func(j *model.Job) error {
		j.Status = model.JobStatusRunning
		j.Message = "Starting gallery-dl process..."
		return nil
	}); err != nil {
		return nil, fmt.Sprintf("job no longer runnable: %v", err), false
	}

	output, err := uc.fetcher.Invoke(ctx, req, func(line string) {
		upd, ok := gallerydl.ParseProgress(line)
		if !ok {
			return
		}
		_, _ = uc.jobs.Update(context.Background(), job.ID, func(j *model.Job) error {
			if upd.Progress >= 0 {
				j.ApplyProgress(upd.Progress)
			}
			j.Message = upd.Message
			return nil
		})
	})
	if err != nil {
		return output, err.Error(), false
	}
	return output, "", false
}

// materializeCredentials unseals the job's encrypted cookie file into a
// short-lived plaintext file scoped to this attempt. The returned cleanup
// removes it unconditionally.
func (uc *DownloadUseCase) materializeCredentials(job *model.Job) (string, func(), error) {
	encPath := filepath.Join(uc.cookiesDir, job.SessionID, job.ID+".cookies")
	encrypted, err := os.ReadFile(encPath)
	if err != nil {
		return "", nil, fmt.Errorf("read credential file: %w", err)
	}
	plaintext, err := uc.vault.Decrypt(string(encrypted))
	if err != nil {
		return "", nil, err
	}
	tmpPath := filepath.Join(uc.cookiesDir, job.SessionID, fmt.Sprintf(".%s-%s.tmp", job.ID, uuid.NewString()))
	if err := os.WriteFile(tmpPath, []byte(plaintext), 0o600); err != nil {
		return "", nil, fmt.Errorf("write temp credential file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			uc.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to remove temp credential file")
		}
	}
	return tmpPath, cleanup, nil
}

func (uc *DownloadUseCase) settleCompleted(jobID string, files int) {
	uc.settle(jobID, func(j *model.Job) {
		j.Status = model.JobStatusCompleted
		j.Progress = 100
		j.Message = "Download completed successfully!"
		j.FilesDownloaded = files
		j.TotalFiles = files
	})
}

func (uc *DownloadUseCase) settleFailed(jobID, errText string, attempt int) {
	uc.settle(jobID, func(j *model.Job) {
		j.Status = model.JobStatusFailed
		j.Message = fmt.Sprintf("Download failed after %d attempt(s): %s", attempt, errText)
		j.Error = errText
	})
}

func (uc *DownloadUseCase) settleCancelled(jobID string) {
	uc.settle(jobID, func(j *model.Job) {
		j.Status = model.JobStatusCancelled
		j.Message = "Download cancelled"
	})
}

// settle applies a terminal mutation, tolerating jobs that were deleted or
// already settled by a competing path.
func (uc *DownloadUseCase) settle(jobID string, apply func(*model.Job)) {
	_, err := uc.jobs.Update(context.Background(), jobID, func(j *model.Job) error {
		apply(j)
		j.Finish(time.Now())
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidTransition) {
		uc.log.Error().Err(err).Str("job_id", jobID).Msg("failed to settle job")
	}
}
