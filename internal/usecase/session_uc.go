package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"gallery-dl-web/internal/domain"
	"gallery-dl-web/internal/domain/model"
	"gallery-dl-web/internal/domain/ports/adapter"
	"gallery-dl-web/internal/domain/ports/repository"
)

// Stats summarizes a session's downloads by outcome.
type Stats struct {
	Total      int `json:"total_downloads"`
	Completed  int `json:"completed_downloads"`
	Failed     int `json:"failed_downloads"`
	InProgress int `json:"in_progress_downloads"`
}

// SessionUseCase scopes every registry and orchestrator operation to the
// calling session. Access to a job owned by another session is rejected with
// domain.ErrForbidden; nothing below this layer checks ownership.
type SessionUseCase struct {
	jobs  repository.JobRepository
	dl    *DownloadUseCase
	vault adapter.CredentialVault

	downloadsDir string
	cookiesDir   string
	log          zerolog.Logger
}

func NewSessionUseCase(
	jobs repository.JobRepository,
	dl *DownloadUseCase,
	vault adapter.CredentialVault,
	downloadsDir, cookiesDir string,
	logger *zerolog.Logger,
) *SessionUseCase {
	return &SessionUseCase{
		jobs:         jobs,
		dl:           dl,
		vault:        vault,
		downloadsDir: downloadsDir,
		cookiesDir:   cookiesDir,
		log:          logger.With().Str("component", "SessionUseCase").Logger(),
	}
}

// Submit validates the URL, provisions session-scoped storage, seals any
// supplied credentials, registers the job, and launches its attempt chain.
// Submission only reports whether the job was accepted; worker failures
// surface later as a terminal job status.
func (uc *SessionUseCase) Submit(ctx context.Context, sessionID, rawURL, cookies string) (*model.Job, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	session := model.NewSession(sessionID, uc.downloadsDir, uc.cookiesDir)
	if err := os.MkdirAll(session.DownloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session download dir: %w", err)
	}

	jobID := ulid.Make().String()
	job := model.NewJob(jobID, sessionID, rawURL, session.DownloadsDir)

	if cookies != "" {
		if err := os.MkdirAll(session.CookiesDir, 0o700); err != nil {
			return nil, fmt.Errorf("create session credential dir: %w", err)
		}
		sealed, err := uc.vault.Encrypt(cookies)
		if err != nil {
			return nil, fmt.Errorf("seal credentials: %w", err)
		}
		if err := os.WriteFile(session.CookieFile(jobID), []byte(sealed), 0o600); err != nil {
			return nil, fmt.Errorf("store credentials: %w", err)
		}
		job.HasCredentials = true
	}

	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	uc.dl.Launch(job)
	uc.log.Info().Str("job_id", jobID).Str("session_id", sessionID).Str("url", rawURL).Msg("download accepted")
	return job, nil
}

// Get returns one job, enforcing session ownership.
func (uc *SessionUseCase) Get(ctx context.Context, sessionID, jobID string) (*model.Job, error) {
	return uc.owned(ctx, sessionID, jobID)
}

// List returns the session's jobs in creation order.
func (uc *SessionUseCase) List(ctx context.Context, sessionID string) ([]*model.Job, error) {
	return uc.jobs.ListBySession(ctx, sessionID)
}

// Cancel terminates an active job owned by the session.
func (uc *SessionUseCase) Cancel(ctx context.Context, sessionID, jobID string) error {
	job, err := uc.owned(ctx, sessionID, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsActive() {
		return domain.ErrNotActive
	}
	return uc.dl.Cancel(jobID)
}

// Delete removes a job and its credential material. An active job is
// cancelled first.
func (uc *SessionUseCase) Delete(ctx context.Context, sessionID, jobID string) error {
	job, err := uc.owned(ctx, sessionID, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsActive() {
		if err := uc.dl.Cancel(jobID); err != nil && !errors.Is(err, domain.ErrNotActive) {
			uc.log.Error().Err(err).Str("job_id", jobID).Msg("cancel before delete failed")
		}
	}
	if err := uc.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	uc.removeCredentialFile(sessionID, jobID)
	return nil
}

// Clear cancels every active job owned by the session, deletes their
// records, and removes the session's files and credentials, in that order.
// Partial cleanup failures are logged, not retried.
func (uc *SessionUseCase) Clear(ctx context.Context, sessionID string) error {
	jobsList, err := uc.jobs.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, job := range jobsList {
		if job.Status.IsActive() {
			if err := uc.dl.Cancel(job.ID); err != nil && !errors.Is(err, domain.ErrNotActive) {
				uc.log.Error().Err(err).Str("job_id", job.ID).Msg("cancel during clear failed")
			}
		}
	}
	if _, err := uc.jobs.ClearSession(ctx, sessionID); err != nil {
		return err
	}

	session := model.NewSession(sessionID, uc.downloadsDir, uc.cookiesDir)
	if err := os.RemoveAll(session.DownloadsDir); err != nil {
		uc.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to remove session downloads")
	}
	if err := os.RemoveAll(session.CookiesDir); err != nil {
		uc.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to remove session credentials")
	}
	uc.log.Info().Str("session_id", sessionID).Int("jobs", len(jobsList)).Msg("session cleared")
	return nil
}

// Stats aggregates the session's jobs by outcome.
func (uc *SessionUseCase) Stats(ctx context.Context, sessionID string) (Stats, error) {
	jobsList, err := uc.jobs.ListBySession(ctx, sessionID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(jobsList)}
	for _, job := range jobsList {
		switch {
		case job.Status == model.JobStatusCompleted:
			stats.Completed++
		case job.Status == model.JobStatusFailed:
			stats.Failed++
		case job.Status.IsActive():
			stats.InProgress++
		}
	}
	return stats, nil
}

// Subscribe opens a live event stream scoped to the session. The first
// event is a snapshot of the session's jobs.
func (uc *SessionUseCase) Subscribe(ctx context.Context, sessionID string) (repository.Subscription, error) {
	return uc.jobs.Subscribe(ctx, sessionID)
}

func (uc *SessionUseCase) owned(ctx context.Context, sessionID, jobID string) (*model.Job, error) {
	job, err := uc.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.SessionID != sessionID {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

func (uc *SessionUseCase) removeCredentialFile(sessionID, jobID string) {
	session := model.NewSession(sessionID, uc.downloadsDir, uc.cookiesDir)
	if err := os.Remove(session.CookieFile(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		uc.log.Error().Err(err).Str("job_id", jobID).Msg("failed to remove credential file")
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.ErrInvalidURL
	}
	return nil
}
