//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gallery-dl-web/internal/domain/model"
	"gallery-dl-web/internal/domain/ports/adapter"
	"gallery-dl-web/internal/domain/ports/repository"
	"gallery-dl-web/internal/infra/events"
	"gallery-dl-web/internal/infra/gallerydl"
	"gallery-dl-web/internal/infra/security"
	"gallery-dl-web/internal/infra/store"
	"gallery-dl-web/internal/usecase"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Mock fetch worker ---

// attemptScript describes the behavior of one scripted worker invocation.
type attemptScript struct {
	lines []string
	err   error
	// block keeps the invocation running until the context is cancelled,
	// simulating a long download.
	block bool
}

type mockFetchWorker struct {
	mu      sync.Mutex
	scripts []attemptScript
	calls   int
	// requests records what each invocation was asked to do.
	requests []adapter.FetchRequest
}

func newMockFetchWorker(scripts ...attemptScript) *mockFetchWorker {
	return &mockFetchWorker{scripts: scripts}
}

func (m *mockFetchWorker) Invoke(ctx context.Context, req adapter.FetchRequest, onLine func(string)) ([]string, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	var script attemptScript
	if idx < len(m.scripts) {
		script = m.scripts[idx]
	}
	m.mu.Unlock()

	for _, line := range script.lines {
		if onLine != nil {
			onLine(line)
		}
	}
	if script.block {
		<-ctx.Done()
		return script.lines, errors.New("terminated")
	}
	return script.lines, script.err
}

func (m *mockFetchWorker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockFetchWorker) request(i int) adapter.FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.requests) {
		return adapter.FetchRequest{}
	}
	return m.requests[i]
}

// --- Mock connectivity ---

type mockConnectivity struct {
	mu        sync.Mutex
	netErr    error
	urlErr    error
	netChecks int
	urlChecks int
}

func (m *mockConnectivity) CheckNetwork(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netChecks++
	return m.netErr
}

func (m *mockConnectivity) CheckURL(ctx context.Context, rawURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urlChecks++
	return m.urlErr
}

// --- Test fixture ---

type fixture struct {
	repo         repository.JobRepository
	hub          *events.Hub
	fetcher      *mockFetchWorker
	net          *mockConnectivity
	vault        adapter.CredentialVault
	dl           *usecase.DownloadUseCase
	sessions     *usecase.SessionUseCase
	downloadsDir string
	cookiesDir   string
}

func newFixture(t *testing.T, fetcher *mockFetchWorker) *fixture {
	t.Helper()
	return newFixtureWithPolicy(t, fetcher, usecase.NewRetryPolicy(3, time.Millisecond))
}

func newFixtureWithPolicy(t *testing.T, fetcher *mockFetchWorker, policy usecase.RetryPolicy) *fixture {
	t.Helper()
	logger := newTestLogger()
	hub := events.NewHub(logger)
	repo := store.NewMemoryJobRepository(hub, logger)
	vault, err := security.NewVault(testEncryptionKey)
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	net := &mockConnectivity{}

	base := t.TempDir()
	downloadsDir := base + "/downloads"
	cookiesDir := base + "/cookies"

	dl := usecase.NewDownloadUseCase(repo, fetcher, vault, net, policy, 4, cookiesDir, logger)
	sessions := usecase.NewSessionUseCase(repo, dl, vault, downloadsDir, cookiesDir, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dl.Shutdown(ctx); err != nil {
			t.Errorf("shutdown did not settle: %v", err)
		}
		hub.Close()
	})
	return &fixture{
		repo:         repo,
		hub:          hub,
		fetcher:      fetcher,
		net:          net,
		vault:        vault,
		dl:           dl,
		sessions:     sessions,
		downloadsDir: downloadsDir,
		cookiesDir:   cookiesDir,
	}
}

// session mirrors how the use case derives session-scoped paths.
func (f *fixture) session(sessionID string) *model.Session {
	return model.NewSession(sessionID, f.downloadsDir, f.cookiesDir)
}

// waitForStatus polls the repository until the job reaches status or the
// deadline passes.
func waitForStatus(t *testing.T, repo repository.JobRepository, jobID string, status model.JobStatus) *model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.Get(context.Background(), jobID)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, err := repo.Get(context.Background(), jobID)
	t.Fatalf("job %s never reached %s (last: %+v, err: %v)", jobID, status, job, err)
	return nil
}

// runErr builds the worker failure the retry policy classifies.
func runErr(stderr string) error {
	return &gallerydl.RunError{ExitCode: 1, Stderr: stderr}
}
