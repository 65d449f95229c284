package gallerydl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"gallery-dl-web/internal/config"
	"gallery-dl-web/internal/domain/ports/adapter"
)

// RunError reports a worker process that exited non-zero. Stderr carries the
// text the retry policy classifies.
type RunError struct {
	ExitCode int
	Stderr   string
}

func (e *RunError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("gallery-dl exited with code %d", e.ExitCode)
	}
	return e.Stderr
}

// Runner executes the gallery-dl binary for one download attempt and streams
// its stdout line by line. It implements adapter.FetchWorker.
type Runner struct {
	binary    string
	extraArgs []string
	grace     time.Duration
	log       zerolog.Logger
}

func NewRunner(cfg config.DownloaderConfig, logger *zerolog.Logger) *Runner {
	return &Runner{
		binary:    cfg.Binary,
		extraArgs: cfg.ExtraArgs,
		grace:     cfg.GracePeriod.Std(),
		log:       logger.With().Str("component", "gallerydl").Logger(),
	}
}

func (r *Runner) Invoke(ctx context.Context, req adapter.FetchRequest, onLine func(line string)) ([]string, error) {
	args := append([]string{}, r.extraArgs...)
	args = append(args, "-D", req.OutputDir, "--verbose")
	if req.CookiesPath != "" {
		args = append(args, "--cookies", req.CookiesPath)
	}
	args = append(args, req.URL)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	// Ask nicely first; WaitDelay escalates to SIGKILL if the process
	// ignores the termination signal past the grace period.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	r.log.Debug().Str("url", req.URL).Bool("cookies", req.CookiesPath != "").Msg("starting gallery-dl")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.binary, err)
	}

	var (
		wg          sync.WaitGroup
		stdoutLines []string
		stderrLines []string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			stdoutLines = append(stdoutLines, line)
			r.log.Debug().Str("line", line).Msg("gallery-dl output")
			if onLine != nil {
				onLine(line)
			}
		}
		// A scan failure (oversized line) must not leave the pipe full,
		// or Wait blocks on a process stuck writing to it.
		if err := sc.Err(); err != nil {
			r.log.Error().Err(err).Msg("stdout scan aborted, draining")
			_, _ = io.Copy(io.Discard, stdout)
		}
	}()
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				stderrLines = append(stderrLines, line)
			}
		}
		if err := sc.Err(); err != nil {
			r.log.Error().Err(err).Msg("stderr scan aborted, draining")
			_, _ = io.Copy(io.Discard, stderr)
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		errText := strings.Join(stderrLines, "\n")
		if errText == "" {
			errText = err.Error()
		}
		code := -1
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		}
		return stdoutLines, &RunError{ExitCode: code, Stderr: errText}
	}
	return stdoutLines, nil
}
