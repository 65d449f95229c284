package usecase

import (
	"strings"
	"time"
)

// FailureClass is the retry policy's verdict on one failed attempt.
type FailureClass int

const (
	FailureTerminal FailureClass = iota
	FailureTransient
)

// transientSignatures are the network-failure markers that make a failed
// attempt worth retrying. Matching is case-insensitive containment.
var transientSignatures = []string{
	"timeout",
	"timed out",
	"connection error",
	"connection refused",
	"connection reset",
	"network",
	"dns",
	"no such host",
	"unreachable",
	"no route to host",
	"temporary failure",
	"service unavailable",
	"server error",
	"too many requests",
	"rate limit",
	"429",
	"502",
	"503",
	"gateway",
}

// RetryPolicy decides whether a failed attempt is re-run and how long to
// wait first. It never mutates the job itself.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func NewRetryPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Delay: delay}
}

// Classify maps a failure text to transient or terminal.
func (RetryPolicy) Classify(errText string) FailureClass {
	if errText == "" {
		return FailureTerminal
	}
	lower := strings.ToLower(errText)
	for _, sig := range transientSignatures {
		if strings.Contains(lower, sig) {
			return FailureTransient
		}
	}
	return FailureTerminal
}

// ShouldRetry reports whether another attempt is allowed after the given
// (1-based) attempt number failed with class.
func (p RetryPolicy) ShouldRetry(class FailureClass, attempt int) bool {
	return class == FailureTransient && attempt < p.MaxAttempts
}

// Backoff returns the delay before re-running after the given attempt.
// Linear: base delay multiplied by the attempt number.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.Delay * time.Duration(attempt)
}
