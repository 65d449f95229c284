package model

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusStarting  JobStatus = "starting"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string { return string(s) }

// IsActive reports whether the download still has work in flight.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusStarting || s == JobStatusRunning
}

// IsTerminal reports whether the status can never change again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// transitions is the closed set of legal status moves. Running -> Starting
// covers a retry attempt; a terminal status has no outgoing edges.
var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:  {JobStatusStarting, JobStatusFailed, JobStatusCancelled},
	JobStatusStarting: {JobStatusRunning, JobStatusStarting, JobStatusFailed, JobStatusCancelled},
	JobStatusRunning:  {JobStatusStarting, JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
// Staying on the same status is always allowed for bookkeeping updates.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Job is the aggregate for one tracked download request and its lifecycle.
// It is owned by the job repository; workers mutate it only through
// repository updates.
type Job struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"-"`
	URL             string     `json:"url"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	Message         string     `json:"message"`
	Error           string     `json:"error,omitempty"`
	FilesDownloaded int        `json:"files_downloaded"`
	TotalFiles      int        `json:"total_files"`
	Attempt         int        `json:"attempt"`
	HasCredentials  bool       `json:"-"`
	OutputDir       string     `json:"-"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func NewJob(id, sessionID, url, outputDir string) *Job {
	return &Job{
		ID:        id,
		SessionID: sessionID,
		URL:       url,
		Status:    JobStatusPending,
		Progress:  0,
		Message:   "Initializing download...",
		OutputDir: outputDir,
		CreatedAt: time.Now(),
	}
}

// ApplyProgress raises Progress to p, clamped to [0,100]. Lower values are
// discarded so progress never regresses across retries.
func (j *Job) ApplyProgress(p int) {
	if p > 100 {
		p = 100
	}
	if p <= j.Progress {
		return
	}
	j.Progress = p
}

// Finish stamps the end time once.
func (j *Job) Finish(at time.Time) {
	if j.EndTime == nil {
		t := at
		j.EndTime = &t
	}
}

// Clone returns a copy safe to hand out across goroutine boundaries.
func (j *Job) Clone() *Job {
	c := *j
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	return &c
}
