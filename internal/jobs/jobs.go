// Package jobs tracks analysis runs and collects their progress logs.
package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Logger is the sink analysis components report progress to.
type Logger interface {
	Log(level, format string, args ...interface{})
}

// NoopLogger discards everything. Useful in tests.
type NoopLogger struct{}

func (NoopLogger) Log(level, format string, args ...interface{}) {}

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type Job struct {
	ID          string     `json:"id"`
	RepoPath    string     `json:"repo_path"`
	Module      string     `json:"module_name"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
	Log         []LogEntry `json:"log"`
}

// Store is an in-memory job registry. Jobs live for the lifetime of
// the process.
type Store struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) Create(repoPath, module string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString()[:8],
		RepoPath:  repoPath,
		Module:    module,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	return job
}

func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	cp.Log = append([]LogEntry(nil), job.Log...)
	return &cp, true
}

// All returns jobs newest first.
func (s *Store) All() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		cp.Log = append([]LogEntry(nil), job.Log...)
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all
}

func (s *Store) AddLog(id, level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Log = append(job.Log, LogEntry{
			Timestamp: time.Now().UTC(),
			Level:     level,
			Message:   message,
		})
	}
}

func (s *Store) SetStatus(id string, status Status, summary, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	now := time.Now().UTC()
	switch status {
	case StatusRunning:
		job.StartedAt = &now
	case StatusCompleted, StatusFailed:
		job.CompletedAt = &now
	}
	if summary != "" {
		job.Summary = summary
	}
	if errMsg != "" {
		job.Error = errMsg
	}
}

// JobLogger adapts one job's log to the Logger interface.
type JobLogger struct {
	store *Store
	jobID string
}

func (s *Store) Logger(jobID string) *JobLogger {
	return &JobLogger{store: s, jobID: jobID}
}

func (l *JobLogger) Log(level, format string, args ...interface{}) {
	l.store.AddLog(l.jobID, level, fmt.Sprintf(format, args...))
}
