package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore()

	job := s.Create("/repo", "order-service")
	assert.Len(t, job.ID, 8)
	assert.Equal(t, StatusPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, "/repo", got.RepoPath)
	assert.Equal(t, "order-service", got.Module)

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestStatusTransitions(t *testing.T) {
	s := NewStore()
	job := s.Create("/repo", "order-service")

	s.SetStatus(job.ID, StatusRunning, "", "")
	got, _ := s.Get(job.ID)
	assert.Equal(t, StatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	s.SetStatus(job.ID, StatusCompleted, "3 packages, 12 classes, 40 methods, 55 calls", "")
	got, _ = s.Get(job.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Contains(t, got.Summary, "12 classes")

	fail := s.Create("/repo", "billing-service")
	s.SetStatus(fail.ID, StatusFailed, "", "module path missing")
	got, _ = s.Get(fail.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "module path missing", got.Error)
}

func TestLoggerAppendsToJob(t *testing.T) {
	s := NewStore()
	job := s.Create("/repo", "order-service")

	log := s.Logger(job.ID)
	log.Log("info", "Found %d source files", 42)
	log.Log("warn", "Partial parse (syntax errors): %s", "Foo.java")

	got, _ := s.Get(job.ID)
	require.Len(t, got.Log, 2)
	assert.Equal(t, "info", got.Log[0].Level)
	assert.Equal(t, "Found 42 source files", got.Log[0].Message)
	assert.Equal(t, "warn", got.Log[1].Level)
}

func TestAllNewestFirst(t *testing.T) {
	s := NewStore()
	first := s.Create("/repo", "a")
	second := s.Create("/repo", "b")

	all := s.All()
	require.Len(t, all, 2)

	// Creation timestamps can tie at clock resolution; both orders of
	// a tie are acceptable, but both jobs must be present.
	ids := []string{all[0].ID, all[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)

	// Mutating a returned copy must not touch the store.
	all[0].Status = StatusFailed
	got, _ := s.Get(all[0].ID)
	assert.Equal(t, StatusPending, got.Status)
}
