// Package storage provides task store implementations that live outside
// the task file.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/tasks"
)

// Compile-time interface check.
var _ domain.TaskStore = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock replaces time.Now for due-date queries.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// WithTasks seeds the store with a forest. The store keeps its own copy
// of the top-level slice.
func WithTasks(forest ...domain.Task) Option {
	return func(s *MemoryStore) {
		s.tasks = append([]domain.Task(nil), forest...)
	}
}

// MemoryStore is an in-memory task store, used by tests and the --memory
// flag. Safe for concurrent access.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []domain.Task
	now   func() time.Time
	log   *logger.Logger
}

// NewMemoryStore creates a task store with nothing saved to disk.
func NewMemoryStore(log *logger.Logger, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		tasks: []domain.Task{},
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every task flattened depth-first.
func (s *MemoryStore) List(_ context.Context) ([]domain.TaskSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tasks.Flatten(s.tasks), nil
}

// Add appends a top-level task.
func (s *MemoryStore) Add(_ context.Context, title string) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, domain.ErrEmptyTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := domain.NewTask(tasks.NextID(s.tasks), title)
	s.tasks = append(s.tasks, t)
	s.log.Debug("storage: added %d %q", t.ID, t.Title)
	return t, nil
}

// MarkDone completes the task with the given id.
func (s *MemoryStore) MarkDone(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !tasks.MarkDone(s.tasks, id) {
		return fmt.Errorf("storage: task %d: %w", id, domain.ErrNotFound)
	}
	s.log.Debug("storage: marked %d done", id)
	return nil
}

// FindByTitle resolves free text to an open task id.
func (s *MemoryStore) FindByTitle(_ context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := tasks.MatchTitle(s.tasks, query)
	if !ok {
		return 0, fmt.Errorf("storage: no open task matches %q: %w", query, domain.ErrNotFound)
	}
	return id, nil
}

// FindDueWithinDays returns open tasks due between today and today+days.
func (s *MemoryStore) FindDueWithinDays(_ context.Context, days int) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tasks.DueWithinDays(s.tasks, s.now(), days), nil
}

// TaskTitle returns the title of the task with the given id.
func (s *MemoryStore) TaskTitle(_ context.Context, id int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := tasks.Find(s.tasks, id)
	if !ok {
		return "", fmt.Errorf("storage: task %d: %w", id, domain.ErrNotFound)
	}
	return t.Title, nil
}

// Summary renders the open tasks for a model prompt.
func (s *MemoryStore) Summary(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tasks.Summary(s.tasks), nil
}

// Pending counts open tasks.
func (s *MemoryStore) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tasks.PendingCount(s.tasks)
}
