package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// DefaultFile is the task file used when none is configured.
const DefaultFile = "tasks.json"

// Compile-time interface check.
var _ domain.TaskStore = (*FileStore)(nil)

// Option configures the file store.
type Option func(*FileStore)

// WithClock replaces time.Now for the "today" used by due-date queries.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// FileStore keeps the task forest in a pretty-printed JSON array. Reads
// are served from memory; every change rewrites the file atomically. Watch
// picks up edits made by other programs. Safe for concurrent use.
type FileStore struct {
	path string
	log  *logger.Logger
	now  func() time.Time

	mu    sync.RWMutex
	tasks []domain.Task
}

// NewFileStore opens the task file at path. A missing file is an empty
// list; a file that is not valid JSON is an error, so it never gets
// overwritten.
func NewFileStore(path string, log *logger.Logger, opts ...Option) (*FileStore, error) {
	if path == "" {
		path = DefaultFile
	}
	s := &FileStore{
		path: path,
		log:  log,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	tasks, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s.tasks = tasks
	log.Info("tasks: loaded %d top-level tasks from %s", len(tasks), path)
	return s, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string { return s.path }

// List returns every task flattened depth-first.
func (s *FileStore) List(_ context.Context) ([]domain.TaskSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Flatten(s.tasks), nil
}

// Add appends a new top-level task with the next free id.
func (s *FileStore) Add(_ context.Context, title string) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, domain.ErrEmptyTitle
	}

	var added domain.Task
	err := s.update(func(forest []domain.Task) ([]domain.Task, error) {
		added = domain.NewTask(NextID(forest), title)
		return append(forest, added), nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	s.log.Debug("tasks: added %d %q", added.ID, added.Title)
	return added, nil
}

// MarkDone completes the task with the given id at any depth.
func (s *FileStore) MarkDone(_ context.Context, id int) error {
	err := s.update(func(forest []domain.Task) ([]domain.Task, error) {
		if !MarkDone(forest, id) {
			return nil, fmt.Errorf("tasks: task %d: %w", id, domain.ErrNotFound)
		}
		return forest, nil
	})
	if err != nil {
		return err
	}
	s.log.Debug("tasks: marked %d done", id)
	return nil
}

// FindByTitle resolves free text to an open task id.
func (s *FileStore) FindByTitle(_ context.Context, query string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := MatchTitle(s.tasks, query)
	if !ok {
		return 0, fmt.Errorf("tasks: no open task matches %q: %w", query, domain.ErrNotFound)
	}
	return id, nil
}

// FindDueWithinDays returns open tasks due between today and today+days.
func (s *FileStore) FindDueWithinDays(_ context.Context, days int) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return DueWithinDays(s.tasks, s.now(), days), nil
}

// TaskTitle returns the title of the task with the given id.
func (s *FileStore) TaskTitle(_ context.Context, id int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := Find(s.tasks, id)
	if !ok {
		return "", fmt.Errorf("tasks: task %d: %w", id, domain.ErrNotFound)
	}
	return t.Title, nil
}

// Summary renders the open tasks for a model prompt.
func (s *FileStore) Summary(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary(s.tasks), nil
}

// Pending counts open tasks.
func (s *FileStore) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PendingCount(s.tasks)
}

// Reload re-reads the file. On a parse error the in-memory copy is kept.
func (s *FileStore) Reload() error {
	tasks, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	s.log.Info("tasks: reloaded %s (%d top-level tasks)", s.path, len(tasks))
	return nil
}

// Watch reloads the store whenever the file changes on disk. Blocks until
// ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tasks: creating watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and our own saves replace the file.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("tasks: watching %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)
	s.log.Debug("tasks: watching %s", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("tasks: reload after external edit failed: %v", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("tasks: watcher error: %v", err)
		}
	}
}

// update applies fn to a private copy of the forest, saves the result
// and swaps it in. A failing fn or save leaves the store untouched.
func (s *FileStore) update(fn func([]domain.Task) ([]domain.Task, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working, err := clone(s.tasks)
	if err != nil {
		return err
	}
	next, err := fn(working)
	if err != nil {
		return err
	}
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	s.tasks = next
	return nil
}

// ── file helpers ─────────────────────────────────────────────────

func readFile(path string) ([]domain.Task, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tasks: reading %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Task{}, nil
	}

	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("tasks: parsing %s: %w", path, err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func writeFile(path string, tasks []domain.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("tasks: encoding: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("tasks: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("tasks: writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tasks: closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("tasks: replacing %s: %w", path, err)
	}
	return nil
}

// clone deep-copies a forest through its JSON form, which is exactly the
// data the store owns.
func clone(tasks []domain.Task) ([]domain.Task, error) {
	data, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("tasks: copying: %w", err)
	}
	var out []domain.Task
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("tasks: copying: %w", err)
	}
	if out == nil {
		out = []domain.Task{}
	}
	return out, nil
}
