package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

func newTestStore(t *testing.T, content string) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	s, err := NewFileStore(path, logger.New(logger.LevelOff, nil), WithClock(func() time.Time { return june10 }))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

const seeded = `[
  {"id": 1, "title": "週報提出", "done": false, "due_date": "2025-06-10", "priority": null,
   "status": "not_started", "notes": null, "tags": [], "extensions": {"source": "import"},
   "subtasks": [
     {"id": 2, "title": "資料作成", "done": false, "due_date": "2025-06-11", "priority": 2,
      "status": "in_progress", "notes": "グラフも", "tags": ["work"], "subtasks": [], "extensions": {}}
   ]},
  {"id": 7, "title": "牛乳を買う", "done": true, "due_date": null, "priority": null,
   "status": "completed", "notes": null, "tags": [], "subtasks": [], "extensions": {}}
]`

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	list, err := s.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d", s.Pending())
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path, logger.New(logger.LevelOff, nil)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFileStoreAddPersists(t *testing.T) {
	s := newTestStore(t, seeded)
	ctx := context.Background()

	added, err := s.Add(ctx, "  統合テストタスク ")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added.ID != 8 || added.Title != "統合テストタスク" {
		t.Errorf("added = %+v", added)
	}

	reopened, err := NewFileStore(s.Path(), logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	title, err := reopened.TaskTitle(ctx, 8)
	if err != nil || title != "統合テストタスク" {
		t.Errorf("TaskTitle(8) = %q, %v", title, err)
	}
	// Fields the assistant never touches survive the round trip.
	data, _ := os.ReadFile(s.Path())
	for _, want := range []string{`"notes": "グラフも"`, `"source": "import"`, `"due_date": "2025-06-11"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("file lost %s:\n%s", want, data)
		}
	}
}

func TestFileStoreAddEmptyTitle(t *testing.T) {
	s := newTestStore(t, "")
	if _, err := s.Add(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyTitle) {
		t.Errorf("err = %v, want ErrEmptyTitle", err)
	}
}

func TestFileStoreMarkDoneNested(t *testing.T) {
	s := newTestStore(t, seeded)
	ctx := context.Background()

	if err := s.MarkDone(ctx, 2); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	if !strings.Contains(string(data), `"done": true`) || !strings.Contains(string(data), `"status": "completed"`) {
		t.Errorf("file not updated:\n%s", data)
	}

	if err := s.MarkDone(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("MarkDone(42) err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreQueries(t *testing.T) {
	s := newTestStore(t, seeded)
	ctx := context.Background()

	due, err := s.FindDueWithinDays(ctx, 1)
	if err != nil || len(due) != 2 {
		t.Fatalf("FindDueWithinDays = %v, %v", due, err)
	}

	id, err := s.FindByTitle(ctx, "資料作成が終わった")
	if err != nil || id != 2 {
		t.Errorf("FindByTitle = %d, %v", id, err)
	}
	if _, err := s.FindByTitle(ctx, "牛乳を買う"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("done task matched: %v", err)
	}

	if _, err := s.TaskTitle(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("TaskTitle(99) err = %v", err)
	}

	summary, _ := s.Summary(ctx)
	if !strings.Contains(summary, "週報提出") {
		t.Errorf("summary = %q", summary)
	}
	if s.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", s.Pending())
	}
}

func TestFileStoreWatchReloads(t *testing.T) {
	s := newTestStore(t, seeded)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond) // let the watcher register

	external := `[{"id": 1, "title": "外部で追加", "done": false, "due_date": null, "subtasks": []}]`
	if err := os.WriteFile(s.Path(), []byte(external), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if title, _ := s.TaskTitle(context.Background(), 1); title == "外部で追加" {
			cancel()
			if err := <-errCh; err != nil {
				t.Errorf("Watch: %v", err)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("store did not reload after external edit")
}
