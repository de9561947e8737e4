package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/conversation"
	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/gpt"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/reminder"
	"github.com/hammamikhairi/kotonoha/internal/speech"
	"github.com/hammamikhairi/kotonoha/internal/storage"
	"github.com/hammamikhairi/kotonoha/internal/tasks"
)

// ── Fakes ────────────────────────────────────────────────────────

type utterance struct {
	tier string
	text string
}

type recordingSpeaker struct {
	mu   sync.Mutex
	said []utterance
}

func (r *recordingSpeaker) add(tier, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, utterance{tier: tier, text: text})
}

func (r *recordingSpeaker) SayUser(text string)      { r.add("user", text) }
func (r *recordingSpeaker) SayAlert(text string)     { r.add("alert", text) }
func (r *recordingSpeaker) SayMonologue(text string) { r.add("monologue", text) }
func (r *recordingSpeaker) MarkUserAction()          {}

func (r *recordingSpeaker) take() []utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.said
	r.said = nil
	return out
}

func (r *recordingSpeaker) has(tier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.said {
		if u.tier == tier {
			return true
		}
	}
	return false
}

// collectingScreen records silent output.
type collectingScreen struct {
	mu    sync.Mutex
	lines []string
}

func (c *collectingScreen) Notify(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, msg)
	return nil
}

func (c *collectingScreen) NotifyUrgent(ctx context.Context, msg string) error {
	return c.Notify(ctx, msg)
}

// failingClassifier fails every call.
type failingClassifier struct{ err error }

func (f failingClassifier) Classify(context.Context, string) (domain.IntentLabel, error) {
	return domain.IntentUnknown, f.err
}
func (f failingClassifier) TaskAction(context.Context, string) (domain.TaskAction, error) {
	return domain.ActionNone, f.err
}
func (f failingClassifier) ExtractTitle(context.Context, string) (string, error) { return "", f.err }
func (f failingClassifier) Reply(context.Context, []domain.ChatMessage) (string, error) {
	return "", f.err
}

// historyClassifier chats and remembers what history it was sent.
type historyClassifier struct {
	gpt.MockAgent
	sent [][]domain.ChatMessage
}

func (h *historyClassifier) Reply(_ context.Context, history []domain.ChatMessage) (string, error) {
	h.sent = append(h.sent, append([]domain.ChatMessage(nil), history...))
	return "返事", nil
}

// countingClassifier counts Classify calls and otherwise behaves like the
// keyword agent.
type countingClassifier struct {
	gpt.MockAgent
	mu        sync.Mutex
	classified int
}

func (c *countingClassifier) Classify(ctx context.Context, text string) (domain.IntentLabel, error) {
	c.mu.Lock()
	c.classified++
	c.mu.Unlock()
	return c.MockAgent.Classify(ctx, text)
}

func (c *countingClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classified
}

// slowClassifier answers every line as chat after a delay, giving up when
// ctx ends, like the HTTP agent does.
type slowClassifier struct {
	gpt.MockAgent
	delay time.Duration
}

func (s slowClassifier) wait(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s slowClassifier) Classify(ctx context.Context, _ string) (domain.IntentLabel, error) {
	if err := s.wait(ctx); err != nil {
		return domain.IntentUnknown, err
	}
	return domain.IntentChat, nil
}

func (s slowClassifier) Reply(ctx context.Context, _ []domain.ChatMessage) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return "こんにちは、お元気ですか？", nil
}

// ── Helpers ──────────────────────────────────────────────────────

var start = time.Date(2025, 6, 10, 9, 0, 0, 0, time.Local)

func newTestAssistant(t *testing.T, store domain.TaskStore, cls domain.Classifier, opts ...Option) (*Assistant, *recordingSpeaker) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	spk := &recordingSpeaker{}
	a := New(store, cls, spk,
		reminder.NewScanner(store, spk, log),
		reminder.NewConfirmation(store, spk, log, reminder.WithAnswerTimeout(10*time.Minute)),
		reminder.NewChatter(spk, log),
		log,
		append([]Option{WithClock(func() time.Time { return start })}, opts...)...,
	)
	return a, spk
}

func memStore(forest ...domain.Task) *storage.MemoryStore {
	return storage.NewMemoryStore(logger.New(logger.LevelOff, nil),
		storage.WithClock(func() time.Time { return start }),
		storage.WithTasks(forest...),
	)
}

func dueToday(id int, title string) domain.Task {
	t := domain.NewTask(id, title)
	d := domain.NewDate(start)
	t.DueDate = &d
	return t
}

func expectSaid(t *testing.T, spk *recordingSpeaker, tier, text string) {
	t.Helper()
	said := spk.take()
	if len(said) != 1 || said[0].tier != tier || said[0].text != text {
		t.Fatalf("said %+v, want [%s %q]", said, tier, text)
	}
}

// ── Manual commands ──────────────────────────────────────────────

func TestManualCommands(t *testing.T) {
	store := memStore()
	screen := &collectingScreen{}
	a, spk := newTestAssistant(t, store, gpt.NewMockAgent(), WithNotifier(screen))
	ctx := context.Background()

	a.HandleLine(ctx, "todo 買い物")
	expectSaid(t, spk, "user", speech.LineTaskAdded("買い物"))

	a.HandleLine(ctx, "todo")
	expectSaid(t, spk, "user", speech.LineEmptyTitle())

	a.HandleLine(ctx, "list")
	expectSaid(t, spk, "user", speech.LineTaskCount(1))
	if len(screen.lines) != 1 || !strings.Contains(screen.lines[0], "1: 買い物") {
		t.Errorf("screen = %q", screen.lines)
	}

	a.HandleLine(ctx, "done abc")
	expectSaid(t, spk, "user", speech.LineBadID())

	a.HandleLine(ctx, "done 9")
	expectSaid(t, spk, "user", speech.LineTaskNotFoundID(9))

	a.HandleLine(ctx, "done 1")
	expectSaid(t, spk, "user", speech.LineTaskDone("買い物"))

	a.HandleLine(ctx, "help")
	expectSaid(t, spk, "user", speech.LineHelp())

	if a.HandleLine(ctx, "   ") {
		t.Fatal("blank line ended the loop")
	}
	if len(spk.take()) != 0 {
		t.Fatal("blank line produced speech")
	}

	if !a.HandleLine(ctx, "exit") {
		t.Fatal("exit did not end the loop")
	}
	expectSaid(t, spk, "user", speech.LineBye())
}

// ── Classifier routing ───────────────────────────────────────────

func TestClassifierRouting(t *testing.T) {
	store := memStore()
	a, spk := newTestAssistant(t, store, gpt.NewMockAgent())
	ctx := context.Background()

	a.HandleLine(ctx, "統合テストタスクをするの覚えておいて")
	expectSaid(t, spk, "user", speech.LineTaskAdded("統合テストタスク"))

	a.HandleLine(ctx, "統合テストタスクが完了しました。")
	expectSaid(t, spk, "user", speech.LineTaskDone("統合テストタスク"))

	a.HandleLine(ctx, "タスクって何？")
	expectSaid(t, spk, "user", speech.LineNoTaskAction())

	a.HandleLine(ctx, "牛乳のタスクが完了")
	expectSaid(t, spk, "user", speech.LineTaskNotFound())

	a.HandleLine(ctx, "今日はいい天気ですね")
	expectSaid(t, spk, "user", gpt.MockReply)
}

func TestClassifierFailureSpeaksFallback(t *testing.T) {
	a, spk := newTestAssistant(t, memStore(), failingClassifier{err: errors.New("timeout")})

	if a.HandleLine(context.Background(), "明日の予定は？") {
		t.Fatal("failure ended the loop")
	}
	expectSaid(t, spk, "user", speech.LineClassifyFailed())
}

func TestChatHistoryIsBounded(t *testing.T) {
	cls := &historyClassifier{}
	a, _ := newTestAssistant(t, memStore(), cls,
		WithPersona("system prompt", "greeting"),
		WithHistoryLimit(4),
	)
	ctx := context.Background()

	for _, line := range []string{"一", "二", "三", "四", "五"} {
		a.HandleLine(ctx, line)
	}

	last := cls.sent[len(cls.sent)-1]
	if len(last) != 6 {
		t.Fatalf("sent %d messages, want seed 2 + 4 turns", len(last))
	}
	if last[0].Role != "system" || last[1].Content != "greeting" {
		t.Errorf("seed not kept: %+v", last[:2])
	}
	if end := last[len(last)-1]; end.Role != "user" || end.Content != "五" {
		t.Errorf("last message = %+v", end)
	}
}

// ── Reminders ────────────────────────────────────────────────────

func TestPendingQuestionGatesInput(t *testing.T) {
	store := memStore(dueToday(1, "週報提出"), dueToday(2, "資料作成"))
	a, spk := newTestAssistant(t, store, gpt.NewMockAgent())
	ctx := context.Background()

	a.ScanTick(ctx, start)
	said := spk.take()
	if len(said) != 1 || said[0].tier != "alert" || !strings.Contains(said[0].text, "週報提出") {
		t.Fatalf("scan said %+v", said)
	}

	// Not an answer: re-prompted, never routed as a command.
	a.HandleLine(ctx, "todo 牛乳")
	expectSaid(t, spk, "alert", speech.LineAnswerYesNo())
	if list, _ := store.List(ctx); len(list) != 2 {
		t.Fatalf("command ran while a question was open: %+v", list)
	}

	// No second reminder while the first question is open.
	a.ScanTick(ctx, start.Add(5*time.Minute))
	if said := spk.take(); len(said) != 0 {
		t.Fatalf("scanned while pending: %+v", said)
	}
	if q, _ := a.Status(ctx); q != "週報提出" {
		t.Errorf("status question = %q", q)
	}

	a.HandleLine(ctx, "はい")
	expectSaid(t, spk, "user", speech.LineConfirmStart("週報提出"))

	// Idle again: the next tick may ask about the other task.
	a.ScanTick(ctx, start.Add(6*time.Minute))
	said = spk.take()
	if len(said) != 1 || !strings.Contains(said[0].text, "資料作成") {
		t.Fatalf("second scan said %+v", said)
	}
	if _, due := a.Status(ctx); due != 2 {
		t.Errorf("status due = %d, want 2", due)
	}
}

func TestPendingQuestionSkipsClassifier(t *testing.T) {
	store := memStore(dueToday(1, "週報提出"))
	cls := &countingClassifier{}
	a, spk := newTestAssistant(t, store, cls)
	ctx := context.Background()

	a.ScanTick(ctx, start)
	spk.take()

	a.HandleLine(ctx, "今日の天気は？")
	expectSaid(t, spk, "alert", speech.LineAnswerYesNo())
	if n := cls.calls(); n != 0 {
		t.Fatalf("classifier called %d times while a question was open", n)
	}

	a.HandleLine(ctx, "いいえ")
	expectSaid(t, spk, "user", speech.LineDefer())

	a.HandleLine(ctx, "今日の天気は？")
	if n := cls.calls(); n != 1 {
		t.Errorf("classifier calls after answering = %d, want 1", n)
	}
}

func TestDueCountRefreshedWhileQuestionOpen(t *testing.T) {
	store := memStore(dueToday(1, "週報提出"), dueToday(2, "資料作成"))
	a, spk := newTestAssistant(t, store, gpt.NewMockAgent())
	ctx := context.Background()

	a.ScanTick(ctx, start)
	spk.take()
	if _, due := a.Status(ctx); due != 2 {
		t.Fatalf("due = %d, want 2", due)
	}

	// Finished elsewhere while the question about task 1 is still open.
	if err := store.MarkDone(ctx, 2); err != nil {
		t.Fatal(err)
	}
	a.ScanTick(ctx, start.Add(time.Minute))
	if said := spk.take(); len(said) != 0 {
		t.Fatalf("scanned while pending: %+v", said)
	}
	q, due := a.Status(ctx)
	if q != "週報提出" || due != 1 {
		t.Errorf("status = (%q, %d), want (週報提出, 1)", q, due)
	}
}

func TestStaleQuestionExpires(t *testing.T) {
	store := memStore(dueToday(1, "週報提出"))
	a, spk := newTestAssistant(t, store, gpt.NewMockAgent())
	ctx := context.Background()

	a.ScanTick(ctx, start)
	spk.take()

	// Past the answer timeout but inside the notify cooldown: the question
	// is dropped and nothing new is asked.
	a.ScanTick(ctx, start.Add(10*time.Minute))
	if said := spk.take(); len(said) != 0 {
		t.Fatalf("said %+v", said)
	}

	// "はい" is now ordinary chat.
	a.HandleLine(ctx, "はい")
	expectSaid(t, spk, "user", gpt.MockReply)
}

func TestGreet(t *testing.T) {
	a, spk := newTestAssistant(t, memStore(domain.NewTask(1, "a"), domain.NewTask(2, "b")), gpt.NewMockAgent())
	a.Greet(context.Background())
	expectSaid(t, spk, "user", speech.LineGreeting(2))
}

// ── Run ──────────────────────────────────────────────────────────

func TestRunCLIFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	store, err := tasks.NewFileStore(path, logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := newTestAssistant(t, store, gpt.NewMockAgent(),
		WithScanInterval(time.Hour), WithAnnounceInterval(time.Hour))

	lines := make(chan string, 3)
	lines <- "統合テストタスクをするの覚えておいて"
	lines <- "統合テストタスクが完了しました。"
	lines <- "exit"

	if err := a.Run(context.Background(), lines); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"title": "統合テストタスク"`, `"done": true`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("task file missing %s:\n%s", want, data)
		}
	}
}

func TestRunStopsOnCancelAndClosedInput(t *testing.T) {
	a, _ := newTestAssistant(t, memStore(), gpt.NewMockAgent())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, make(chan string)) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	closed := make(chan string)
	close(closed)
	if err := a.Run(context.Background(), closed); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunFinishesLineAtEndOfInput(t *testing.T) {
	a, spk := newTestAssistant(t, memStore(), slowClassifier{delay: 50 * time.Millisecond},
		WithScanInterval(time.Hour), WithAnnounceInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines := conversation.ReadLines(ctx, strings.NewReader("こんにちは\n"))

	if err := a.Run(ctx, lines); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectSaid(t, spk, "user", "こんにちは、お元気ですか？")
}

func TestRunTicks(t *testing.T) {
	a, spk := newTestAssistant(t, memStore(dueToday(1, "週報提出")), gpt.NewMockAgent(),
		WithScanInterval(10*time.Millisecond), WithAnnounceInterval(15*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, make(chan string)) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !(spk.has("alert") && spk.has("monologue")) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !spk.has("alert") || !spk.has("monologue") {
		t.Fatalf("ticks did not fire: %+v", spk.take())
	}
}
