// Package assistant is Kotonoha's dispatch loop. It owns no state of its
// own beyond the chat history: it routes each input line, scan tick and
// announce tick to the component that handles it, one event at a time.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/conversation"
	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/reminder"
	"github.com/hammamikhairi/kotonoha/internal/speech"
	"github.com/hammamikhairi/kotonoha/internal/tasks"
)

// DefaultHistoryLimit is how many chat turns (user and assistant lines)
// are sent back to the model after the persona seed.
const DefaultHistoryLimit = 20

// Option configures the Assistant.
type Option func(*Assistant)

// WithScanInterval sets how often due tasks are scanned.
func WithScanInterval(d time.Duration) Option {
	return func(a *Assistant) { a.scanInterval = d }
}

// WithAnnounceInterval sets how often the time is announced.
func WithAnnounceInterval(d time.Duration) Option {
	return func(a *Assistant) { a.announceInterval = d }
}

// WithClock replaces time.Now for ticks handled by Run.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// WithPersona seeds the chat history with a system prompt and an opening
// line from the assistant. Both survive history trimming.
func WithPersona(systemPrompt, greeting string) Option {
	return func(a *Assistant) {
		a.seed = a.seed[:0]
		if systemPrompt != "" {
			a.seed = append(a.seed, domain.ChatMessage{Role: "system", Content: systemPrompt})
		}
		if greeting != "" {
			a.seed = append(a.seed, domain.ChatMessage{Role: "assistant", Content: greeting})
		}
	}
}

// WithHistoryLimit caps the chat turns kept after the seed.
func WithHistoryLimit(n int) Option {
	return func(a *Assistant) { a.historyLimit = n }
}

// WithNotifier sets where silent output such as task listings is printed.
func WithNotifier(n domain.Notifier) Option {
	return func(a *Assistant) { a.screen = n }
}

// Assistant ties the task store, the classifier and the speech queue
// together.
type Assistant struct {
	store      domain.TaskStore
	classifier domain.Classifier
	speaker    domain.Speaker
	screen     domain.Notifier
	log        *logger.Logger

	parser  *conversation.CommandParser
	scanner *reminder.Scanner
	confirm *reminder.Confirmation
	chatter *reminder.Chatter

	now              func() time.Time
	scanInterval     time.Duration
	announceInterval time.Duration

	seed         []domain.ChatMessage
	history      []domain.ChatMessage
	historyLimit int
}

// New wires the dispatch loop. The scanner, confirmation and chatter are
// built by the caller so their own options stay configurable.
func New(
	store domain.TaskStore,
	classifier domain.Classifier,
	speaker domain.Speaker,
	scanner *reminder.Scanner,
	confirm *reminder.Confirmation,
	chatter *reminder.Chatter,
	log *logger.Logger,
	opts ...Option,
) *Assistant {
	a := &Assistant{
		store:            store,
		classifier:       classifier,
		speaker:          speaker,
		screen:           discard{},
		log:              log,
		parser:           conversation.NewCommandParser(log),
		scanner:          scanner,
		confirm:          confirm,
		chatter:          chatter,
		now:              time.Now,
		scanInterval:     reminder.DefaultScanInterval,
		announceInterval: reminder.DefaultAnnounceInterval,
		historyLimit:     DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ── Loop ─────────────────────────────────────────────────────────

// Run handles events until ctx is cancelled, lines is closed or the user
// says exit. The caller closes the speech queue afterwards.
func (a *Assistant) Run(ctx context.Context, lines <-chan string) error {
	scan := time.NewTicker(a.scanInterval)
	defer scan.Stop()
	announce := time.NewTicker(a.announceInterval)
	defer announce.Stop()

	a.log.Info("assistant: running (scan=%s, announce=%s)", a.scanInterval, a.announceInterval)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("assistant: interrupted")
			return nil

		case line, ok := <-lines:
			if !ok {
				a.log.Info("assistant: input closed")
				return nil
			}
			if a.HandleLine(ctx, line) {
				a.log.Info("assistant: exit requested")
				return nil
			}

		case <-scan.C:
			a.ScanTick(ctx, a.now())

		case <-announce.C:
			a.AnnounceTick(a.now())
		}
	}
}

// Greet speaks the startup greeting with the pending task count.
func (a *Assistant) Greet(ctx context.Context) {
	pending := 0
	list, err := a.store.List(ctx)
	if err != nil {
		a.log.Warn("assistant: listing tasks for greeting: %v", err)
	}
	for _, t := range list {
		if !t.Done {
			pending++
		}
	}
	a.speaker.SayUser(speech.LineGreeting(pending))
}

// ScanTick expires a stale question, then looks for a due task unless a
// question is still open. An open question only refreshes the due count.
func (a *Assistant) ScanTick(ctx context.Context, now time.Time) {
	a.confirm.Expire(now)
	if p, open := a.confirm.Pending(); open {
		a.log.Debug("assistant: skipping scan, task %d awaits an answer", p.TaskID)
		if _, err := a.scanner.Refresh(ctx); err != nil {
			a.log.Warn("assistant: %v", err)
		}
		return
	}

	p, ok, err := a.scanner.Scan(ctx, now)
	if err != nil {
		a.log.Warn("assistant: %v", err)
		return
	}
	if ok {
		a.confirm.Offer(p)
	}
}

// AnnounceTick submits the periodic monologue.
func (a *Assistant) AnnounceTick(now time.Time) {
	a.chatter.Announce(now)
}

// HandleLine routes one line of user input. It returns true when the user
// asked to quit.
func (a *Assistant) HandleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	a.speaker.MarkUserAction()

	// An open question swallows the next line, whatever it says.
	if a.confirm.Answer(ctx, line) {
		return false
	}

	cmd := a.parser.Parse(line)
	switch cmd.Kind {
	case conversation.CmdExit:
		a.speaker.SayUser(speech.LineBye())
		return true
	case conversation.CmdHelp:
		a.speaker.SayUser(speech.LineHelp())
	case conversation.CmdList:
		a.listTasks(ctx)
	case conversation.CmdAdd:
		a.addTask(ctx, cmd.Title)
	case conversation.CmdDone:
		a.completeByID(ctx, cmd)
	default:
		a.classify(ctx, line)
	}
	return false
}

// Status reports what a status bar shows: the open question's task title
// (empty when none) and the due-task count from the last scan.
func (a *Assistant) Status(ctx context.Context) (question string, due int) {
	if p, open := a.confirm.Pending(); open {
		title, err := a.store.TaskTitle(ctx, p.TaskID)
		if err != nil {
			title = "?"
		}
		question = title
	}
	return question, a.scanner.DueCount()
}

// ── Routing ──────────────────────────────────────────────────────

func (a *Assistant) classify(ctx context.Context, line string) {
	label, err := a.classifier.Classify(ctx, line)
	if err != nil {
		a.log.Error("assistant: classify %q: %v", line, err)
		a.speaker.SayUser(speech.LineClassifyFailed())
		return
	}
	a.log.Debug("assistant: %q classified as %s", line, label)

	if label == domain.IntentTask {
		a.taskIntent(ctx, line)
		return
	}
	a.chat(ctx, line)
}

func (a *Assistant) taskIntent(ctx context.Context, line string) {
	action, err := a.classifier.TaskAction(ctx, line)
	if err != nil {
		a.log.Error("assistant: task action for %q: %v", line, err)
		a.speaker.SayUser(speech.LineAIError())
		return
	}

	switch action {
	case domain.ActionAdd:
		title, err := a.classifier.ExtractTitle(ctx, line)
		if err != nil {
			a.log.Error("assistant: extract title from %q: %v", line, err)
			a.speaker.SayUser(speech.LineAIError())
			return
		}
		if title == "" {
			a.speaker.SayUser(speech.LineTaskNotFound())
			return
		}
		a.addTask(ctx, title)
	case domain.ActionComplete:
		a.completeByTitle(ctx, line)
	case domain.ActionList:
		a.listTasks(ctx)
	default:
		a.speaker.SayUser(speech.LineNoTaskAction())
	}
}

func (a *Assistant) chat(ctx context.Context, line string) {
	a.history = append(a.history, domain.ChatMessage{Role: "user", Content: line})
	a.trimHistory()

	reply, err := a.classifier.Reply(ctx, a.conversation())
	if err != nil {
		a.log.Error("assistant: chat reply: %v", err)
		a.speaker.SayUser(speech.LineAIError())
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		a.speaker.SayUser(speech.LineAIError())
		return
	}
	a.history = append(a.history, domain.ChatMessage{Role: "assistant", Content: reply})
	a.trimHistory()
	a.speaker.SayUser(reply)
}

// conversation is the seed followed by the recent turns.
func (a *Assistant) conversation() []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(a.seed)+len(a.history))
	out = append(out, a.seed...)
	return append(out, a.history...)
}

func (a *Assistant) trimHistory() {
	if a.historyLimit > 0 && len(a.history) > a.historyLimit {
		a.history = append(a.history[:0], a.history[len(a.history)-a.historyLimit:]...)
	}
}

// ── Task operations ──────────────────────────────────────────────

func (a *Assistant) addTask(ctx context.Context, title string) {
	task, err := a.store.Add(ctx, title)
	switch {
	case errors.Is(err, domain.ErrEmptyTitle):
		a.speaker.SayUser(speech.LineEmptyTitle())
	case err != nil:
		a.log.Error("assistant: add %q: %v", title, err)
		a.speaker.SayUser(speech.LineStoreError())
	default:
		a.log.Info("assistant: added task %d %q", task.ID, task.Title)
		a.speaker.SayUser(speech.LineTaskAdded(task.Title))
	}
}

func (a *Assistant) completeByID(ctx context.Context, cmd conversation.Command) {
	if cmd.BadID {
		a.speaker.SayUser(speech.LineBadID())
		return
	}
	title, _ := a.store.TaskTitle(ctx, cmd.ID)
	err := a.store.MarkDone(ctx, cmd.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.speaker.SayUser(speech.LineTaskNotFoundID(cmd.ID))
	case err != nil:
		a.log.Error("assistant: done %d: %v", cmd.ID, err)
		a.speaker.SayUser(speech.LineStoreError())
	case title != "":
		a.speaker.SayUser(speech.LineTaskDone(title))
	default:
		a.speaker.SayUser(speech.LineTaskDoneID(cmd.ID))
	}
}

// completeByTitle resolves the task from the extracted title, falling back
// to the whole line when extraction fails or matches nothing.
func (a *Assistant) completeByTitle(ctx context.Context, line string) {
	queries := []string{line}
	if title, err := a.classifier.ExtractTitle(ctx, line); err != nil {
		a.log.Warn("assistant: extract title from %q: %v", line, err)
	} else if title != "" && title != line {
		queries = []string{title, line}
	}

	id, found := 0, false
	for _, q := range queries {
		got, err := a.store.FindByTitle(ctx, q)
		if err == nil {
			id, found = got, true
			break
		}
		if !errors.Is(err, domain.ErrNotFound) {
			a.log.Error("assistant: find %q: %v", q, err)
			a.speaker.SayUser(speech.LineStoreError())
			return
		}
	}
	if !found {
		a.speaker.SayUser(speech.LineTaskNotFound())
		return
	}

	a.completeByID(ctx, conversation.Command{Kind: conversation.CmdDone, ID: id})
}

func (a *Assistant) listTasks(ctx context.Context) {
	list, err := a.store.List(ctx)
	if err != nil {
		a.log.Error("assistant: list: %v", err)
		a.speaker.SayUser(speech.LineStoreError())
		return
	}
	pending := 0
	for _, t := range list {
		if !t.Done {
			pending++
		}
	}
	if len(list) > 0 {
		if err := a.screen.Notify(ctx, tasks.FormatList(list, a.now())); err != nil {
			a.log.Warn("assistant: printing list: %v", err)
		}
	}
	a.speaker.SayUser(speech.LineTaskCount(pending))
}

// discard is the default screen when none is configured.
type discard struct{}

func (discard) Notify(context.Context, string) error       { return nil }
func (discard) NotifyUrgent(context.Context, string) error { return nil }
