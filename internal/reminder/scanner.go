// Package reminder raises due-task reminders and tracks the yes/no
// question that follows them.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/speech"
)

// Defaults for the due-task scan.
const (
	DefaultLookaheadDays  = 1
	DefaultNotifyCooldown = 30 * time.Minute
	DefaultScanInterval   = time.Minute
)

// Option configures the scanner.
type Option func(*Scanner)

// WithLookaheadDays sets how many days past today count as "due soon".
func WithLookaheadDays(n int) Option {
	return func(s *Scanner) {
		s.lookaheadDays = n
	}
}

// WithNotifyCooldown sets the minimum time between two reminders for the
// same task.
func WithNotifyCooldown(d time.Duration) Option {
	return func(s *Scanner) {
		s.notifyCooldown = d
	}
}

// Scanner looks for open tasks due within the look-ahead window and
// announces at most one of them per call.
type Scanner struct {
	store          domain.TaskStore
	speaker        domain.Speaker
	log            *logger.Logger
	lookaheadDays  int
	notifyCooldown time.Duration

	mu       sync.Mutex
	notified map[int]time.Time // task id -> last announced
	dueCount int               // candidates seen on the last scan
}

// NewScanner creates a due-task scanner.
func NewScanner(store domain.TaskStore, speaker domain.Speaker, log *logger.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		store:          store,
		speaker:        speaker,
		log:            log,
		lookaheadDays:  DefaultLookaheadDays,
		notifyCooldown: DefaultNotifyCooldown,
		notified:       make(map[int]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one tick. Candidates are tried soonest-due first, then by id.
// The first one outside its cooldown is announced at alert priority and
// returned as the confirmation to wait for; the rest wait for later ticks.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (domain.PendingConfirmation, bool, error) {
	candidates, err := s.candidates(ctx)
	if err != nil {
		return domain.PendingConfirmation{}, false, err
	}

	s.mu.Lock()
	s.dueCount = len(candidates)
	var picked *domain.Task
	for i := range candidates {
		t := &candidates[i]
		last, seen := s.notified[t.ID]
		if seen && now.Sub(last) < s.notifyCooldown {
			continue
		}
		s.notified[t.ID] = now
		picked = t
		break
	}
	s.mu.Unlock()

	if picked == nil {
		if len(candidates) > 0 {
			s.log.Debug("reminder: %d due tasks, all cooling down", len(candidates))
		}
		return domain.PendingConfirmation{}, false, nil
	}

	s.log.Info("reminder: announcing task %d %q (due %s)", picked.ID, picked.Title, picked.DueDate)
	s.speaker.SayAlert(speech.LineDueReminder(picked.Title, *picked.DueDate, now))

	return domain.PendingConfirmation{
		TaskID:  picked.ID,
		DueDate: *picked.DueDate,
		AskedAt: now,
	}, true, nil
}

// Refresh recounts the due tasks without announcing anything. Used while
// a question is open and Scan is skipped.
func (s *Scanner) Refresh(ctx context.Context) (int, error) {
	candidates, err := s.candidates(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.dueCount = len(candidates)
	s.mu.Unlock()
	return len(candidates), nil
}

// candidates returns the open dated tasks in the lookahead window,
// soonest due first, then by id.
func (s *Scanner) candidates(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.store.FindDueWithinDays(ctx, s.lookaheadDays)
	if err != nil {
		return nil, fmt.Errorf("reminder: finding due tasks: %w", err)
	}

	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Done || t.DueDate == nil {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DueDate.Time, out[j].DueDate.Time
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DueCount returns how many open tasks were due on the last scan or
// refresh.
func (s *Scanner) DueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dueCount
}

// LastNotified returns when the task was last announced.
func (s *Scanner) LastNotified(id int) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.notified[id]
	return t, ok
}
