package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/conversation"
	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/speech"
)

// DefaultAnswerTimeout is how long an unanswered reminder question stays
// open.
const DefaultAnswerTimeout = 15 * time.Minute

// ConfirmOption configures the confirmation state machine.
type ConfirmOption func(*Confirmation)

// WithAnswerTimeout sets how long a question waits for an answer. Zero or
// negative keeps it open until answered.
func WithAnswerTimeout(d time.Duration) ConfirmOption {
	return func(c *Confirmation) {
		c.timeout = d
	}
}

// Confirmation holds at most one open "start it now?" question. While one
// is open, every user line is read as its answer.
type Confirmation struct {
	store   domain.TaskStore
	speaker domain.Speaker
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending *domain.PendingConfirmation
}

// NewConfirmation creates an idle confirmation state machine.
func NewConfirmation(store domain.TaskStore, speaker domain.Speaker, log *logger.Logger, opts ...ConfirmOption) *Confirmation {
	c := &Confirmation{
		store:   store,
		speaker: speaker,
		log:     log,
		timeout: DefaultAnswerTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Offer opens a question. It replaces nothing: an already open question
// wins and Offer returns false.
func (c *Confirmation) Offer(p domain.PendingConfirmation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.log.Warn("confirm: question for task %d still open, ignoring task %d", c.pending.TaskID, p.TaskID)
		return false
	}
	c.pending = &p
	return true
}

// Pending returns the open question, if any.
func (c *Confirmation) Pending() (domain.PendingConfirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return domain.PendingConfirmation{}, false
	}
	return *c.pending, true
}

// Answer reads input as the reply to the open question. It returns false
// when nothing is pending, in which case the caller routes the line
// normally. Otherwise the line is consumed: yes and no close the question,
// anything else repeats it.
func (c *Confirmation) Answer(ctx context.Context, input string) bool {
	c.mu.Lock()
	p := c.pending
	if p == nil {
		c.mu.Unlock()
		return false
	}

	answer := conversation.ParseAnswer(input)
	if answer != conversation.AnswerOther {
		c.pending = nil
	}
	c.mu.Unlock()

	c.log.Debug("confirm: task %d answered %s (%q)", p.TaskID, answer, input)

	switch answer {
	case conversation.AnswerYes:
		title, err := c.store.TaskTitle(ctx, p.TaskID)
		if err != nil || title == "" {
			c.log.Debug("confirm: task %d title unavailable: %v", p.TaskID, err)
			c.speaker.SayUser(speech.LineConfirmStartGeneric())
		} else {
			c.speaker.SayUser(speech.LineConfirmStart(title))
		}
	case conversation.AnswerNo:
		c.speaker.SayUser(speech.LineDefer())
	default:
		c.speaker.SayAlert(speech.LineAnswerYesNo())
	}
	return true
}

// Expire drops the open question silently when it has waited longer than
// the answer timeout. It reports whether a question was dropped.
func (c *Confirmation) Expire(now time.Time) bool {
	if c.timeout <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || now.Sub(c.pending.AskedAt) < c.timeout {
		return false
	}
	c.log.Info("confirm: question for task %d timed out", c.pending.TaskID)
	c.pending = nil
	return true
}
