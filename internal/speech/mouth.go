package speech

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// Compile-time interface check.
var _ domain.Speaker = (*Mouth)(nil)

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithMonologueCooldown sets the minimum gap between two spoken monologues.
func WithMonologueCooldown(d time.Duration) MouthOption {
	return func(m *Mouth) {
		m.monologueCooldown = d
	}
}

// WithSuppressAfterUser sets how long monologues stay muted after the
// user last did something.
func WithSuppressAfterUser(d time.Duration) MouthOption {
	return func(m *Mouth) {
		m.suppressAfterUser = d
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) MouthOption {
	return func(m *Mouth) {
		m.now = now
	}
}

// Mouth is the central speech dispatcher. Every utterance in the process
// goes through it, and a single worker hands them to the sink one at a
// time: user replies first, then alerts, then monologue. Within a tier
// items are spoken in submission order.
//
// Monologue is the only tier that can be dropped. It is discarded when the
// user acted within the suppression window or when another monologue was
// spoken within the cooldown.
type Mouth struct {
	sink domain.AudioSink
	log  *logger.Logger
	now  func() time.Time

	monologueCooldown time.Duration
	suppressAfterUser time.Duration

	mu             sync.Mutex
	queues         [len(tiers)][]SpeechRequest // indexed by Priority
	notify         chan struct{}
	started        bool
	closed         bool
	speaking       bool
	lastUserAction time.Time // zero = never
	lastMonologue  time.Time // zero = never
	spoken         int
	dropped        int

	done chan struct{}
}

// NewMouth creates a speech dispatcher that renders through sink.
func NewMouth(sink domain.AudioSink, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		sink:              sink,
		log:               log,
		now:               time.Now,
		monologueCooldown: DefaultMonologueCooldown,
		suppressAfterUser: DefaultSuppressAfterUser,
		notify:            make(chan struct{}, 1),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Say queues text at the given priority. Non-blocking. Blank text and
// anything submitted after Close is dropped.
func (m *Mouth) Say(text string, priority Priority) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if priority < PriorityMonologue || priority > PriorityUser {
		m.log.Warn("mouth: unknown priority %d, dropping: %s", priority, truncate(text, 60))
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Debug("mouth: closed, dropping %s item: %s", priority, truncate(text, 60))
		return
	}
	now := m.now()
	if priority == PriorityUser {
		m.lastUserAction = now
	}
	req := newRequest(text, priority, now)
	m.queues[priority] = append(m.queues[priority], req)
	qLen := m.queueLenLocked()
	m.mu.Unlock()

	m.log.Debug("mouth: queued %s (priority=%s, queue_len=%d): %s", req.ID, priority, qLen, truncate(text, 60))
	m.signal()
}

// SayUser queues a reply to the user. It also counts as a user action.
func (m *Mouth) SayUser(text string) { m.Say(text, PriorityUser) }

// SayAlert queues a reminder.
func (m *Mouth) SayAlert(text string) { m.Say(text, PriorityAlert) }

// SayMonologue queues idle chatter.
func (m *Mouth) SayMonologue(text string) { m.Say(text, PriorityMonologue) }

// MarkUserAction records that the user did something, without speaking.
func (m *Mouth) MarkUserAction() {
	m.mu.Lock()
	m.lastUserAction = m.now()
	m.mu.Unlock()
}

// IsSpeaking returns true while the sink is rendering an utterance.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// QueueLen returns the number of pending speech requests across all tiers.
func (m *Mouth) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueLenLocked()
}

// Stats returns how many items were spoken and how many monologues were
// dropped so far.
func (m *Mouth) Stats() (spoken, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spoken, m.dropped
}

func (m *Mouth) queueLenLocked() int {
	n := 0
	for _, q := range m.queues {
		n += len(q)
	}
	return n
}

func (m *Mouth) signal() {
	select {
	case m.notify <- struct{}{}:
	default: // already signaled
	}
}

// ── Lifecycle ────────────────────────────────────────────────────

// Start launches the worker goroutine. Non-blocking. Calling it twice is
// a no-op.
func (m *Mouth) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.processLoop(ctx)
	m.log.Info("mouth started")
}

// Close stops accepting new speech. The worker finishes whatever is
// already queued and then exits.
func (m *Mouth) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// Done is closed once the worker has exited.
func (m *Mouth) Done() <-chan struct{} { return m.done }

// Wait blocks until the worker exits. It returns immediately if the
// worker was never started.
func (m *Mouth) Wait() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return
	}
	<-m.done
}

// processLoop speaks queued items one at a time until the queue is closed
// and empty or ctx is cancelled.
func (m *Mouth) processLoop(ctx context.Context) {
	defer close(m.done)

	for {
		if ctx.Err() != nil {
			m.log.Info("mouth stopped (context done)")
			return
		}

		req, ok, closed := m.dequeue()
		if ok {
			m.process(ctx, req)
			continue
		}
		if closed {
			m.log.Info("mouth stopped (queue drained)")
			return
		}

		select {
		case <-ctx.Done():
			m.log.Info("mouth stopped (context done)")
			return
		case <-m.notify:
		}
	}
}

// dequeue pops the head of the highest non-empty tier, applying the
// monologue policy. Suppressed monologues are discarded and the search
// continues.
func (m *Mouth) dequeue() (req SpeechRequest, ok bool, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		found := false
		for _, p := range tiers {
			if len(m.queues[p]) == 0 {
				continue
			}
			req = m.queues[p][0]
			m.queues[p][0] = SpeechRequest{}
			m.queues[p] = m.queues[p][1:]
			found = true
			break
		}
		if !found {
			return SpeechRequest{}, false, m.closed
		}

		if req.Priority == PriorityMonologue {
			now := m.now()
			if reason := m.suppressedLocked(now); reason != "" {
				m.dropped++
				m.log.Debug("mouth: dropped monologue %s (%s): %s", req.ID, reason, truncate(req.Text, 60))
				continue
			}
			m.lastMonologue = now
		}

		m.speaking = true
		return req, true, m.closed
	}
}

func (m *Mouth) suppressedLocked(now time.Time) string {
	if !m.lastUserAction.IsZero() && now.Sub(m.lastUserAction) < m.suppressAfterUser {
		return "user active"
	}
	if !m.lastMonologue.IsZero() && now.Sub(m.lastMonologue) < m.monologueCooldown {
		return "cooldown"
	}
	return ""
}

// process hands one request to the sink. Failures are logged and the
// worker moves on.
func (m *Mouth) process(ctx context.Context, req SpeechRequest) {
	waitTime := m.now().Sub(req.QueuedAt).Round(time.Millisecond)
	m.log.Debug("mouth: speaking %s (priority=%s, waited=%s): %s", req.ID, req.Priority, waitTime, truncate(req.Text, 60))

	err := m.sink.Speak(ctx, req.Text)

	m.mu.Lock()
	m.speaking = false
	if err == nil {
		m.spoken++
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error("mouth: speaking %s failed: %v", req.ID, err)
	}
}

// truncate shortens a string for logging without splitting a rune.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
