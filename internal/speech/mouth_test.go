package speech

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// recordingSink collects spoken text and fails on demand.
type recordingSink struct {
	mu     sync.Mutex
	spoken []string
	fail   map[string]bool
}

func (s *recordingSink) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[text] {
		return errors.New("device busy")
	}
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *recordingSink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMouth(sink *recordingSink, opts ...MouthOption) *Mouth {
	log := logger.New(logger.LevelOff, nil)
	base := []MouthOption{WithMonologueCooldown(0), WithSuppressAfterUser(0)}
	return NewMouth(sink, log, append(base, opts...)...)
}

// drain starts the mouth on an already-filled queue and waits for it to
// finish, which makes the dequeue order deterministic.
func drain(t *testing.T, m *Mouth) {
	t.Helper()
	m.Close()
	m.Start(context.Background())

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("mouth did not drain")
	}
}

func waitForSpoken(t *testing.T, sink *recordingSink, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.got()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d spoken items, got %v", n, sink.got())
}

func waitForDropped(t *testing.T, m *Mouth, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, dropped := m.Stats(); dropped >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d dropped items", n)
}

func TestMouthUserBeforeMonologue(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMouth(sink)

	m.SayMonologue("mono")
	m.SayUser("user")
	drain(t, m)

	got := sink.got()
	if len(got) == 0 || got[0] != "user" {
		t.Fatalf("expected user first, got %v", got)
	}
}

func TestMouthPriorityOrder(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMouth(sink)

	m.SayMonologue("mono")
	m.SayAlert("alert-1")
	m.SayUser("user-1")
	m.SayAlert("alert-2")
	m.SayUser("user-2")
	drain(t, m)

	want := []string{"user-1", "user-2", "alert-1", "alert-2", "mono"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestMouthAlertBeatsMonologue(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMouth(sink)

	m.SayMonologue("mono")
	m.SayAlert("alert")
	drain(t, m)

	want := []string{"alert", "mono"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestMouthSuppressesMonologueAfterUser(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	m := newTestMouth(sink, WithSuppressAfterUser(time.Minute), WithClock(clock.Now))

	m.SayUser("hi")
	m.SayMonologue("mono")
	drain(t, m)

	want := []string{"hi"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %v, want %v", got, want)
	}
	if _, dropped := m.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestMouthMarkUserActionSuppresses(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	m := newTestMouth(sink, WithSuppressAfterUser(time.Minute), WithClock(clock.Now))

	m.MarkUserAction()
	m.SayMonologue("mono")
	m.SayAlert("alert")
	drain(t, m)

	want := []string{"alert"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %v, want %v", got, want)
	}
}

func TestMouthMonologueCooldown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	sink := &recordingSink{}
	m := newTestMouth(sink, WithMonologueCooldown(3*time.Minute), WithClock(clock.Now))

	m.Start(context.Background())

	m.SayMonologue("first")
	waitForSpoken(t, sink, 1)

	clock.Advance(time.Minute)
	m.SayMonologue("too soon")
	waitForDropped(t, m, 1)

	clock.Advance(2 * time.Minute)
	m.SayMonologue("second")

	m.Close()
	m.Wait()

	want := []string{"first", "second"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %v, want %v", got, want)
	}
}

func TestMouthSinkFailureContinues(t *testing.T) {
	sink := &recordingSink{fail: map[string]bool{"broken": true}}
	m := newTestMouth(sink)

	m.SayUser("broken")
	m.SayUser("fine")
	drain(t, m)

	want := []string{"fine"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %v, want %v", got, want)
	}
	if spoken, _ := m.Stats(); spoken != 1 {
		t.Errorf("spoken count = %d, want 1", spoken)
	}
}

func TestMouthDropsAfterClose(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMouth(sink)

	m.SayUser("before")
	m.Close()
	m.SayUser("after")
	m.Start(context.Background())
	m.Wait()

	want := []string{"before"}
	if got := sink.got(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %v, want %v", got, want)
	}
}

func TestMouthIgnoresBlankText(t *testing.T) {
	m := newTestMouth(&recordingSink{})

	m.SayUser("   ")
	m.Say("text", Priority(42))

	if n := m.QueueLen(); n != 0 {
		t.Errorf("QueueLen = %d, want 0", n)
	}
}

func TestMouthStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := newTestMouth(&recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}

func TestMouthWaitWithoutStart(t *testing.T) {
	m := newTestMouth(&recordingSink{})
	m.Close()
	m.Wait() // must not block
}

func TestTruncateKeepsRunes(t *testing.T) {
	got := truncate("ことのはです、よろしくお願いします", 8)
	if got != "ことのはで..." {
		t.Errorf("truncate = %q", got)
	}
}
