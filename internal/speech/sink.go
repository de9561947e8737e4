// Package speech turns text into sound. The Mouth arbitrates which
// utterance plays next; sinks render a single utterance; the Ear turns
// microphone audio back into text.
package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.AudioSink = (*MockSink)(nil)
	_ domain.AudioSink = (*VoicevoxSink)(nil)
)

// ── Mock ─────────────────────────────────────────────────────────

// MockSink records every utterance instead of producing sound. It never
// fails. When out is non-nil each utterance is also echoed there.
type MockSink struct {
	mu     sync.Mutex
	spoken []string
	out    io.Writer
}

// NewMockSink creates a recording sink echoing to out (may be nil).
func NewMockSink(out io.Writer) *MockSink {
	return &MockSink{out: out}
}

// Speak records text.
func (s *MockSink) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	if s.out != nil {
		fmt.Fprintf(s.out, "[MOCK VOICE]: %s\n", text)
	}
	return nil
}

// Spoken returns a copy of everything recorded so far.
func (s *MockSink) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// Take returns everything recorded so far and clears the buffer.
func (s *MockSink) Take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.spoken
	s.spoken = nil
	return out
}

// ── VOICEVOX ─────────────────────────────────────────────────────

// Synthesizer renders text to WAV bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ClipPlayer plays one WAV clip to completion.
type ClipPlayer interface {
	Play(ctx context.Context, wav []byte) error
}

// SinkOption configures a VoicevoxSink.
type SinkOption func(*VoicevoxSink)

// WithChunkSize sets the approximate max rune count per synthesis request.
// Longer text is split at sentence boundaries and synthesized in parallel
// so playback doesn't stall between sentences. 0 disables chunking.
func WithChunkSize(n int) SinkOption {
	return func(s *VoicevoxSink) {
		s.chunkSize = n
	}
}

// WithCache sets the audio cache. nil disables caching.
func WithCache(c *AudioCache) SinkOption {
	return func(s *VoicevoxSink) {
		s.cache = c
	}
}

// VoicevoxSink synthesizes through VOICEVOX and plays through the sound
// card: chunk, synthesize in parallel, play in order.
type VoicevoxSink struct {
	tts       Synthesizer
	player    ClipPlayer
	cache     *AudioCache
	chunkSize int
	log       *logger.Logger
}

// NewVoicevoxSink wires a synthesizer and a player together.
func NewVoicevoxSink(tts Synthesizer, player ClipPlayer, log *logger.Logger, opts ...SinkOption) *VoicevoxSink {
	s := &VoicevoxSink{
		tts:       tts,
		player:    player,
		chunkSize: 120, // roughly two Japanese sentences
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak renders text and blocks until playback ends. Chunks that fail to
// synthesize are skipped; the error of the first failure is returned after
// the rest has played.
func (s *VoicevoxSink) Speak(ctx context.Context, text string) error {
	chunks := splitChunks(text, s.chunkSize)
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) > 1 {
		s.log.Debug("voicevox sink: split into %d chunks for parallel synthesis", len(chunks))
	}

	audioSlots := make([][]byte, len(chunks))
	synthErrs := make([]error, len(chunks))

	var eg errgroup.Group
	for i, chunk := range chunks {
		eg.Go(func() error {
			audio, err := s.synthesizeWithCache(ctx, chunk)
			if err != nil {
				synthErrs[i] = fmt.Errorf("chunk %d: %w", i, err)
				return nil
			}
			audioSlots[i] = audio
			return nil
		})
	}
	_ = eg.Wait()

	var firstErr error
	for i, audio := range audioSlots {
		if audio == nil {
			s.log.Error("voicevox sink: %v", synthErrs[i])
			if firstErr == nil {
				firstErr = synthErrs[i]
			}
			continue
		}
		if err := s.player.Play(ctx, audio); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("voicevox sink: chunk %d playback failed: %v", i, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d playback: %w", i, err)
			}
		}
	}
	return firstErr
}

func (s *VoicevoxSink) synthesizeWithCache(ctx context.Context, text string) ([]byte, error) {
	if s.cache != nil {
		if audio, ok := s.cache.Get(text); ok {
			return audio, nil
		}
	}
	audio, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(text, audio)
	}
	return audio, nil
}

// Prefetch warms the cache for lines that are about to be spoken, such as
// the greeting. Non-blocking.
func (s *VoicevoxSink) Prefetch(ctx context.Context, texts ...string) {
	if s.cache == nil {
		return
	}
	for _, text := range texts {
		for _, chunk := range splitChunks(text, s.chunkSize) {
			go func(t string) {
				if _, err := s.synthesizeWithCache(ctx, t); err != nil {
					s.log.Debug("prefetch: synthesis failed: %v", err)
				}
			}(chunk)
		}
	}
}

// ── Chunking ─────────────────────────────────────────────────────

// splitChunks breaks text into sentence-boundary chunks of roughly
// maxRunes runes. Short text and maxRunes <= 0 yield a single chunk.
func splitChunks(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || len([]rune(text)) <= maxRunes {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, s := range splitSentences(text) {
		n := len([]rune(s))
		if currentLen > 0 && currentLen+n > maxRunes {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(s)
		currentLen += n
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// splitSentences splits at sentence-ending punctuation, Japanese or
// Latin, keeping the punctuation and trailing spaces with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceEnd(runes[i]) {
			for i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '　') {
				i++
				current.WriteRune(runes[i])
			}
			sentences = append(sentences, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
