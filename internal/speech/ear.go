package speech

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// Default wake phrases. Whisper spells the name several ways.
var defaultWakeWords = []string{
	"ねえことのは",
	"ことのはさん",
	"ことのは",
	"言の葉",
	"コトノハ",
	"kotonoha",
}

// whisperNoise matches annotations such as "(拍手)", "[音楽]" or
// "(keyboard clicking)" and timestamp prefixes.
var whisperNoise = regexp.MustCompile(`[\(\[（【][^\)\]）】]{0,40}[\)\]）】]`)

// hallucinations are whole-utterance outputs whisper produces on silence.
var hallucinations = map[string]bool{
	"...":                 true,
	"you":                 true,
	"thank you.":          true,
	"ご視聴ありがとうございました":      true,
	"ご視聴ありがとうございました。":     true,
	"おやすみなさい。":            true,
	"チャンネル登録よろしくお願いします": true,
}

// busyMouth reports whether audio is playing or about to play.
type busyMouth interface {
	IsSpeaking() bool
	QueueLen() int
	MarkUserAction()
}

// recordFunc records for d and returns the raw transcription.
type recordFunc func(ctx context.Context, d time.Duration) string

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithRecordDuration sets how long each active-listening chunk lasts.
func WithRecordDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.recordDuration = d }
}

// WithDormantDuration sets how long each wake-word probe lasts.
func WithDormantDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.dormantDuration = d }
}

// WithListenTimeout caps one active listening window.
func WithListenTimeout(d time.Duration) EarOption {
	return func(e *Ear) { e.listenTimeout = d }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// WithWakeWords overrides the default wake phrases.
func WithWakeWords(words ...string) EarOption {
	return func(e *Ear) { e.wakeWords = words }
}

// Ear is the optional voice input. It idles on short probe recordings
// until it hears Kotonoha's name, then records the request until the user
// falls silent and emits the transcription on C. Lines from C go through
// the same path as typed input.
//
// The Ear never records while the Mouth is busy, so Kotonoha does not
// answer herself.
type Ear struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger
	mouth      busyMouth // optional
	record     recordFunc

	wakeWords       []string
	recordDuration  time.Duration
	dormantDuration time.Duration
	listenTimeout   time.Duration

	textCh chan string
}

// NewEar creates a wake-word listener around the whisper-cli binary and a
// GGML model.
func NewEar(whisperBin, modelPath string, mouth busyMouth, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin:      whisperBin,
		modelPath:       modelPath,
		tempDir:         ".kotonoha/stt",
		log:             log,
		mouth:           mouth,
		wakeWords:       defaultWakeWords,
		recordDuration:  2 * time.Second,
		dormantDuration: 3 * time.Second,
		listenTimeout:   15 * time.Second,
		textCh:          make(chan string, 8),
	}
	e.record = e.recordWhisper
	for _, opt := range opts {
		opt(e)
	}

	if _, err := exec.LookPath(e.whisperBin); err != nil {
		log.Error("ear: whisper binary %q not found in PATH: %v", e.whisperBin, err)
	}
	return e
}

// C returns the channel of transcribed requests.
func (e *Ear) C() <-chan string { return e.textCh }

// Run listens until ctx is cancelled. Call it in a goroutine.
func (e *Ear) Run(ctx context.Context) {
	e.log.Info("ear: started (probe=%s, chunk=%s, timeout=%s)", e.dormantDuration, e.recordDuration, e.listenTimeout)
	defer e.log.Info("ear: stopped")

	for ctx.Err() == nil {
		if e.mouthBusy() {
			sleepCtx(ctx, 200*time.Millisecond)
			continue
		}

		heard := cleanTranscription(e.record(ctx, e.dormantDuration))
		if heard == "" || e.mouthBusy() {
			continue
		}

		rest, woke := e.stripWakeWord(heard)
		if !woke {
			e.log.Debug("ear/dormant: ignoring %q", heard)
			continue
		}
		e.log.Info("ear: wake word detected in %q", heard)
		if e.mouth != nil {
			e.mouth.MarkUserAction()
		}

		if rest == "" {
			rest = e.listen(ctx)
		}
		if rest == "" {
			continue
		}

		e.log.Info("ear: heard request: %q", rest)
		select {
		case e.textCh <- rest:
		case <-ctx.Done():
		}
	}
}

// listen records chunks until silence or timeout and joins them.
func (e *Ear) listen(ctx context.Context) string {
	const (
		graceEmpty      = 3 // silent chunks tolerated before speech starts
		postSpeechEmpty = 1 // silent chunks that end the request
	)

	deadline := time.Now().Add(e.listenTimeout)
	var parts []string
	emptyRuns := 0

	for ctx.Err() == nil && time.Now().Before(deadline) {
		chunk := cleanTranscription(e.record(ctx, e.recordDuration))
		if chunk == "" {
			emptyRuns++
			limit := graceEmpty
			if len(parts) > 0 {
				limit = postSpeechEmpty
			}
			if emptyRuns >= limit {
				break
			}
			continue
		}
		emptyRuns = 0
		if rest, woke := e.stripWakeWord(chunk); woke {
			chunk = rest
		}
		if chunk != "" {
			parts = append(parts, chunk)
		}
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

func (e *Ear) mouthBusy() bool {
	return e.mouth != nil && (e.mouth.IsSpeaking() || e.mouth.QueueLen() > 0)
}

// stripWakeWord reports whether text contains a wake word and returns
// what follows it.
func (e *Ear) stripWakeWord(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range e.wakeWords {
		wl := strings.ToLower(w)
		idx := strings.Index(lower, wl)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(wl):]
		rest = strings.TrimLeft(rest, " 　、。,.!！?？\n\t")
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// recordWhisper does one whisper recording cycle.
func (e *Ear) recordWhisper(ctx context.Context, d time.Duration) string {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := e.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(e.whisperBin, e.modelPath, e.tempDir, "wav", callback, verbose)
	if err != nil {
		e.log.Error("ear: transcriber init failed: %v", err)
		sleepCtx(ctx, 2*time.Second)
		return ""
	}
	if err := t.Start(); err != nil {
		e.log.Error("ear: recording start failed: %v", err)
		sleepCtx(ctx, 2*time.Second)
		return ""
	}

	sleepCtx(ctx, d)
	t.Stop()
	wg.Wait()

	if ctx.Err() != nil {
		return ""
	}
	return result
}

// cleanTranscription normalizes whitespace and drops whisper artifacts
// and silence hallucinations.
func cleanTranscription(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = whisperNoise.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
