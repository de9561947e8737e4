package speech

import (
	"time"

	"github.com/google/uuid"
)

// Default VOICEVOX engine settings. Speaker 8 is 春日部つむぎ.
const (
	DefaultVoicevoxURL = "http://127.0.0.1:50021"
	DefaultSpeaker     = 8
)

// Audio parameters of VOICEVOX's default WAV output.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Env var names for the speech backend.
const (
	EnvVoicevoxURL     = "VOICEVOX_URL"
	EnvVoicevoxSpeaker = "VOICEVOX_SPEAKER"
	EnvMockTTS         = "MOCK_TTS"
)

// Default arbitration windows.
const (
	DefaultMonologueCooldown = 3 * time.Minute
	DefaultSuppressAfterUser = time.Minute
)

// Priority is a speech tier. Higher value = speaks first.
type Priority int

const (
	PriorityMonologue Priority = iota // idle chatter, dropped when it would interrupt
	PriorityAlert                     // due-task reminders, re-prompts
	PriorityUser                      // replies to something the user just did
)

// String returns the tier name.
func (p Priority) String() string {
	switch p {
	case PriorityUser:
		return "user"
	case PriorityAlert:
		return "alert"
	case PriorityMonologue:
		return "monologue"
	default:
		return "unknown"
	}
}

// tiers lists priorities from highest to lowest.
var tiers = [...]Priority{PriorityUser, PriorityAlert, PriorityMonologue}

// SpeechRequest is a queued item waiting to be spoken.
type SpeechRequest struct {
	ID       string
	Text     string
	Priority Priority
	QueuedAt time.Time
}

func newRequest(text string, priority Priority, now time.Time) SpeechRequest {
	return SpeechRequest{
		ID:       uuid.NewString()[:8],
		Text:     text,
		Priority: priority,
		QueuedAt: now,
	}
}
