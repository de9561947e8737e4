package speech

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// Compile-time interface check.
var _ domain.Speaker = (*SpeakingNotifier)(nil)

// SpeakingNotifier shows every utterance on screen through a text notifier
// and queues it on the Mouth at the same tier. Screen output is immediate;
// speech follows the Mouth's arbitration.
type SpeakingNotifier struct {
	text    domain.Notifier
	speaker domain.Speaker
	log     *logger.Logger
}

// NewSpeakingNotifier creates a notifier that both prints and speaks.
func NewSpeakingNotifier(text domain.Notifier, speaker domain.Speaker, log *logger.Logger) *SpeakingNotifier {
	return &SpeakingNotifier{
		text:    text,
		speaker: speaker,
		log:     log,
	}
}

// SayUser prints the reply and queues it at user priority.
func (n *SpeakingNotifier) SayUser(message string) {
	n.show(message, false)
	n.speaker.SayUser(cleanForSpeech(message))
}

// SayAlert prints the reminder highlighted and queues it at alert priority.
func (n *SpeakingNotifier) SayAlert(message string) {
	n.show(message, true)
	n.speaker.SayAlert(cleanForSpeech(message))
}

// SayMonologue prints the chatter and queues it at monologue priority.
func (n *SpeakingNotifier) SayMonologue(message string) {
	n.show(message, false)
	n.speaker.SayMonologue(cleanForSpeech(message))
}

// MarkUserAction forwards to the underlying speaker.
func (n *SpeakingNotifier) MarkUserAction() {
	n.speaker.MarkUserAction()
}

func (n *SpeakingNotifier) show(message string, urgent bool) {
	var err error
	if urgent {
		err = n.text.NotifyUrgent(context.Background(), message)
	} else {
		err = n.text.Notify(context.Background(), message)
	}
	if err != nil {
		n.log.Warn("notifier: display failed: %v", err)
	}
}

// cleanForSpeech strips formatting artifacts that shouldn't be spoken.
var (
	bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
	ansiCodes     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	listBullets   = regexp.MustCompile(`(?m)^\s*[-*・]\s*`)
)

func cleanForSpeech(msg string) string {
	cleaned := ansiCodes.ReplaceAllString(msg, "")
	cleaned = bracketPrefix.ReplaceAllString(cleaned, "")
	cleaned = listBullets.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
