package reminder

import (
	"time"

	"github.com/hammamikhairi/kotonoha/internal/domain"
	"github.com/hammamikhairi/kotonoha/internal/logger"
	"github.com/hammamikhairi/kotonoha/internal/speech"
)

// DefaultAnnounceInterval is how often Kotonoha tells the time.
const DefaultAnnounceInterval = 5 * time.Minute

// Chatter produces Kotonoha's idle monologue: the time plus a short
// nudge. It only ever submits at monologue priority, so the Mouth is free
// to drop it when the user is busy.
type Chatter struct {
	speaker domain.Speaker
	log     *logger.Logger
	line    func(time.Time) string
}

// NewChatter creates a monologue producer.
func NewChatter(speaker domain.Speaker, log *logger.Logger) *Chatter {
	return &Chatter{
		speaker: speaker,
		log:     log,
		line:    speech.LineTimeAnnouncement,
	}
}

// Announce submits one time announcement.
func (c *Chatter) Announce(now time.Time) {
	text := c.line(now)
	c.log.Debug("chatter: %s", text)
	c.speaker.SayMonologue(text)
}
