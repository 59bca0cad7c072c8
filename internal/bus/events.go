// internal/bus/events.go
//
// Outward game events on NATS, one subject per player.

package bus

import (
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordle/apps/gamesession/internal/game"
)

// EventPublisher is a notify.Notifier that publishes every event as JSON to
// <prefix>.<user id>.
type EventPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewEventPublisher returns a publisher rooted at prefix.
func NewEventPublisher(nc *nats.Conn, prefix string) *EventPublisher {
	return &EventPublisher{nc: nc, prefix: prefix}
}

// Subject returns the subject events for userID are published on.
func (p *EventPublisher) Subject(userID string) string {
	return p.prefix + "." + subjectToken(userID)
}

// Notify publishes ev. Failures are logged; delivery is best-effort.
func (p *EventPublisher) Notify(ev game.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("user", ev.UserID).Msg("encode event")
		return
	}
	if err := p.nc.Publish(p.Subject(ev.UserID), data); err != nil {
		log.Warn().Err(err).Str("user", ev.UserID).Stringer("kind", ev.Kind).Msg("publish event")
	}
}

// subjectToken makes s usable as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
