// Package dispatch routes outbound events to the players that are allowed to
// see them. Delivery is fire-and-forget: a failed send is logged and the
// remaining recipients still get the event.
package dispatch

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

// Sender delivers one message to one connected player. The transport
// implements it; tests substitute a recorder.
type Sender interface {
	Send(id session.ID, msg messages.Outbound) error
}

type Dispatcher struct {
	sender   Sender
	registry *session.Registry
	logger   zerolog.Logger
}

func New(sender Sender, registry *session.Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		registry: registry,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// ToPlayer sends msg to a single connected player.
func (d *Dispatcher) ToPlayer(id session.ID, msg messages.Outbound) bool {
	if _, ok := d.registry.Get(id); !ok {
		d.logger.Debug().
			Uint64("player_id", uint64(id)).
			Str("event", eventName(msg)).
			Msg("Dropping event for disconnected player")
		return false
	}
	return d.send(id, msg)
}

// ToMatch sends msg to the listed players, skipping anyone who is no longer
// connected or whose session is not bound to matchID. It returns the number
// of successful deliveries.
func (d *Dispatcher) ToMatch(matchID string, players []session.ID, msg messages.Outbound) int {
	delivered := 0
	for _, id := range players {
		p, ok := d.registry.Get(id)
		if !ok {
			continue
		}
		if p.MatchID() != matchID {
			d.logger.Debug().
				Uint64("player_id", uint64(id)).
				Str("match_id", matchID).
				Str("player_match_id", p.MatchID()).
				Str("event", eventName(msg)).
				Msg("Withholding match event from player outside the match")
			continue
		}
		if d.send(id, msg) {
			delivered++
		}
	}
	return delivered
}

// ToAll sends msg to every connected player.
func (d *Dispatcher) ToAll(msg messages.Outbound) int {
	delivered := 0
	for _, id := range d.registry.IDs() {
		if d.send(id, msg) {
			delivered++
		}
	}
	return delivered
}

func (d *Dispatcher) send(id session.ID, msg messages.Outbound) bool {
	if err := d.sender.Send(id, msg); err != nil {
		d.logger.Warn().Err(err).
			Uint64("player_id", uint64(id)).
			Str("event", eventName(msg)).
			Msg("Failed to deliver event")
		return false
	}
	return true
}

func eventName(msg messages.Outbound) string {
	return fmt.Sprintf("%T", msg)
}
