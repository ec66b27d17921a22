// Package matchmaking pairs waiting players into 1v1 matches. Each game mode
// has its own FIFO of tickets; the two longest-waiting tickets of a mode are
// always paired first.
package matchmaking

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/server/session"
)

// Ticket is a queued request to be matched.
type Ticket struct {
	PlayerID   session.ID
	Mode       string
	EnqueuedAt time.Time
}

// MatchCreator receives every pair the queue produces.
type MatchCreator interface {
	CreateMatch(a, b session.ID, mode string) error
}

// Queue holds the outstanding tickets. Not safe for concurrent use.
type Queue struct {
	creator MatchCreator
	clock   clockwork.Clock
	logger  zerolog.Logger

	// Tickets per mode, oldest first
	byMode map[string][]*Ticket

	// One ticket per player
	byPlayer map[session.ID]*Ticket

	pairs uint64
}

func NewQueue(creator MatchCreator, clock clockwork.Clock, logger zerolog.Logger) *Queue {
	return &Queue{
		creator:  creator,
		clock:    clock,
		logger:   logger.With().Str("component", "matchmaking").Logger(),
		byMode:   make(map[string][]*Ticket),
		byPlayer: make(map[session.ID]*Ticket),
	}
}

// Enqueue adds a ticket for the player and then pairs whatever can be paired.
// A player that already holds a ticket is left untouched; added is false.
func (q *Queue) Enqueue(playerID session.ID, mode string) (added bool) {
	if existing, ok := q.byPlayer[playerID]; ok {
		q.logger.Debug().
			Uint64("player_id", uint64(playerID)).
			Str("mode", existing.Mode).
			Msg("Ignoring enqueue: player already has a ticket")
		return false
	}

	t := &Ticket{
		PlayerID:   playerID,
		Mode:       mode,
		EnqueuedAt: q.clock.Now(),
	}
	q.byMode[mode] = append(q.byMode[mode], t)
	q.byPlayer[playerID] = t

	q.logger.Debug().
		Uint64("player_id", uint64(playerID)).
		Str("mode", mode).
		Int("waiting", len(q.byMode[mode])).
		Msg("Ticket enqueued")

	q.TryPair(mode)
	return true
}

// TryPair pairs the two oldest tickets of mode until fewer than two remain
// and returns the number of pairs made.
func (q *Queue) TryPair(mode string) int {
	made := 0
	for len(q.byMode[mode]) >= 2 {
		tickets := q.byMode[mode]
		a, b := tickets[0], tickets[1]
		q.byMode[mode] = tickets[2:]
		delete(q.byPlayer, a.PlayerID)
		delete(q.byPlayer, b.PlayerID)
		made++
		q.pairs++

		q.logger.Info().
			Uint64("player_a", uint64(a.PlayerID)).
			Uint64("player_b", uint64(b.PlayerID)).
			Str("mode", mode).
			Dur("waited", q.clock.Since(a.EnqueuedAt)).
			Msg("Paired players")

		if err := q.creator.CreateMatch(a.PlayerID, b.PlayerID, mode); err != nil {
			q.logger.Warn().Err(err).
				Uint64("player_a", uint64(a.PlayerID)).
				Uint64("player_b", uint64(b.PlayerID)).
				Msg("Match creation rejected pair")
		}
	}
	if len(q.byMode[mode]) == 0 {
		delete(q.byMode, mode)
	}
	return made
}

// Remove drops the player's ticket, if any.
func (q *Queue) Remove(playerID session.ID) bool {
	t, ok := q.byPlayer[playerID]
	if !ok {
		return false
	}
	delete(q.byPlayer, playerID)

	tickets := q.byMode[t.Mode]
	for i, queued := range tickets {
		if queued == t {
			q.byMode[t.Mode] = append(tickets[:i:i], tickets[i+1:]...)
			break
		}
	}
	if len(q.byMode[t.Mode]) == 0 {
		delete(q.byMode, t.Mode)
	}
	return true
}

// Ticket returns the player's outstanding ticket.
func (q *Queue) Ticket(playerID session.ID) (Ticket, bool) {
	t, ok := q.byPlayer[playerID]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// Waiting returns the tickets queued for mode, oldest first.
func (q *Queue) Waiting(mode string) []Ticket {
	out := make([]Ticket, 0, len(q.byMode[mode]))
	for _, t := range q.byMode[mode] {
		out = append(out, *t)
	}
	return out
}

// Len returns the number of tickets queued for mode.
func (q *Queue) Len(mode string) int {
	return len(q.byMode[mode])
}

// Total returns the number of outstanding tickets across all modes.
func (q *Queue) Total() int {
	return len(q.byPlayer)
}

// Pairs returns how many pairs the queue has produced since start.
func (q *Queue) Pairs() uint64 {
	return q.pairs
}
