package match

import (
	"time"

	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

// Status is the phase a match is in.
type Status int

const (
	StatusStarting Status = iota
	StatusActive
	StatusRoundEnded
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusActive:
		return "active"
	case StatusRoundEnded:
		return "round_ended"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Seats per match.
const Seats = 2

// Match is one 1v1 contest. Players[i] spawns at the arena's seat i for
// every round.
type Match struct {
	ID      string
	Mode    string
	Players [Seats]session.ID

	Round     int
	Wins      [Seats]int
	Kills     [Seats]int
	Deaths    [Seats]int
	TimeLimit time.Duration

	Status Status
	Winner session.ID // messages.NoPlayer until completed, and for a draw
	Reason string     // Why the match completed

	CreatedAt      time.Time
	RoundStartedAt time.Time
	RoundEndedAt   time.Time
	CompletedAt    time.Time
}

// Seat returns the seat index of id, or -1 when id is not a participant.
func (m *Match) Seat(id session.ID) int {
	for i, p := range m.Players {
		if p == id {
			return i
		}
	}
	return -1
}

// Has reports whether id plays in m.
func (m *Match) Has(id session.ID) bool {
	return m.Seat(id) >= 0
}

// Opponent returns the other participant, or NoPlayer when id is not in m.
func (m *Match) Opponent(id session.ID) session.ID {
	switch m.Seat(id) {
	case 0:
		return m.Players[1]
	case 1:
		return m.Players[0]
	default:
		return messages.NoPlayer
	}
}

// WinsOf returns the round wins of a participant.
func (m *Match) WinsOf(id session.ID) int {
	if seat := m.Seat(id); seat >= 0 {
		return m.Wins[seat]
	}
	return 0
}

// Scores is the standing of both participants in seat order.
func (m *Match) Scores() []messages.Score {
	scores := make([]messages.Score, 0, Seats)
	for i, id := range m.Players {
		scores = append(scores, messages.Score{
			PlayerID:  id,
			RoundWins: m.Wins[i],
			Kills:     m.Kills[i],
			Deaths:    m.Deaths[i],
		})
	}
	return scores
}

func (m *Match) playerIDs() []session.ID {
	return m.Players[:]
}
