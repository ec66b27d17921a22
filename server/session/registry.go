// Package session is the connection registry: every connected player is an
// entity in a donburi world, addressed by a process-unique ID.
//
// The registry is not safe for concurrent use; the server's game loop is its
// only caller.
package session

import (
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"

	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

// ID identifies a player session.
type ID = messages.PlayerID

var ErrUnknownPlayer = eris.New("unknown player")

// Registry tracks connected players and their liveness.
type Registry struct {
	world    donburi.World
	clock    clockwork.Clock
	logger   zerolog.Logger
	entities map[ID]donburi.Entity
	lastID   ID
}

func NewRegistry(clock clockwork.Clock, logger zerolog.Logger) *Registry {
	return &Registry{
		world:    donburi.NewWorld(),
		clock:    clock,
		logger:   logger.With().Str("component", "registry").Logger(),
		entities: make(map[ID]donburi.Entity),
	}
}

// Connect registers a new session and returns it. IDs increase monotonically
// and are never handed out twice.
func (r *Registry) Connect() *Player {
	r.lastID++
	id := r.lastID
	now := r.clock.Now()

	entity := r.world.Create(Transform, Vitals, Record, Link)
	entry := r.world.Entry(entity)

	Transform.Set(entry, &TransformData{})
	Vitals.Set(entry, &VitalsData{})
	Record.Set(entry, &RecordData{})
	Link.Set(entry, &LinkData{
		ID:           id,
		ConnectedAt:  now,
		LastActivity: now,
	})

	r.entities[id] = entity
	r.logger.Debug().Uint64("player_id", uint64(id)).Msg("Player connected")

	return &Player{id: id, entry: entry}
}

// Disconnect removes the session. It reports false when id is unknown.
func (r *Registry) Disconnect(id ID) bool {
	entity, ok := r.entities[id]
	if !ok {
		return false
	}
	delete(r.entities, id)

	if r.world.Valid(entity) {
		r.world.Remove(entity)
	}
	r.logger.Debug().Uint64("player_id", uint64(id)).Msg("Player disconnected")
	return true
}

// Get looks up a connected player.
func (r *Registry) Get(id ID) (*Player, bool) {
	entity, ok := r.entities[id]
	if !ok || !r.world.Valid(entity) {
		return nil, false
	}
	return &Player{id: id, entry: r.world.Entry(entity)}, true
}

// Lookup is Get for callers that treat an unknown id as an error.
func (r *Registry) Lookup(id ID) (*Player, error) {
	p, ok := r.Get(id)
	if !ok {
		return nil, eris.Wrapf(ErrUnknownPlayer, "player %d", id)
	}
	return p, nil
}

// Touch refreshes the player's last-activity timestamp.
func (r *Registry) Touch(id ID) {
	if p, ok := r.Get(id); ok {
		p.link().LastActivity = r.clock.Now()
	}
}

// Len returns the number of connected players.
func (r *Registry) Len() int {
	return len(r.entities)
}

// IDs returns every connected player id in ascending order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Idle returns the players whose last activity is at least timeout ago, in
// ascending id order.
func (r *Registry) Idle(timeout time.Duration) []ID {
	now := r.clock.Now()

	var idle []ID
	Link.Each(r.world, func(entry *donburi.Entry) {
		link := Link.Get(entry)
		if now.Sub(link.LastActivity) >= timeout {
			idle = append(idle, link.ID)
		}
	})
	sort.Slice(idle, func(i, j int) bool { return idle[i] < idle[j] })
	return idle
}
