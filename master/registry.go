// Package master is the public list of running arena servers. Game servers
// register on start and heartbeat periodically; servers that stop
// heartbeating expire after a TTL.
package master

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ServerInfo describes a game server visible to clients.
type ServerInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Queued     int    `json:"queued"`
	Matches    int    `json:"matches"`
	Version    string `json:"version"`
	Region     string `json:"region"`
}

// Load is the part of ServerInfo refreshed by every heartbeat.
type Load struct {
	Players int `json:"players"`
	Queued  int `json:"queued"`
	Matches int `json:"matches"`
}

type serverRecord struct {
	ServerInfo
	LastSeen time.Time
}

// Registry is an in-memory store of active game servers with TTL-based expiry.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*serverRecord
	ttl     time.Duration
	clock   clockwork.Clock
	logger  zerolog.Logger
}

func NewRegistry(ttl time.Duration, clock clockwork.Clock, logger zerolog.Logger) *Registry {
	return &Registry{
		servers: make(map[string]*serverRecord),
		ttl:     ttl,
		clock:   clock,
		logger:  logger.With().Str("component", "master").Logger(),
	}
}

func (r *Registry) Register(info ServerInfo) string {
	info.ID = uuid.NewString()

	r.mu.Lock()
	r.servers[info.ID] = &serverRecord{
		ServerInfo: info,
		LastSeen:   r.clock.Now(),
	}
	r.mu.Unlock()

	return info.ID
}

// Heartbeat refreshes a server's load and expiry. It reports false for an
// unknown (or already expired) id.
func (r *Registry) Heartbeat(id string, load Load) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.servers[id]
	if !ok {
		return false
	}
	rec.LastSeen = r.clock.Now()
	rec.Players = load.Players
	rec.Queued = load.Queued
	rec.Matches = load.Matches
	return true
}

// List returns the registered servers ordered by name.
func (r *Registry) List() []ServerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ServerInfo, 0, len(r.servers))
	for _, rec := range r.servers {
		result = append(result, rec.ServerInfo)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Expire removes servers not seen within the TTL and returns how many went.
func (r *Registry) Expire() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	expired := 0
	for id, rec := range r.servers {
		if now.Sub(rec.LastSeen) >= r.ttl {
			r.logger.Info().
				Str("server_id", id).
				Str("name", rec.Name).
				Dur("last_seen", now.Sub(rec.LastSeen).Round(time.Second)).
				Msg("Expired server")
			delete(r.servers, id)
			expired++
		}
	}
	return expired
}
