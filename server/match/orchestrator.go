// Package match runs the round state machine of every live match.
//
// A match moves starting -> active -> round_ended and then either back to
// starting for the next round or to completed. Timers are plain delayed
// tasks; each one re-checks the match status and round number when it runs,
// so a timer that lost the race against another transition is a no-op.
//
// The Orchestrator is not safe for concurrent use. The server's game loop is
// its only caller, and scheduled tasks must be run on that loop too.
package match

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/config"
	"github.com/mueseralex/tactical-arena-shooter/server/arena"
	"github.com/mueseralex/tactical-arena-shooter/server/combat"
	"github.com/mueseralex/tactical-arena-shooter/server/dispatch"
	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

var (
	ErrSamePlayer  = eris.New("player cannot be matched against themselves")
	ErrPlayerBusy  = eris.New("player is already in a match")
	ErrUnknownMode = eris.New("unknown game mode")
)

// Scheduler runs task once after delay. key groups the tasks of one match so
// they can be dropped together once the match is gone.
type Scheduler interface {
	After(key string, delay time.Duration, task func())
	Cancel(key string)
}

// Deps are the collaborators an Orchestrator needs.
type Deps struct {
	Registry   *session.Registry
	Engine     *combat.Engine
	Arena      *arena.Arena
	Dispatcher *dispatch.Dispatcher
	Scheduler  Scheduler
	Clock      clockwork.Clock
	Logger     zerolog.Logger
}

type Orchestrator struct {
	rules      config.MatchConfig
	registry   *session.Registry
	engine     *combat.Engine
	arena      *arena.Arena
	dispatcher *dispatch.Dispatcher
	scheduler  Scheduler
	clock      clockwork.Clock
	logger     zerolog.Logger

	matches map[string]*Match

	// Live (not completed) match per player
	byPlayer map[session.ID]string

	created   uint64
	completed uint64
}

func NewOrchestrator(rules config.MatchConfig, deps Deps) *Orchestrator {
	a := deps.Arena
	if a == nil {
		a = arena.Default()
	}
	return &Orchestrator{
		rules:      rules,
		registry:   deps.Registry,
		engine:     deps.Engine,
		arena:      a,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		clock:      deps.Clock,
		logger:     deps.Logger.With().Str("component", "match").Logger(),
		matches:    make(map[string]*Match),
		byPlayer:   make(map[session.ID]string),
	}
}

// CreateMatch implements matchmaking.MatchCreator.
func (o *Orchestrator) CreateMatch(a, b session.ID, mode string) error {
	_, err := o.Create(a, b, mode)
	return err
}

// Create pairs a and b into a new match, notifies both, and schedules the
// first round. a takes seat 0.
func (o *Orchestrator) Create(a, b session.ID, mode string) (*Match, error) {
	if a == b {
		return nil, eris.Wrapf(ErrSamePlayer, "player %d", a)
	}
	if !o.modeAllowed(mode) {
		return nil, eris.Wrapf(ErrUnknownMode, "mode %q", mode)
	}

	var players [Seats]*session.Player
	for i, id := range [Seats]session.ID{a, b} {
		p, err := o.registry.Lookup(id)
		if err != nil {
			return nil, eris.Wrap(err, "failed to create match")
		}
		if current, busy := o.byPlayer[id]; busy {
			return nil, eris.Wrapf(ErrPlayerBusy, "player %d in match %s", id, current)
		}
		players[i] = p
	}

	now := o.clock.Now()
	m := &Match{
		ID:        uuid.NewString(),
		Mode:      mode,
		Players:   [Seats]session.ID{a, b},
		Round:     1,
		TimeLimit: o.rules.RoundTimeLimit,
		Status:    StatusStarting,
		Winner:    messages.NoPlayer,
		CreatedAt: now,
	}
	o.matches[m.ID] = m
	o.created++

	for _, p := range players {
		p.SetMatch(m.ID)
		p.StandDown()
		o.byPlayer[p.ID()] = m.ID
	}

	o.logger.Info().
		Str("match_id", m.ID).
		Str("mode", mode).
		Uint64("player_a", uint64(a)).
		Uint64("player_b", uint64(b)).
		Msg("Match created")

	o.dispatcher.ToMatch(m.ID, m.playerIDs(), messages.MatchFound{
		MatchID: m.ID,
		Players: []messages.PlayerID{a, b},
		Mode:    mode,
	})

	o.scheduleRoundStart(m, o.rules.FirstRoundDelay)
	return m, nil
}

// StartRound moves a starting match into its active phase: both players are
// reset to full health at their seat's spawn, the round timer is armed, and
// each player gets a RoundStart with their own spawn.
func (o *Orchestrator) StartRound(matchID string) bool {
	m, ok := o.matches[matchID]
	if !ok {
		o.logger.Debug().Str("match_id", matchID).Msg("Ignoring round start for unknown match")
		return false
	}
	if m.Status != StatusStarting {
		o.logger.Warn().
			Str("match_id", matchID).
			Stringer("status", m.Status).
			Int("round", m.Round).
			Msg("Ignoring round start outside the starting phase")
		return false
	}

	for seat, id := range m.Players {
		if p, ok := o.registry.Get(id); ok {
			p.Reset(o.rules.MaxHealth, o.arena.Spawn(seat))
		}
	}

	m.Status = StatusActive
	m.RoundStartedAt = o.clock.Now()
	m.RoundEndedAt = time.Time{}

	round := m.Round
	o.scheduler.After(m.ID, m.TimeLimit, func() {
		o.OnRoundTimeout(matchID, round)
	})

	o.logger.Info().
		Str("match_id", m.ID).
		Int("round", m.Round).
		Dur("time_limit", m.TimeLimit).
		Msg("Round started")

	scores := m.Scores()
	for seat, id := range m.Players {
		o.dispatcher.ToMatch(m.ID, []session.ID{id}, messages.RoundStart{
			MatchID:     m.ID,
			Round:       m.Round,
			Spawn:       o.arena.Spawn(seat),
			Health:      o.rules.MaxHealth,
			TimeLimitMs: m.TimeLimit.Milliseconds(),
			Scores:      scores,
		})
	}
	return true
}

// HandlePosition stores a player's reported pose and relays it to the
// opponent while the round is active. Poses reported for any match other than
// the player's current one are dropped; poses from players with no match are
// stored but not relayed.
func (o *Orchestrator) HandlePosition(playerID session.ID, msg messages.ReportPosition) bool {
	p, ok := o.registry.Get(playerID)
	if !ok {
		return false
	}
	if !p.InMatch() {
		p.SetPose(msg.Position, msg.Orientation)
		return false
	}

	m, ok := o.liveMatch(p, msg.MatchID)
	if !ok || m.Status != StatusActive || !p.Alive() {
		return false
	}

	p.SetPose(msg.Position, msg.Orientation)
	o.dispatcher.ToMatch(m.ID, []session.ID{m.Opponent(playerID)}, messages.PositionUpdate{
		PlayerID:    playerID,
		Position:    msg.Position,
		Orientation: msg.Orientation,
	})
	return true
}

// HandleShot adjudicates a shot. Shots that reference a match other than the
// shooter's current one, or that arrive outside an active round, resolve to a
// miss without touching any state.
func (o *Orchestrator) HandleShot(playerID session.ID, msg messages.ReportShot) combat.Outcome {
	shooter, ok := o.registry.Get(playerID)
	if !ok {
		return combat.Outcome{}
	}
	m, ok := o.liveMatch(shooter, msg.MatchID)
	if !ok {
		return combat.Outcome{}
	}
	if m.Status != StatusActive {
		o.logger.Debug().
			Str("match_id", m.ID).
			Uint64("player_id", uint64(playerID)).
			Stringer("status", m.Status).
			Msg("Ignoring shot outside an active round")
		return combat.Outcome{}
	}

	shot := combat.Shot{
		ShooterID:    playerID,
		ShooterAlive: shooter.Alive(),
		Origin:       o.engine.Origin(shooter.Position(), msg.Origin),
		Aim:          msg.Aim,
	}

	candidates := make([]combat.Candidate, 0, Seats-1)
	for _, id := range m.Players {
		if id == playerID {
			continue
		}
		target, ok := o.registry.Get(id)
		if !ok || target.MatchID() != m.ID {
			continue
		}
		if o.rules.OcclusionCheck && o.arena.HasCover() &&
			!o.arena.LineOfSight(shot.Origin, target.Position()) {
			o.logger.Debug().
				Str("match_id", m.ID).
				Uint64("shooter_id", uint64(playerID)).
				Uint64("target_id", uint64(id)).
				Msg("Target occluded by cover")
			continue
		}
		candidates = append(candidates, combat.Candidate{
			ID:       id,
			Position: target.Position(),
			Alive:    target.Alive(),
		})
	}

	out := o.engine.Resolve(shot, candidates)
	if out.Hit {
		o.RecordHit(m.ID, playerID, out)
	}
	return out
}

// RecordHit applies a resolved hit, broadcasts it, and ends the round when
// the target was eliminated.
func (o *Orchestrator) RecordHit(matchID string, shooterID session.ID, out combat.Outcome) bool {
	m, ok := o.matches[matchID]
	if !ok || m.Status != StatusActive || !out.Hit {
		return false
	}
	shooterSeat, targetSeat := m.Seat(shooterID), m.Seat(out.TargetID)
	if shooterSeat < 0 || targetSeat < 0 || shooterSeat == targetSeat {
		o.logger.Warn().
			Str("match_id", matchID).
			Uint64("shooter_id", uint64(shooterID)).
			Uint64("target_id", uint64(out.TargetID)).
			Msg("Ignoring hit between players outside the match")
		return false
	}
	target, ok := o.registry.Get(out.TargetID)
	if !ok {
		return false
	}

	health, died := o.engine.Apply(target, out)

	o.dispatcher.ToMatch(m.ID, m.playerIDs(), messages.HitEvent{
		ShooterID:    shooterID,
		TargetID:     out.TargetID,
		Damage:       out.Damage,
		Headshot:     out.Headshot,
		TargetHealth: health,
	})

	if !died {
		return true
	}

	m.Kills[shooterSeat]++
	m.Deaths[targetSeat]++
	if shooter, ok := o.registry.Get(shooterID); ok {
		shooter.AddKill()
	}
	target.AddDeath()

	o.dispatcher.ToMatch(m.ID, m.playerIDs(), messages.DeathEvent{
		KillerID: shooterID,
		VictimID: out.TargetID,
		Headshot: out.Headshot,
	})

	o.EndRound(m.ID, messages.ReasonElimination)
	return true
}

// OnRoundTimeout is the round timer. It only acts if the match is still in
// the same active round the timer was armed for.
func (o *Orchestrator) OnRoundTimeout(matchID string, round int) bool {
	m, ok := o.matches[matchID]
	if !ok || m.Status != StatusActive || m.Round != round {
		o.logger.Debug().
			Str("match_id", matchID).
			Int("round", round).
			Msg("Ignoring stale round timer")
		return false
	}
	return o.EndRound(matchID, messages.ReasonTimeout)
}

// EndRound closes the active round. On elimination the last player alive
// wins; on timeout the player with strictly more health wins and equal
// health is a draw. The match then either completes or schedules the next
// round.
func (o *Orchestrator) EndRound(matchID string, reason string) bool {
	m, ok := o.matches[matchID]
	if !ok || m.Status != StatusActive {
		o.logger.Debug().
			Str("match_id", matchID).
			Str("reason", reason).
			Msg("Ignoring round end outside an active round")
		return false
	}

	winner := o.roundWinner(m, reason)
	o.closeRound(m, winner, reason)
	o.advance(m, reason)
	return true
}

// EndMatch completes the match. It is a no-op for an unknown or already
// completed match.
func (o *Orchestrator) EndMatch(matchID string, winner session.ID, reason string) bool {
	m, ok := o.matches[matchID]
	if !ok || m.Status == StatusCompleted {
		return false
	}
	if winner != messages.NoPlayer && !m.Has(winner) {
		o.logger.Warn().
			Str("match_id", matchID).
			Uint64("winner", uint64(winner)).
			Msg("Ignoring match end with a winner outside the match")
		return false
	}
	o.complete(m, winner, reason)
	return true
}

// HandleDisconnect is called after a player left the registry. When the
// player was in a live match the match is forfeited to the opponent, unless
// forfeits are disabled.
func (o *Orchestrator) HandleDisconnect(playerID session.ID) bool {
	matchID, ok := o.byPlayer[playerID]
	if !ok {
		return false
	}
	m := o.matches[matchID]

	if !o.rules.ForfeitOnDisconnect {
		o.logger.Warn().
			Str("match_id", matchID).
			Uint64("player_id", uint64(playerID)).
			Msg("Participant disconnected, match continues")
		return false
	}

	remaining := m.Opponent(playerID)
	o.logger.Info().
		Str("match_id", matchID).
		Uint64("player_id", uint64(playerID)).
		Uint64("winner", uint64(remaining)).
		Msg("Participant disconnected, match forfeited")

	if m.Status == StatusActive {
		o.closeRound(m, remaining, messages.ReasonForfeit)
	}
	o.complete(m, remaining, messages.ReasonForfeit)
	return true
}

// Get returns a copy of the match.
func (o *Orchestrator) Get(matchID string) (Match, bool) {
	m, ok := o.matches[matchID]
	if !ok {
		return Match{}, false
	}
	return *m, true
}

// MatchOf returns the live match id of a player.
func (o *Orchestrator) MatchOf(playerID session.ID) (string, bool) {
	id, ok := o.byPlayer[playerID]
	return id, ok
}

// Live returns the number of matches that have not completed.
func (o *Orchestrator) Live() int {
	live := 0
	for _, m := range o.matches {
		if m.Status != StatusCompleted {
			live++
		}
	}
	return live
}

// Len returns the number of stored matches, completed ones included.
func (o *Orchestrator) Len() int {
	return len(o.matches)
}

// IDs returns the stored match ids in creation order.
func (o *Orchestrator) IDs() []string {
	ids := make([]string, 0, len(o.matches))
	for id := range o.matches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return o.matches[ids[i]].CreatedAt.Before(o.matches[ids[j]].CreatedAt)
	})
	return ids
}

// Totals returns how many matches were created and completed since start.
func (o *Orchestrator) Totals() (created, completed uint64) {
	return o.created, o.completed
}

// liveMatch resolves the match a message refers to, accepting it only if it
// is the sender's current match and not completed.
func (o *Orchestrator) liveMatch(p *session.Player, matchID string) (*Match, bool) {
	if matchID == "" || p.MatchID() != matchID {
		o.logger.Debug().
			Uint64("player_id", uint64(p.ID())).
			Str("match_id", matchID).
			Str("player_match_id", p.MatchID()).
			Msg("Dropping message for a match the player is not in")
		return nil, false
	}
	m, ok := o.matches[matchID]
	if !ok || m.Status == StatusCompleted || !m.Has(p.ID()) {
		return nil, false
	}
	return m, true
}

func (o *Orchestrator) roundWinner(m *Match, reason string) session.ID {
	var alive []session.ID
	health := [Seats]int{}
	for i, id := range m.Players {
		p, ok := o.registry.Get(id)
		if !ok {
			continue
		}
		health[i] = p.Health()
		if p.Alive() {
			alive = append(alive, id)
		}
	}

	if reason == messages.ReasonElimination {
		if len(alive) == 1 {
			return alive[0]
		}
		return messages.NoPlayer
	}

	switch {
	case health[0] > health[1]:
		return m.Players[0]
	case health[1] > health[0]:
		return m.Players[1]
	default:
		return messages.NoPlayer
	}
}

func (o *Orchestrator) closeRound(m *Match, winner session.ID, reason string) {
	m.Status = StatusRoundEnded
	m.RoundEndedAt = o.clock.Now()
	if seat := m.Seat(winner); seat >= 0 {
		m.Wins[seat]++
	}

	for _, id := range m.Players {
		if p, ok := o.registry.Get(id); ok {
			p.StandDown()
		}
	}

	o.logger.Info().
		Str("match_id", m.ID).
		Int("round", m.Round).
		Uint64("winner", uint64(winner)).
		Str("reason", reason).
		Dur("duration", m.RoundEndedAt.Sub(m.RoundStartedAt)).
		Msg("Round ended")

	o.dispatcher.ToMatch(m.ID, m.playerIDs(), messages.RoundEnd{
		MatchID: m.ID,
		Round:   m.Round,
		Winner:  winner,
		Reason:  reason,
		Scores:  m.Scores(),
	})
}

// advance decides what follows a closed round. A match won on a majority
// carries the reason of its deciding round.
func (o *Orchestrator) advance(m *Match, reason string) {
	need := o.rules.RoundsToWin()
	for seat, wins := range m.Wins {
		if wins >= need {
			o.complete(m, m.Players[seat], reason)
			return
		}
	}

	if m.Round >= o.rules.RoundCap() {
		o.complete(m, messages.NoPlayer, messages.ReasonRoundLimit)
		return
	}

	m.Round++
	m.Status = StatusStarting
	o.scheduleRoundStart(m, o.rules.RoundCooldown)
}

func (o *Orchestrator) scheduleRoundStart(m *Match, delay time.Duration) {
	matchID, round := m.ID, m.Round
	o.scheduler.After(matchID, delay, func() {
		current, ok := o.matches[matchID]
		if !ok || current.Status != StatusStarting || current.Round != round {
			return
		}
		o.StartRound(matchID)
	})
}

func (o *Orchestrator) complete(m *Match, winner session.ID, reason string) {
	m.Status = StatusCompleted
	m.Winner = winner
	m.Reason = reason
	m.CompletedAt = o.clock.Now()
	o.completed++

	o.logger.Info().
		Str("match_id", m.ID).
		Uint64("winner", uint64(winner)).
		Str("reason", reason).
		Int("rounds", m.Round).
		Ints("wins", m.Wins[:]).
		Msg("Match completed")

	o.dispatcher.ToMatch(m.ID, m.playerIDs(), messages.MatchEnd{
		MatchID:     m.ID,
		Winner:      winner,
		Reason:      reason,
		FinalScores: m.Scores(),
		TotalRounds: m.Round,
	})

	for _, id := range m.Players {
		if o.byPlayer[id] == m.ID {
			delete(o.byPlayer, id)
		}
		if p, ok := o.registry.Get(id); ok && p.MatchID() == m.ID {
			p.SetMatch("")
			p.StandDown()
		}
	}

	matchID := m.ID
	o.scheduler.After(matchID, o.rules.Retention, func() {
		o.remove(matchID)
	})
}

func (o *Orchestrator) remove(matchID string) {
	m, ok := o.matches[matchID]
	if !ok || m.Status != StatusCompleted {
		return
	}
	delete(o.matches, matchID)
	o.scheduler.Cancel(matchID)
	o.logger.Debug().Str("match_id", matchID).Msg("Completed match removed")
}

func (o *Orchestrator) modeAllowed(mode string) bool {
	if len(o.rules.Modes) == 0 {
		return true
	}
	for _, allowed := range o.rules.Modes {
		if allowed == mode {
			return true
		}
	}
	return false
}
