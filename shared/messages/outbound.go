package messages

import "github.com/mueseralex/tactical-arena-shooter/shared/gamemath"

// Welcome is sent when a client's Hello is accepted.
type Welcome struct {
	PlayerID   PlayerID
	ServerName string
	TickRate   int
	Modes      []string
}

// JoinRejected is sent when a client's Hello is refused.
type JoinRejected struct {
	Reason string
}

// QueueStatus reports the player's matchmaking state.
type QueueStatus struct {
	Mode      string
	Searching bool
	Waiting   int // tickets queued for Mode, including the player's own
}

// MatchFound is sent to both players once they are paired.
type MatchFound struct {
	MatchID string
	Players []PlayerID
	Mode    string
}

// Score is one player's standing inside a match.
type Score struct {
	PlayerID  PlayerID
	RoundWins int
	Kills     int
	Deaths    int
}

// RoundStart is sent to each player individually with that player's spawn.
type RoundStart struct {
	MatchID     string
	Round       int
	Spawn       gamemath.Vec3
	Health      int
	TimeLimitMs int64
	Scores      []Score
}

// RoundEnd closes a round. Winner is NoPlayer for a drawn round.
type RoundEnd struct {
	MatchID string
	Round   int
	Winner  PlayerID
	Reason  string
	Scores  []Score
}

// MatchEnd closes a match. Winner is NoPlayer for a drawn match.
type MatchEnd struct {
	MatchID     string
	Winner      PlayerID
	Reason      string
	FinalScores []Score
	TotalRounds int
}

// HitEvent is broadcast when a shot connects.
type HitEvent struct {
	ShooterID    PlayerID
	TargetID     PlayerID
	Damage       int
	Headshot     bool
	TargetHealth int
}

// DeathEvent is broadcast when a player is eliminated.
type DeathEvent struct {
	KillerID PlayerID
	VictimID PlayerID
	Headshot bool
}

// PositionUpdate relays another participant's pose.
type PositionUpdate struct {
	PlayerID    PlayerID
	Position    gamemath.Vec3
	Orientation gamemath.Vec3
}

// Pong answers a Heartbeat.
type Pong struct {
	ClientTime int64
	ServerTime int64
}

func (Welcome) outbound()        {}
func (JoinRejected) outbound()   {}
func (QueueStatus) outbound()    {}
func (MatchFound) outbound()     {}
func (RoundStart) outbound()     {}
func (RoundEnd) outbound()       {}
func (MatchEnd) outbound()       {}
func (HitEvent) outbound()       {}
func (DeathEvent) outbound()     {}
func (PositionUpdate) outbound() {}
func (Pong) outbound()           {}
