package messages

import "github.com/mueseralex/tactical-arena-shooter/shared/gamemath"

// Hello is sent by a client right after connecting to request joining the server.
type Hello struct {
	Version string
	Name    string
}

// RequestMatchmaking asks to be queued for a match in Mode.
type RequestMatchmaking struct {
	Mode string
}

// CancelMatchmaking withdraws the player's outstanding ticket, if any.
type CancelMatchmaking struct{}

// ReportPosition is the client's latest pose. MatchID is the match the client
// believes it is playing; stale values are ignored by the server.
type ReportPosition struct {
	MatchID     string
	Position    gamemath.Vec3
	Orientation gamemath.Vec3
	Timestamp   int64 // Client timestamp (Unix ms)
}

// ReportShot is a weapon discharge. Origin is optional; the server falls back
// to the shooter's last reported position.
type ReportShot struct {
	MatchID   string
	Aim       gamemath.Vec3
	Origin    *gamemath.Vec3
	Timestamp int64 // Client timestamp (Unix ms)
}

// Heartbeat keeps an idle connection alive.
type Heartbeat struct {
	ClientTime int64
}

func (Hello) inbound()              {}
func (RequestMatchmaking) inbound() {}
func (CancelMatchmaking) inbound()  {}
func (ReportPosition) inbound()     {}
func (ReportShot) inbound()         {}
func (Heartbeat) inbound()          {}
