// Package messages defines every payload exchanged between the arena server
// and its clients. Each direction is a closed set: inbound types implement
// Inbound, outbound types implement Outbound, and nothing outside this
// package can add to either set.
package messages

// PlayerID identifies a connected player for the lifetime of the server
// process. IDs start at 1 and are never reused; NoPlayer marks an absent
// player (e.g. a drawn round).
type PlayerID uint64

const NoPlayer PlayerID = 0

// Inbound is a message a client sends to the server.
type Inbound interface {
	inbound()
}

// Outbound is a message the server sends to one or more clients.
type Outbound interface {
	outbound()
}

// Round and match end reasons.
const (
	ReasonElimination = "elimination"
	ReasonTimeout     = "timeout"
	ReasonForfeit     = "forfeit"
	ReasonRoundLimit  = "round_limit"
)
