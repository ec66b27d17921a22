package session

import (
	"time"

	"github.com/yohamta/donburi"

	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
)

type TransformData struct {
	Position    gamemath.Vec3 // Feet point
	Orientation gamemath.Vec3 // Aim direction, as last reported
}

type VitalsData struct {
	Health    int
	MaxHealth int
	Alive     bool
}

// RecordData tracks a player's combat statistics across matches.
type RecordData struct {
	Kills  int
	Deaths int
}

type LinkData struct {
	ID           ID
	Name         string
	Joined       bool   // Hello accepted
	MatchID      string // Empty when not in a live match
	ConnectedAt  time.Time
	LastActivity time.Time
}

var (
	Transform = donburi.NewComponentType[TransformData]()
	Vitals    = donburi.NewComponentType[VitalsData]()
	Record    = donburi.NewComponentType[RecordData]()
	Link      = donburi.NewComponentType[LinkData]()
)
