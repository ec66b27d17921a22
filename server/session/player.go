package session

import (
	"time"

	"github.com/yohamta/donburi"

	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
)

// Player is a handle onto one session entity. Handles are cheap; fetch a new
// one from the Registry instead of keeping it across events.
type Player struct {
	id    ID
	entry *donburi.Entry
}

func (p *Player) ID() ID { return p.id }

func (p *Player) link() *LinkData           { return Link.Get(p.entry) }
func (p *Player) vitals() *VitalsData       { return Vitals.Get(p.entry) }
func (p *Player) transform() *TransformData { return Transform.Get(p.entry) }
func (p *Player) record() *RecordData       { return Record.Get(p.entry) }

func (p *Player) Name() string            { return p.link().Name }
func (p *Player) Joined() bool            { return p.link().Joined }
func (p *Player) MatchID() string         { return p.link().MatchID }
func (p *Player) InMatch() bool           { return p.link().MatchID != "" }
func (p *Player) LastActivity() time.Time { return p.link().LastActivity }

// Join marks the Hello handshake as accepted.
func (p *Player) Join(name string) {
	link := p.link()
	link.Joined = true
	link.Name = name
}

// SetMatch records the live match the player belongs to; "" clears it.
func (p *Player) SetMatch(matchID string) {
	p.link().MatchID = matchID
}

func (p *Player) Position() gamemath.Vec3    { return p.transform().Position }
func (p *Player) Orientation() gamemath.Vec3 { return p.transform().Orientation }

// SetPose stores the last reported position and aim orientation.
func (p *Player) SetPose(position, orientation gamemath.Vec3) {
	t := p.transform()
	t.Position = position
	t.Orientation = orientation
}

func (p *Player) Health() int { return p.vitals().Health }
func (p *Player) Alive() bool { return p.vitals().Alive }

// Reset restores full health at the given spawn point.
func (p *Player) Reset(maxHealth int, spawn gamemath.Vec3) {
	v := p.vitals()
	v.MaxHealth = maxHealth
	v.Health = maxHealth
	v.Alive = true
	p.transform().Position = spawn
}

// TakeDamage subtracts amount from health, clamped at zero. died is true only
// on the call that brings a living player to zero.
func (p *Player) TakeDamage(amount int) (health int, died bool) {
	v := p.vitals()
	if !v.Alive {
		return v.Health, false
	}
	v.Health = gamemath.Clamp(v.Health-amount, 0, v.MaxHealth)
	if v.Health == 0 {
		v.Alive = false
		died = true
	}
	return v.Health, died
}

// StandDown marks the player as out of play without touching health, used
// between rounds and after a match.
func (p *Player) StandDown() {
	p.vitals().Alive = false
}

func (p *Player) Kills() int  { return p.record().Kills }
func (p *Player) Deaths() int { return p.record().Deaths }
func (p *Player) AddKill()    { p.record().Kills++ }
func (p *Player) AddDeath()   { p.record().Deaths++ }
