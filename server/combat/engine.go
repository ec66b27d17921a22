// Package combat adjudicates weapon discharges. A shot hits the closest
// living opponent that is within range and inside the weapon's accuracy cone;
// there is no raycast against level geometry here (see arena.LineOfSight).
package combat

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/tanema/gween/ease"

	"github.com/mueseralex/tactical-arena-shooter/config"
	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
)

// Shot is a single weapon discharge, already resolved to a world origin.
type Shot struct {
	ShooterID    session.ID
	ShooterAlive bool
	Origin       gamemath.Vec3
	Aim          gamemath.Vec3
}

// Candidate is a potential target as seen at the moment of the shot.
type Candidate struct {
	ID       session.ID
	Position gamemath.Vec3
	Alive    bool
}

// Outcome is the engine's decision for one shot. The zero value is a miss.
type Outcome struct {
	Hit      bool
	TargetID session.ID
	Damage   int
	Headshot bool
	Distance float64
}

type Engine struct {
	weapon config.WeaponConfig
	logger zerolog.Logger
}

func NewEngine(weapon config.WeaponConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		weapon: weapon,
		logger: logger.With().Str("component", "combat").Logger(),
	}
}

// Resolve picks the closest qualifying target for the shot. Dead shooters,
// zero-length aim, and an empty candidate list all resolve to a miss.
func (e *Engine) Resolve(shot Shot, candidates []Candidate) Outcome {
	if !shot.ShooterAlive {
		return Outcome{}
	}
	aim, ok := shot.Aim.Normalize()
	if !ok {
		return Outcome{}
	}

	best := Outcome{}
	bestDist := math.Inf(1)
	for _, c := range candidates {
		if !c.Alive || c.ID == shot.ShooterID {
			continue
		}

		toTarget := c.Position.Sub(shot.Origin)
		dist := toTarget.Len()
		if dist == 0 || dist > e.weapon.MaxRange {
			continue
		}
		if gamemath.CosAngle(aim, toTarget) < e.weapon.AccuracyCos {
			continue
		}
		if dist >= bestDist {
			continue
		}
		if !e.InHitZone(shot.Origin, aim, c.Position, dist) {
			continue
		}

		headshot := e.IsHeadshot(shot.Origin, aim, c.Position, dist)
		bestDist = dist
		best = Outcome{
			Hit:      true,
			TargetID: c.ID,
			Damage:   e.Damage(dist, headshot),
			Headshot: headshot,
			Distance: dist,
		}
	}

	if best.Hit {
		e.logger.Debug().
			Uint64("shooter_id", uint64(shot.ShooterID)).
			Uint64("target_id", uint64(best.TargetID)).
			Int("damage", best.Damage).
			Bool("headshot", best.Headshot).
			Float64("distance", best.Distance).
			Msg("Shot resolved as hit")
	}
	return best
}

// rayHeight is how far above the target's feet the aim ray passes at dist.
func rayHeight(origin, aim, target gamemath.Vec3, dist float64) float64 {
	return origin.Y + aim.Y*dist - target.Y
}

// InHitZone reports whether the aim ray passes through the target's body,
// from the feet up to PlayerHeight. A zero PlayerHeight leaves the top open.
func (e *Engine) InHitZone(origin, aim, target gamemath.Vec3, dist float64) bool {
	h := rayHeight(origin, aim, target, dist)
	if h < 0 {
		return false
	}
	return e.weapon.PlayerHeight <= 0 || h <= e.weapon.PlayerHeight
}

// IsHeadshot reports whether the aim ray, evaluated at the target's distance,
// passes above HeadHeight.
func (e *Engine) IsHeadshot(origin, aim, target gamemath.Vec3, dist float64) bool {
	return rayHeight(origin, aim, target, dist) > e.weapon.HeadHeight
}

// Damage returns the damage dealt at dist. Headshots ignore distance.
func (e *Engine) Damage(dist float64, headshot bool) int {
	if headshot {
		return e.weapon.HeadshotDamage
	}
	dmg := int(math.Round(float64(e.weapon.BodyDamage) * e.Falloff(dist)))
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// Falloff is the body-shot damage multiplier at dist: linear from 1 at the
// muzzle to 0 at FalloffRange, floored at MinDamageFraction.
func (e *Engine) Falloff(dist float64) float64 {
	if e.weapon.FalloffRange <= 0 {
		return 1
	}
	f := float64(ease.Linear(float32(dist), 1, -1, float32(e.weapon.FalloffRange)))
	return math.Min(1, math.Max(e.weapon.MinDamageFraction, f))
}

// Apply deals the outcome's damage to target. died is true only when this
// hit eliminated the target.
func (e *Engine) Apply(target *session.Player, o Outcome) (health int, died bool) {
	if !o.Hit || target == nil || target.ID() != o.TargetID {
		if target != nil {
			return target.Health(), false
		}
		return 0, false
	}
	return target.TakeDamage(o.Damage)
}

// Origin picks the world origin for a shot: the client's hint when it is
// close enough to the shooter's last known position, otherwise that position.
func (e *Engine) Origin(last gamemath.Vec3, hint *gamemath.Vec3) gamemath.Vec3 {
	if hint == nil || !hint.IsFinite() {
		return last
	}
	if hint.Sub(last).Len() > e.weapon.OriginTolerance {
		e.logger.Debug().
			Float64("drift", hint.Sub(last).Len()).
			Msg("Shot origin too far from last known position")
		return last
	}
	return *hint
}
