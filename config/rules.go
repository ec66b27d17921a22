package config

import "time"

// MatchConfig contains the match and round rules.
type MatchConfig struct {
	Modes []string // Game modes accepted by matchmaking

	MaxRounds   int // Best-of-N; a match is won at ceil(MaxRounds/2) round wins
	ExtraRounds int // Drawn rounds allowed past MaxRounds before the match is drawn

	// Timing
	RoundTimeLimit  time.Duration
	FirstRoundDelay time.Duration // Countdown between MatchFound and round 1
	RoundCooldown   time.Duration // Countdown between a round end and the next round
	Retention       time.Duration // How long a completed match stays addressable

	MaxHealth int

	ForfeitOnDisconnect bool // End the match in the remaining player's favor
	OcclusionCheck      bool // Drop shots blocked by arena cover before hit resolution
}

// RoundsToWin returns the round wins needed to take the match.
func (m MatchConfig) RoundsToWin() int {
	return (m.MaxRounds + 1) / 2
}

// RoundCap returns the last round a match may reach before it is drawn.
func (m MatchConfig) RoundCap() int {
	return m.MaxRounds + m.ExtraRounds
}

// WeaponConfig contains the hitscan weapon model.
type WeaponConfig struct {
	MaxRange    float64 // World units
	AccuracyCos float64 // Minimum cosine between aim and shooter-to-target vector

	// Reported positions are feet points. The aim ray, evaluated at the
	// target's distance, hits only between the feet and PlayerHeight; above
	// HeadHeight it is a headshot.
	PlayerHeight   float64
	HeadHeight     float64
	HeadshotDamage int

	// Body shots deal BodyDamage scaled by a linear falloff that reaches
	// zero at FalloffRange and is floored at MinDamageFraction.
	BodyDamage        int
	FalloffRange      float64
	MinDamageFraction float64

	// A client-supplied shot origin further than this from the shooter's
	// last reported position is replaced by that position.
	OriginTolerance float64
}

var Match MatchConfig
var Weapon WeaponConfig

func init() {
	Match = MatchConfig{
		Modes: []string{"1v1"},

		MaxRounds:   5,
		ExtraRounds: 5,

		RoundTimeLimit:  120 * time.Second,
		FirstRoundDelay: 3 * time.Second,
		RoundCooldown:   3 * time.Second,
		Retention:       30 * time.Second,

		MaxHealth: 100,

		ForfeitOnDisconnect: true,
		OcclusionCheck:      true,
	}

	Weapon = WeaponConfig{
		MaxRange:    100.0,
		AccuracyCos: 0.95,

		PlayerHeight:   1.8,
		HeadHeight:     1.5,
		HeadshotDamage: 100, // >= MaxHealth: one-shot kill

		BodyDamage:        34,
		FalloffRange:      60.0,
		MinDamageFraction: 0.5,

		OriginTolerance: 2.0,
	}
}
