// Package protocol checks inbound messages before they reach game logic.
// Anything that fails validation is dropped without penalizing the sender.
package protocol

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

const (
	MaxNameLength    = 32
	MaxVersionLength = 32
	MaxModeLength    = 16
	MaxMatchIDLength = 64
)

// ErrMalformed is wrapped by every validation failure.
var ErrMalformed = eris.New("malformed message")

// Validate reports whether msg is well formed. It does not check game state.
func Validate(msg messages.Inbound) error {
	switch m := msg.(type) {
	case messages.Hello:
		if len(m.Version) > MaxVersionLength {
			return eris.Wrap(ErrMalformed, "version too long")
		}
		if len(m.Name) > MaxNameLength {
			return eris.Wrap(ErrMalformed, "name too long")
		}
	case messages.RequestMatchmaking:
		mode := strings.TrimSpace(m.Mode)
		if mode == "" || len(mode) > MaxModeLength {
			return eris.Wrapf(ErrMalformed, "invalid mode %q", m.Mode)
		}
	case messages.CancelMatchmaking, messages.Heartbeat:
	case messages.ReportPosition:
		if err := checkMatchID(m.MatchID); err != nil {
			return err
		}
		if !m.Position.IsFinite() || !m.Orientation.IsFinite() {
			return eris.Wrap(ErrMalformed, "non-finite pose")
		}
	case messages.ReportShot:
		if err := checkMatchID(m.MatchID); err != nil {
			return err
		}
		if _, ok := m.Aim.Normalize(); !ok {
			return eris.Wrap(ErrMalformed, "aim direction has no length")
		}
		if m.Origin != nil && !m.Origin.IsFinite() {
			return eris.Wrap(ErrMalformed, "non-finite shot origin")
		}
	case nil:
		return eris.Wrap(ErrMalformed, "empty message")
	default:
		return eris.Wrapf(ErrMalformed, "unknown message %T", msg)
	}
	return nil
}

// NormalizeMode canonicalizes a requested game mode name.
func NormalizeMode(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}

// NormalizeAim returns the unit aim direction of a validated shot.
func NormalizeAim(aim gamemath.Vec3) gamemath.Vec3 {
	n, _ := aim.Normalize()
	return n
}

func checkMatchID(id string) error {
	if id == "" || len(id) > MaxMatchIDLength {
		return eris.Wrap(ErrMalformed, "invalid match id")
	}
	return nil
}
