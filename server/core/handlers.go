package core

import (
	"fmt"

	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
	"github.com/mueseralex/tactical-arena-shooter/shared/protocol"
)

// Join rejection reasons.
const (
	RejectVersion = "version mismatch"
	RejectFull    = "server full"
)

// handleMessage is the single entry point for inbound messages. Malformed
// messages and messages from players that have not completed the handshake
// are dropped; nothing here is reported back to the sender as an error.
func (s *Server) handleMessage(id session.ID, msg messages.Inbound) {
	if err := protocol.Validate(msg); err != nil {
		s.logger.Debug().Err(err).Uint64("player_id", uint64(id)).Msg("Dropping malformed message")
		return
	}

	p, ok := s.registry.Get(id)
	if !ok {
		return
	}
	s.registry.Touch(id)

	switch m := msg.(type) {
	case messages.Hello:
		s.handleHello(p, m)
		return
	case messages.Heartbeat:
		s.dispatcher.ToPlayer(id, messages.Pong{
			ClientTime: m.ClientTime,
			ServerTime: s.clock.Now().UnixMilli(),
		})
		return
	}

	if !p.Joined() {
		s.logger.Debug().
			Uint64("player_id", uint64(id)).
			Str("message", fmt.Sprintf("%T", msg)).
			Msg("Dropping message before handshake")
		return
	}

	switch m := msg.(type) {
	case messages.RequestMatchmaking:
		s.handleRequestMatchmaking(p, m)
	case messages.CancelMatchmaking:
		s.handleCancelMatchmaking(p)
	case messages.ReportPosition:
		s.orchestrator.HandlePosition(id, m)
	case messages.ReportShot:
		s.orchestrator.HandleShot(id, m)
	default:
		s.logger.Debug().
			Uint64("player_id", uint64(id)).
			Str("message", fmt.Sprintf("%T", msg)).
			Msg("Ignoring unhandled message")
	}
}

func (s *Server) handleHello(p *session.Player, msg messages.Hello) {
	if p.Joined() {
		s.logger.Debug().Uint64("player_id", uint64(p.ID())).Msg("Ignoring repeated hello")
		return
	}

	reason := ""
	switch {
	case s.cfg.RequiredVersion != "" && msg.Version != s.cfg.RequiredVersion:
		reason = RejectVersion
	case s.registry.Len() > s.cfg.MaxPlayers:
		reason = RejectFull
	}
	if reason != "" {
		s.logger.Info().
			Uint64("player_id", uint64(p.ID())).
			Str("version", msg.Version).
			Str("reason", reason).
			Msg("Join rejected")
		s.dispatcher.ToPlayer(p.ID(), messages.JoinRejected{Reason: reason})
		s.disconnect(p.ID(), "join rejected")
		return
	}

	name := msg.Name
	if name == "" {
		name = fmt.Sprintf("player-%d", p.ID())
	}
	p.Join(name)

	s.logger.Info().
		Uint64("player_id", uint64(p.ID())).
		Str("name", name).
		Str("version", msg.Version).
		Msg("Player joined")

	s.dispatcher.ToPlayer(p.ID(), messages.Welcome{
		PlayerID:   p.ID(),
		ServerName: s.cfg.Name,
		TickRate:   s.cfg.TickRate,
		Modes:      s.rules.Modes,
	})
}

func (s *Server) handleRequestMatchmaking(p *session.Player, msg messages.RequestMatchmaking) {
	mode := protocol.NormalizeMode(msg.Mode)
	if !s.modeSupported(mode) {
		s.logger.Debug().Uint64("player_id", uint64(p.ID())).Str("mode", mode).Msg("Unsupported mode requested")
		s.dispatcher.ToPlayer(p.ID(), messages.QueueStatus{Mode: mode})
		return
	}
	if p.InMatch() {
		s.logger.Debug().
			Uint64("player_id", uint64(p.ID())).
			Str("match_id", p.MatchID()).
			Msg("Ignoring matchmaking request from player in a match")
		return
	}

	s.queue.Enqueue(p.ID(), mode)
	s.refreshStats()

	// Paired straight away: MatchFound already went out.
	if _, waiting := s.queue.Ticket(p.ID()); !waiting {
		return
	}
	s.dispatcher.ToPlayer(p.ID(), messages.QueueStatus{
		Mode:      mode,
		Searching: true,
		Waiting:   s.queue.Len(mode),
	})
}

func (s *Server) handleCancelMatchmaking(p *session.Player) {
	t, ok := s.queue.Ticket(p.ID())
	if !ok {
		return
	}
	s.queue.Remove(p.ID())
	s.refreshStats()
	s.dispatcher.ToPlayer(p.ID(), messages.QueueStatus{Mode: t.Mode})
}

func (s *Server) modeSupported(mode string) bool {
	for _, m := range s.rules.Modes {
		if m == mode {
			return true
		}
	}
	return false
}
