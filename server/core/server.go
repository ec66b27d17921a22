package core

import (
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/leap-fish/necs/router"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/config"
	"github.com/mueseralex/tactical-arena-shooter/server/arena"
	"github.com/mueseralex/tactical-arena-shooter/server/combat"
	"github.com/mueseralex/tactical-arena-shooter/server/dispatch"
	"github.com/mueseralex/tactical-arena-shooter/server/match"
	"github.com/mueseralex/tactical-arena-shooter/server/matchmaking"
	"github.com/mueseralex/tactical-arena-shooter/server/session"
	"github.com/mueseralex/tactical-arena-shooter/shared/messages"
)

// Options configure a Server. Clock, Sender and Timers are optional; the
// defaults are the real clock, the websocket transport and gocron.
type Options struct {
	Config config.ServerConfig
	Rules  config.MatchConfig
	Weapon config.WeaponConfig
	Arena  *arena.Arena
	Logger zerolog.Logger

	Clock  clockwork.Clock
	Sender dispatch.Sender
	Timers match.Scheduler
}

// Server owns all game state: the connection registry, the matchmaking
// queue and the live matches. Everything it owns is touched only from the
// game loop.
type Server struct {
	cfg    config.ServerConfig
	rules  config.MatchConfig
	clock  clockwork.Clock
	logger zerolog.Logger

	loop      *GameLoop
	transport *Transport
	scheduler *Scheduler // nil when timers are injected
	timers    match.Scheduler

	registry     *session.Registry
	queue        *matchmaking.Queue
	orchestrator *match.Orchestrator
	engine       *combat.Engine
	dispatcher   *dispatch.Dispatcher
	arena        *arena.Arena

	registration *Registration

	stats counters
}

type counters struct {
	players atomic.Int64
	queued  atomic.Int64
	matches atomic.Int64
	played  atomic.Uint64
}

// Stats is a point-in-time view of the server's load.
type Stats struct {
	Players       int
	Queued        int
	Matches       int
	MatchesPlayed uint64
}

// NewServer wires the components together. Nothing runs until Start.
func NewServer(opts Options) (*Server, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid server config")
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := opts.Arena
	if a == nil {
		a = arena.Default()
	}

	s := &Server{
		cfg:       opts.Config,
		rules:     opts.Rules,
		clock:     clock,
		logger:    opts.Logger.With().Str("component", "server").Logger(),
		transport: NewTransport(opts.Config.Port, opts.Logger),
		arena:     a,
	}
	s.loop = NewGameLoop(s, opts.Config.TickRate, opts.Logger)

	s.timers = opts.Timers
	if s.timers == nil {
		sched, err := NewScheduler(clock, s.loop.Post, opts.Logger)
		if err != nil {
			return nil, err
		}
		s.scheduler = sched
		s.timers = sched
	}

	var sender dispatch.Sender = s.transport
	if opts.Sender != nil {
		sender = opts.Sender
	}

	s.registry = session.NewRegistry(clock, opts.Logger)
	s.engine = combat.NewEngine(opts.Weapon, opts.Logger)
	s.dispatcher = dispatch.New(sender, s.registry, opts.Logger)
	s.orchestrator = match.NewOrchestrator(opts.Rules, match.Deps{
		Registry:   s.registry,
		Engine:     s.engine,
		Arena:      a,
		Dispatcher: s.dispatcher,
		Scheduler:  s.timers,
		Clock:      clock,
		Logger:     opts.Logger,
	})
	s.queue = matchmaking.NewQueue(s.orchestrator, clock, opts.Logger)

	if opts.Config.MasterURL != "" {
		s.registration = NewRegistration(opts.Config, s.Stats, opts.Logger)
	}

	return s, nil
}

// Start runs the game loop, the timers and master registration, then serves
// websocket clients until the listener fails.
func (s *Server) Start() error {
	s.setupRouterCallbacks()

	s.loop.Start()
	if s.scheduler != nil {
		s.scheduler.Start()
	}
	if s.registration != nil {
		if err := s.registration.Start(); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("name", s.cfg.Name).
		Uint("port", s.cfg.Port).
		Str("arena", s.arena.Name).
		Strs("modes", s.rules.Modes).
		Msg("Server listening")

	return s.transport.Listen()
}

// Stop shuts the server down. In-flight matches are abandoned.
func (s *Server) Stop() {
	if s.registration != nil {
		s.registration.Stop()
	}
	s.loop.Stop()
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Warn().Err(err).Msg("Scheduler shutdown failed")
		}
	}
	s.logger.Info().Msg("Server stopped")
}

// Stats is safe to call from any goroutine.
func (s *Server) Stats() Stats {
	return Stats{
		Players:       int(s.stats.players.Load()),
		Queued:        int(s.stats.queued.Load()),
		Matches:       int(s.stats.matches.Load()),
		MatchesPlayed: s.stats.played.Load(),
	}
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.loop.Post(func() { s.onConnect(client) })
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.loop.Post(func() { s.onDisconnect(client, err) })
	})

	route[messages.Hello](s)
	route[messages.RequestMatchmaking](s)
	route[messages.CancelMatchmaking](s)
	route[messages.Heartbeat](s)
	route[messages.ReportPosition](s)
	route[messages.ReportShot](s)

	router.OnError(func(client *router.NetworkClient, err error) {
		s.logger.Debug().Err(err).Str("client", client.Id()).Msg("Client error")
	})
}

// route forwards one inbound message type to the game loop.
func route[T messages.Inbound](s *Server) {
	router.On(func(client *router.NetworkClient, msg T) {
		s.loop.Post(func() { s.onMessage(client, msg) })
	})
}

// necs runs connect callbacks on their own goroutine while messages arrive
// on the read goroutine, so the loop may see a client's first message, or
// even its disconnect, before its connect. Whichever arrives first opens the
// session.
func (s *Server) onConnect(client *router.NetworkClient) {
	if !s.transport.Connected(client) {
		return
	}
	s.admit(client)
}

func (s *Server) onMessage(client *router.NetworkClient, msg messages.Inbound) {
	id, ok := s.transport.ID(client)
	if !ok {
		if !s.transport.Admits(client) {
			return
		}
		id = s.admit(client)
	}
	s.handleMessage(id, msg)
}

func (s *Server) onDisconnect(client *router.NetworkClient, err error) {
	id, ok := s.transport.Closed(client)
	if !ok {
		return
	}
	reason := "closed"
	if err != nil {
		reason = err.Error()
	}
	s.disconnect(id, reason)
}

func (s *Server) admit(client *router.NetworkClient) session.ID {
	id := s.connect()
	s.transport.Bind(client, id)
	s.logger.Info().Str("client", client.Id()).Uint64("player_id", uint64(id)).Msg("Client connected")
	return id
}

func (s *Server) connect() session.ID {
	p := s.registry.Connect()
	s.refreshStats()
	return p.ID()
}

// disconnect tears a session down: it leaves the registry, loses any
// matchmaking ticket, and forfeits a live match.
func (s *Server) disconnect(id session.ID, reason string) {
	s.transport.Unbind(id)
	if !s.registry.Disconnect(id) {
		return
	}
	dequeued := s.queue.Remove(id)
	forfeited := s.orchestrator.HandleDisconnect(id)

	s.logger.Info().
		Uint64("player_id", uint64(id)).
		Str("reason", reason).
		Bool("dequeued", dequeued).
		Bool("forfeited", forfeited).
		Msg("Player disconnected")

	s.refreshStats()
}

// tick runs once per loop tick.
func (s *Server) tick() {
	for _, id := range s.registry.Idle(s.cfg.IdleTimeout) {
		s.disconnect(id, "idle timeout")
	}
	s.refreshStats()
}

func (s *Server) refreshStats() {
	s.stats.players.Store(int64(s.registry.Len()))
	s.stats.queued.Store(int64(s.queue.Total()))
	s.stats.matches.Store(int64(s.orchestrator.Live()))
	created, _ := s.orchestrator.Totals()
	s.stats.played.Store(created)
}
