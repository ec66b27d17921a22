package core

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/config"
	"github.com/mueseralex/tactical-arena-shooter/master"
)

const (
	heartbeatInterval = 30 * time.Second
	requestTimeout    = 5 * time.Second
)

// Registration handles registering and heartbeating with the master server.
// It runs on its own scheduler so slow HTTP calls never stall the game loop.
type Registration struct {
	cfg      config.ServerConfig
	stats    func() Stats
	logger   zerolog.Logger
	interval time.Duration
	cron     gocron.Scheduler

	mu       sync.Mutex
	serverID string
}

func NewRegistration(cfg config.ServerConfig, stats func() Stats, logger zerolog.Logger) *Registration {
	return &Registration{
		cfg:      cfg,
		stats:    stats,
		logger:   logger.With().Str("component", "registration").Logger(),
		interval: heartbeatInterval,
	}
}

func (r *Registration) Start() error {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return eris.Wrap(err, "failed to create registration scheduler")
	}
	if _, err := cron.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			if err := r.sendHeartbeat(); err != nil {
				r.logger.Warn().Err(err).Msg("Heartbeat failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return eris.Wrap(err, "failed to schedule heartbeat")
	}
	r.cron = cron

	if err := r.register(); err != nil {
		r.logger.Warn().Err(err).Msg("Initial registration failed")
	}
	cron.Start()
	return nil
}

func (r *Registration) Stop() {
	if r.cron == nil {
		return
	}
	if err := r.cron.Shutdown(); err != nil {
		r.logger.Warn().Err(err).Msg("Registration scheduler shutdown failed")
	}
}

// ServerID returns the id assigned by the master, empty until registered.
func (r *Registration) ServerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.serverID
}

func (r *Registration) load() master.Load {
	st := r.stats()
	return master.Load{Players: st.Players, Queued: st.Queued, Matches: st.Matches}
}

func (r *Registration) register() error {
	var result master.RegisterResponse
	code, _, errs := r.post("/servers/register", master.RegisterRequest{
		Name:       r.cfg.Name,
		Address:    r.cfg.PublicAddress,
		MaxPlayers: r.cfg.MaxPlayers,
		Version:    r.cfg.RequiredVersion,
		Region:     r.cfg.Region,
		Load:       r.load(),
	}).Struct(&result)
	if len(errs) > 0 {
		return eris.Wrap(errs[0], "register")
	}
	if code != fiber.StatusCreated {
		return eris.Errorf("register: unexpected status %d", code)
	}

	r.mu.Lock()
	r.serverID = result.ID
	r.mu.Unlock()

	r.logger.Info().Str("server_id", result.ID).Msg("Registered with master")
	return nil
}

func (r *Registration) sendHeartbeat() error {
	id := r.ServerID()
	if id == "" {
		return r.register()
	}

	code, _, errs := r.post("/servers/heartbeat", master.HeartbeatRequest{
		ID:   id,
		Load: r.load(),
	}).Bytes()
	if len(errs) > 0 {
		return eris.Wrap(errs[0], "heartbeat")
	}

	switch code {
	case fiber.StatusOK:
		return nil
	case fiber.StatusNotFound:
		r.logger.Info().Msg("Master lost our registration, re-registering")
		return r.register()
	default:
		return eris.Errorf("heartbeat: unexpected status %d", code)
	}
}

func (r *Registration) post(path string, body any) *fiber.Agent {
	return fiber.Post(r.cfg.MasterURL+path).
		JSONEncoder(json.Marshal).
		JSONDecoder(json.Unmarshal).
		Timeout(requestTimeout).
		JSON(body)
}
