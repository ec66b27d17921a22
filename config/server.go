package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ServerConfig is the dedicated server's runtime configuration, read from the
// environment. Command-line flags may override individual values.
type ServerConfig struct {
	Port            uint          `env:"ARENA_PORT" envDefault:"7373"`
	TickRate        int           `env:"ARENA_TICK_RATE" envDefault:"20"`
	Name            string        `env:"ARENA_SERVER_NAME" envDefault:"Arena Server"`
	RequiredVersion string        `env:"ARENA_REQUIRED_VERSION"` // empty = accept any
	MaxPlayers      int           `env:"ARENA_MAX_PLAYERS" envDefault:"64"`
	IdleTimeout     time.Duration `env:"ARENA_IDLE_TIMEOUT" envDefault:"30s"`

	// Arena map: ArenaMap names a .tmx stem under MapsDir, or the embedded
	// arenas when MapsDir is empty.
	ArenaMap string `env:"ARENA_MAP" envDefault:"foundry"`
	MapsDir  string `env:"ARENA_MAPS_DIR"`

	// Master server registration (disabled when MasterURL is empty).
	MasterURL     string `env:"ARENA_MASTER_URL"`
	PublicAddress string `env:"ARENA_PUBLIC_ADDRESS"`
	Region        string `env:"ARENA_REGION" envDefault:"local"`

	LogLevel  string `env:"ARENA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ARENA_LOG_FORMAT" envDefault:"json"`
}

// ParseServerConfig reads the environment without validating, so callers can
// apply overrides first.
func ParseServerConfig() (ServerConfig, error) {
	cfg, err := env.ParseAs[ServerConfig]()
	if err != nil {
		return ServerConfig{}, eris.Wrap(err, "failed to parse server config")
	}
	return cfg, nil
}

// LoadServerConfig loads and validates the server configuration from
// environment variables.
func LoadServerConfig() (ServerConfig, error) {
	cfg, err := ParseServerConfig()
	if err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, eris.Wrap(err, "failed to validate server config")
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at runtime.
func (c ServerConfig) Validate() error {
	if c.TickRate <= 0 || c.TickRate > 120 {
		return eris.Errorf("invalid tick rate: %d", c.TickRate)
	}
	if c.MaxPlayers <= 0 {
		return eris.Errorf("invalid max players: %d", c.MaxPlayers)
	}
	if c.IdleTimeout <= 0 {
		return eris.Errorf("invalid idle timeout: %s", c.IdleTimeout)
	}
	if c.MasterURL != "" && (c.PublicAddress == "" || c.Name == "") {
		return eris.New("master registration needs a server name and public address")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return eris.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case LogFormatJSON, LogFormatPretty:
	default:
		return eris.Errorf("invalid log format: %s (must be 'json' or 'pretty')", c.LogFormat)
	}
	return nil
}

const (
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)
