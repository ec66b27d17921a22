package master

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// Config is the master server's runtime configuration.
type Config struct {
	Port          int           `env:"MASTER_PORT" envDefault:"8080"`
	TTL           time.Duration `env:"MASTER_TTL" envDefault:"90s"`
	SweepInterval time.Duration `env:"MASTER_SWEEP_INTERVAL" envDefault:"30s"`
	LogLevel      string        `env:"MASTER_LOG_LEVEL" envDefault:"info"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, eris.Wrap(err, "failed to parse master config")
	}
	if cfg.TTL <= 0 || cfg.SweepInterval <= 0 {
		return Config{}, eris.Errorf("invalid ttl %s / sweep interval %s", cfg.TTL, cfg.SweepInterval)
	}
	return cfg, nil
}
