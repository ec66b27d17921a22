package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/master"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := master.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flag.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "Server TTL before expiry")
	flag.Parse()

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	clock := clockwork.NewRealClock()
	reg := master.NewRegistry(cfg.TTL, clock, logger)

	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(func() { reg.Expire() }),
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to schedule expiry sweep")
	}
	sched.Start()

	app := master.NewApp(reg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Shutting down master server")
		_ = sched.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("addr", addr).Dur("ttl", cfg.TTL).Msg("Master server starting")
	if err := app.Listen(addr); err != nil {
		logger.Fatal().Err(err).Msg("Master server failed")
	}
}
