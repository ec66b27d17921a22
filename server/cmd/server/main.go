package main

import (
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/mueseralex/tactical-arena-shooter/assets"
	"github.com/mueseralex/tactical-arena-shooter/config"
	"github.com/mueseralex/tactical-arena-shooter/server/arena"
	"github.com/mueseralex/tactical-arena-shooter/server/core"
)

// openArena is the built-in map without cover, always available.
const openArena = "open"

func main() {
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		bootLog.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.ParseServerConfig()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	flag.UintVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.IntVar(&cfg.TickRate, "tickrate", cfg.TickRate, "Server tick rate (updates per second)")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Server display name")
	flag.StringVar(&cfg.RequiredVersion, "version", cfg.RequiredVersion, "Required client version (empty = accept any)")
	flag.StringVar(&cfg.ArenaMap, "map", cfg.ArenaMap, "Arena map name")
	flag.StringVar(&cfg.MapsDir, "maps", cfg.MapsDir, "Directory of .tmx arenas (empty = embedded)")
	flag.StringVar(&cfg.MasterURL, "master", cfg.MasterURL, "Master server URL (empty = don't register)")
	flag.StringVar(&cfg.PublicAddress, "public-address", cfg.PublicAddress, "Address advertised to the master server")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid config")
	}

	logger, err := core.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to create logger")
	}

	a, err := selectArena(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load arena")
	}

	server, err := core.NewServer(core.Options{
		Config: cfg,
		Rules:  config.Match,
		Weapon: config.Weapon,
		Arena:  a,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Shutting down server...")
		server.Stop()
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}
}

func selectArena(cfg config.ServerConfig) (*arena.Arena, error) {
	if cfg.ArenaMap == openArena {
		return arena.Default(), nil
	}

	var fsys fs.FS = assets.Arenas
	dir := assets.ArenasDir
	if cfg.MapsDir != "" {
		fsys = os.DirFS(cfg.MapsDir)
		dir = "."
	}

	arenas, names, err := arena.LoadAll(fsys, dir)
	if err != nil {
		return nil, err
	}
	a, ok := arenas[cfg.ArenaMap]
	if !ok {
		return nil, eris.Errorf("unknown arena %q (available: %s, %s)",
			cfg.ArenaMap, strings.Join(names, ", "), openArena)
	}
	return a, nil
}
