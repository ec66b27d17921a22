package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundsToWin(t *testing.T) {
	tests := []struct {
		maxRounds int
		want      int
	}{
		{1, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{7, 4},
	}
	for _, tt := range tests {
		m := MatchConfig{MaxRounds: tt.maxRounds}
		assert.Equal(t, tt.want, m.RoundsToWin(), "max rounds %d", tt.maxRounds)
	}
}

func TestDefaultWeaponIsOneShotHeadshot(t *testing.T) {
	assert.GreaterOrEqual(t, Weapon.HeadshotDamage, Match.MaxHealth)
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, uint(7373), cfg.Port)
	assert.Equal(t, 20, cfg.TickRate)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Empty(t, cfg.MasterURL)
}

func TestLoadServerConfig_Env(t *testing.T) {
	t.Setenv("ARENA_PORT", "9000")
	t.Setenv("ARENA_SERVER_NAME", "eu-1")
	t.Setenv("ARENA_IDLE_TIMEOUT", "5s")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)

	assert.Equal(t, uint(9000), cfg.Port)
	assert.Equal(t, "eu-1", cfg.Name)
	assert.Equal(t, 5*time.Second, cfg.IdleTimeout)
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	t.Setenv("ARENA_LOG_LEVEL", "loud")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidate_MasterNeedsPublicAddress(t *testing.T) {
	t.Setenv("ARENA_MASTER_URL", "http://master.local:8080")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public address")

	cfg, err := ParseServerConfig()
	require.NoError(t, err)
	cfg.PublicAddress = "203.0.113.9:7373"
	assert.NoError(t, cfg.Validate())

	cfg.Name = ""
	assert.Error(t, cfg.Validate())
}
