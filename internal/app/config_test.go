package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://u:p@db:5432/linen")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 4, cfg.SelfHealConcurrency)
	require.Equal(t, 3, cfg.VendorPendingLimit)
	require.Equal(t, 30*time.Second, cfg.AppRequestTimeout)
	require.False(t, cfg.IsProduction())
	require.Empty(t, cfg.SelfHealCron)
	require.False(t, cfg.SelfHealScheduled())
	require.Equal(t, int32(10), cfg.PoolOptions().MaxConns)
	require.Equal(t, 30*time.Minute, cfg.PoolOptions().MaxConnLifetime)
	require.Equal(t, "127.0.0.1:6379", cfg.RedisOptions().Addr)
}

func TestSelfHealScheduleIsOptIn(t *testing.T) {
	t.Setenv("SELF_HEAL_CRON", "0 3 * * *")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.SelfHealScheduled())
}

func TestLoadConfigRejectsInvalidPoolSizing(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "4")
	t.Setenv("PG_MIN_CONNS", "8")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("SELF_HEAL_CONCURRENCY", "0")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("SELF_HEAL_CONCURRENCY", "2")
	t.Setenv("VENDOR_PENDING_LIMIT", "-1")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestRefreshTestMode(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "": false, "0": false, "yes please": false} {
		t.Setenv(testModeEnv, value)
		require.Equal(t, want, RefreshTestMode(), value)
		require.Equal(t, want, InTestMode(), value)
	}
}

func TestLoadConfigRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "LOG_LEVEL")

	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}
