package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("MOCK_VERIFICATION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, "demo-user-1", cfg.DefaultUserID)
	assert.Equal(t, 10*time.Second, cfg.VerifyTimeout)
	assert.True(t, cfg.MockVerification)
	assert.Equal(t, "https://developer.worldcoin.org", cfg.WorldcoinBaseURL)
}

func TestMockVerificationOffOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MOCK_VERIFICATION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MockVerification)
}

func TestLoadRequiresDatabaseSettingsForMySQL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load()
	assert.Error(t, err)
}

func TestVerificationConfigured(t *testing.T) {
	assert.False(t, Config{AppID: "app_1"}.VerificationConfigured())
	assert.True(t, Config{AppID: "app_1", DevPortalAPIKey: "key"}.VerificationConfigured())
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestParseMethods(t *testing.T) {
	m := parseMethods(" get, head ,,")
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, m)
}

func TestNewRedisClient(t *testing.T) {
	assert.Nil(t, NewRedisClient(context.Background(), RedisConfig{}))

	mr := miniredis.RunT(t)
	client := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
}
