package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ERAPIConfig(t *testing.T) {
	t.Setenv("ER_API_SERVICE_KEY", "test-key")
	t.Setenv("ER_API_TIMEOUT", "3s")
	t.Setenv("ER_API_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.ERAPI.ServiceKey)
	assert.Equal(t, 3*time.Second, cfg.ERAPI.Timeout)
	assert.Equal(t, 4, cfg.ERAPI.Workers)
	assert.NoError(t, cfg.ERAPI.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ER_API_SERVICE_KEY", "")
	t.Setenv("TYPESENSE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, 10*time.Second, cfg.ERAPI.Timeout)
	assert.Equal(t, 8, cfg.ERAPI.Workers)
	assert.Equal(t, 6*time.Hour, cfg.Sync.RegionIndexTTL)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
}

func TestERAPIConfig_ValidateRequiresKey(t *testing.T) {
	cfg := ERAPIConfig{Workers: 8}
	assert.Error(t, cfg.Validate())

	cfg.ServiceKey = "k"
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())
}

func TestDSNAndAddr(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "erboard", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=erboard sslmode=disable", db.DatabaseDSN())

	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.RedisAddr())
}

func TestGetEnvAsDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_DURATION", time.Minute))
}
