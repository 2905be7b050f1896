package config

import (
	"testing"
	"time"

	"gocausal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("MAX_CONCURRENT_QUERIES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "", cfg.Database.URL)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrentQueries)
	assert.False(t, cfg.Engine.KeepLatentArcs)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_QUERIES", "16")
	t.Setenv("KEEP_LATENT_ARCS", "true")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 16, cfg.Engine.MaxConcurrentQueries)
	assert.True(t, cfg.Engine.KeepLatentArcs)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_QUERIES", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
