package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "fs", cfg.ArtifactBackend)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.NodeTimeout)
	assert.True(t, cfg.FeatureContainerRunner)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SHIPSEC_HTTP_ADDR", ":9999")
	t.Setenv("SHIPSEC_STORE_DRIVER", "sqlite")
	t.Setenv("SHIPSEC_STORE_DSN", "/tmp/shipsec.db")
	t.Setenv("SHIPSEC_NODE_TIMEOUT_SECONDS", "60")
	t.Setenv("SHIPSEC_FEATURE_CONTAINER_RUNNER", "false")
	t.Setenv("SHIPSEC_LOG_FORMAT", "json")
	t.Setenv("SHIPSEC_JWT_SECRET", "sekrit")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "/tmp/shipsec.db", cfg.StoreDSN)
	assert.Equal(t, time.Minute, cfg.NodeTimeout)
	assert.False(t, cfg.FeatureContainerRunner)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "sekrit", cfg.JWTSecret)
}
