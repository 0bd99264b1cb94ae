package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 48*time.Hour, cfg.Placement.RequestTTL)
	assert.Equal(t, 24*time.Hour, cfg.ChildAccess.ShortTTL)
	assert.Equal(t, 72*time.Hour, cfg.ChildAccess.MediumTTL)
	assert.NotEmpty(t, cfg.ChildAccess.LinkBase)
	assert.Equal(t, 15*time.Minute, cfg.Security.JWTAccessTTL)
	assert.Equal(t, 10, cfg.Security.MaxSessions)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("WHOSEHOUSE_ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}
