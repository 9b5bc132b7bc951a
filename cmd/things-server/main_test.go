package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eion/things/internal/config"
	"github.com/eion/things/internal/things"
)

func TestNewAppStateInMemory(t *testing.T) {
	t.Setenv("THINGS_STORAGE_DRIVER", "memory")
	t.Setenv("THINGS_RATE_LIMIT_ENABLED", "true")
	config.LoadDefault()
	config.ApplyEnvOverrides()

	as, err := newAppState(context.Background(), zap.NewNop())
	require.NoError(t, err)
	defer as.Close()

	assert.NotNil(t, as.Metrics)
	assert.NotNil(t, as.Registry)
	assert.NotNil(t, as.RateLimiter)
	require.NoError(t, as.Health.StartupHealthCheck(context.Background()))

	name := "Lamp"
	created, err := as.ThingService.CreateThing(context.Background(), &things.ThingParams{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
}

func TestNewAppStateUnknownDriver(t *testing.T) {
	t.Setenv("THINGS_STORAGE_DRIVER", "sqlite")
	config.LoadDefault()
	config.ApplyEnvOverrides()

	_, err := newAppState(context.Background(), zap.NewNop())
	assert.ErrorContains(t, err, `unknown storage driver "sqlite"`)
}

func TestInitLogger(t *testing.T) {
	config.LoadDefault()

	logger := initLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
