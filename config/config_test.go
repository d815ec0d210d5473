package config_test

import (
	"testing"

	"github.com/katalvlaran/vlsiflow/config"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, config.DefaultConfig().Validate())
}

func TestNewAppliesOptionsInOrder(t *testing.T) {
	cfg := config.New(config.WithTargetDensity(0.5), config.WithGRCapacity(4))
	require.Equal(t, 0.5, cfg.TargetDensity)
	require.Equal(t, 4, cfg.GRCapacity)
	require.NoError(t, cfg.Validate())
}

func TestWithTargetDensityPanicsOnInvalid(t *testing.T) {
	require.Panics(t, func() { config.WithTargetDensity(0) })
	require.Panics(t, func() { config.WithTargetDensity(1.5) })
}

func TestValidateCatchesBadBinDimension(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BinDimension = 100 // not a power of two
	require.ErrorIs(t, cfg.Validate(), config.ErrBadBinDimension)
}
