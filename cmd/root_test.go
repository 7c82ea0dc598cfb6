package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addSharedFlags(fs)
	addSimulateFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	// GIVEN a lower layer that already moved attempts and the model
	cfg := DefaultConfig()
	cfg.Oracle.Attempts = 7
	cfg.Oracle.Model = "from-env"

	// WHEN only --model and --interval are passed
	fs := parsedFlags(t, "--model", "llama3", "--interval", "3s")
	require.NoError(t, applyFlags(fs, &cfg))

	// THEN unset flags leave the lower layer alone
	assert.Equal(t, "llama3", cfg.Oracle.Model)
	assert.Equal(t, 3*time.Second, cfg.Loop.Interval)
	assert.Equal(t, 7, cfg.Oracle.Attempts)
}

func TestApplyFlags_WeightsApplyOverLowerLayer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Wait = 4

	require.NoError(t, applyFlags(parsedFlags(t, "--weights", "recent:0"), &cfg))

	assert.Equal(t, 4.0, cfg.Weights.Wait)
	assert.Equal(t, 0.0, cfg.Weights.Recent)
}

func TestApplyFlags_BadWeights(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, applyFlags(parsedFlags(t, "--weights", "cpu:1"), &cfg))
}

func TestApplySimulateFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulate.Seed = 9

	applySimulateFlags(parsedFlags(t, "--ticks", "40", "--slow-after-emit-ms", "0", "--timeout", "3s"), &cfg)

	assert.Equal(t, 40, cfg.Simulate.Ticks)
	assert.Equal(t, time.Duration(0), cfg.Simulate.SlowAfterEmit)
	assert.Equal(t, 3*time.Second, cfg.Simulate.AdviceTimeout)
	assert.Equal(t, int64(9), cfg.Simulate.Seed)
	assert.Equal(t, DefaultConfig().Simulate.Quantum, cfg.Simulate.Quantum)
}

func TestApplyFlags_Tracing(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, applyFlags(parsedFlags(t, "--trace", "stdout"), &cfg))

	assert.Equal(t, TraceStdout, cfg.Tracing.Exporter)
	assert.Equal(t, DefaultConfig().Tracing.Endpoint, cfg.Tracing.Endpoint)
}
