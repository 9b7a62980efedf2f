package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_Defaults(t *testing.T) {
	got, err := DefaultSchema().Settings(NewConfig())
	require.NoError(t, err)

	want := Settings{
		LogLevel:        slog.LevelInfo,
		ExprCacheSize:   1000,
		Workers:         2,
		TickInterval:    10 * time.Millisecond,
		ReplanBurst:     1,
		DecayRate:       0.01,
		MinCertainty:    0.2,
		ForgetThreshold: 0.05,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
}

func TestSettings_FromConfigAndEnv(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`log.level debug
log.file /tmp/npc.log
planner.max-expansions 5000
selector.floor 0.1
scheduler.workers 3
scheduler.queue-size 64
scheduler.tick-interval 50ms
scheduler.replan-rate 2.5
scheduler.replan-burst 4
facts.decay-rate 0
facts.min-certainty 0.3
facts.forget-threshold 0.1
`))
	require.NoError(t, err)
	require.Empty(t, cfg.GetWarnings())
	t.Setenv("NPC_WORKERS", "6")

	got, err := DefaultSchema().Settings(cfg)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, got.LogLevel)
	assert.Equal(t, "/tmp/npc.log", got.LogFile)
	assert.Equal(t, 5000, got.MaxExpansions)
	assert.True(t, got.HasSelectorFloor)
	assert.Equal(t, 0.1, got.SelectorFloor)
	assert.Equal(t, 6, got.Workers, "environment overrides the file")
	assert.Equal(t, 64, got.QueueSize)
	assert.Equal(t, 50*time.Millisecond, got.TickInterval)
	assert.Equal(t, 2.5, got.ReplanRate)
	assert.Equal(t, 4, got.ReplanBurst)
	assert.Zero(t, got.DecayRate)
	assert.Equal(t, 0.3, got.MinCertainty)
	assert.Equal(t, 0.1, got.ForgetThreshold)
}

func TestSettings_Invalid(t *testing.T) {
	cfg := NewConfig()
	cfg.SetGlobalOption(KeyLogLevel, "loud")
	cfg.SetGlobalOption(KeyWorkers, "-1")
	cfg.SetGlobalOption(KeyMinCertainty, "1.5")
	cfg.SetGlobalOption(KeyReplanRate, "fast")
	cfg.SetGlobalOption(KeyTickInterval, "0s")
	cfg.SetGlobalOption(KeyDecayRate, "NaN")

	_, err := DefaultSchema().Settings(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `option "log.level": expected log level, got "loud"`)
	assert.Contains(t, msg, `option "scheduler.workers": must not be negative`)
	assert.Contains(t, msg, `option "facts.min-certainty": must be within [0, 1]`)
	assert.Contains(t, msg, `option "scheduler.replan-rate": expected float, got "fast"`)
	assert.Contains(t, msg, `option "scheduler.tick-interval": must be positive`)
	assert.Contains(t, msg, `option "facts.decay-rate": must be a number`)
}
