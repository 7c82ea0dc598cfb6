package cmd

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedbridge/schedbridge/sim"
)

func TestReportSimulation_ExitStatus(t *testing.T) {
	done := sim.NewProc(3, 10, 0)
	done.Done, done.StartTick, done.FinishTick = true, 0, 10
	pending := sim.NewProc(4, 10, 0)

	tests := []struct {
		name  string
		stats *sim.Stats
		err   error
		want  int
	}{
		{"all finished", &sim.Stats{Finished: 1, Procs: []sim.Proc{*done}}, nil, 0},
		{"budget exhausted", &sim.Stats{Finished: 1, Procs: []sim.Proc{*done, *pending}}, fmt.Errorf("run: %w", sim.ErrIncomplete), 2},
		{"advice timeout", &sim.Stats{Procs: []sim.Proc{*pending}}, sim.ErrAdviceTimeout, 2},
		{"no stats", nil, fmt.Errorf("boom"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.want, reportSimulation(&out, tt.stats, tt.err))
			if tt.want != 0 {
				assert.Contains(t, out.String(), "Not all processes finished")
			}
		})
	}
}

func TestTimeoutFlag_AcceptsSecondsOrDuration(t *testing.T) {
	tests := []struct {
		arg  string
		want time.Duration
	}{
		{"8", 8 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"1500ms", 1500 * time.Millisecond},
		{"3s", 3 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			cfg := DefaultConfig()
			applySimulateFlags(parsedFlags(t, "--timeout", tt.arg), &cfg)
			assert.Equal(t, tt.want, cfg.Simulate.AdviceTimeout)
		})
	}
}

func TestTimeoutFlag_RejectsBadValues(t *testing.T) {
	for _, arg := range []string{"soon", "-1", "-2s"} {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		addSimulateFlags(fs)
		require.Error(t, fs.Parse([]string{"--timeout", arg}), arg)
	}
}
