package sim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schedbridge/schedbridge/advisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sharedFiles struct {
	log, advice string
}

func newShared(t *testing.T) sharedFiles {
	t.Helper()
	dir := t.TempDir()
	return sharedFiles{
		log:    filepath.Join(dir, "shared", "sched_log.txt"),
		advice: filepath.Join(dir, "shared", "llm_advice.txt"),
	}
}

func (f sharedFiles) config() Config {
	return Config{
		LogPath:       f.log,
		AdvicePath:    f.advice,
		BaseTS:        1000,
		AdviceTimeout: 5 * time.Second,
		PollEvery:     time.Millisecond,
		Seed:          42,
	}
}

// fallbackBridge builds a fallback-only advisor serving the shared files.
func fallbackBridge(t *testing.T, f sharedFiles) *advisor.Advisor {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(f.advice), 0o755))
	pub, err := advisor.NewPublisher(f.advice, "", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	return advisor.New(advisor.NewLogCursor(f.log, nil), pub, advisor.Options{Interval: 2 * time.Millisecond})
}

func TestRunClosedLoop_AllScenariosFinish(t *testing.T) {
	for _, name := range ValidScenarioNames() {
		t.Run(name, func(t *testing.T) {
			// GIVEN a built-in scenario and a fallback-only bridge
			f := newShared(t)
			procs, err := Scenario(name)
			require.NoError(t, err)
			s, err := NewSimulator(f.config(), procs)
			require.NoError(t, err)

			// WHEN the closed loop runs
			stats, err := RunClosedLoop(context.Background(), s, fallbackBridge(t, f))

			// THEN every process finishes and every decision got advice
			require.NoError(t, err)
			assert.True(t, stats.AllDone())
			assert.Len(t, stats.History, stats.Decisions)
			assert.LessOrEqual(t, stats.ContextSwitches, stats.Decisions)
			for _, p := range stats.Procs {
				assert.Equal(t, p.TotalRequired, p.CPUTicks, "pid %d", p.PID)
				assert.GreaterOrEqual(t, p.StartTick, 0)
				assert.GreaterOrEqual(t, p.FinishTick, p.StartTick)
			}
		})
	}
}

func TestRunClosedLoop_DemoUsesEveryTick(t *testing.T) {
	f := newShared(t)
	s, err := NewSimulator(f.config(), ScenarioDemo())
	require.NoError(t, err)

	stats, err := RunClosedLoop(context.Background(), s, fallbackBridge(t, f))

	require.NoError(t, err)
	// The demo's CPU demand equals the default tick budget and a process is
	// always on the CPU, so the run ends exactly at the budget.
	assert.Equal(t, DefaultTicks, stats.Ticks)
	var waits int64
	for _, p := range stats.Procs {
		waits += p.WaitTicks
	}
	assert.InDelta(t, float64(waits)/5, stats.AvgWait, 1e-9)
}

func TestRunClosedLoop_SameSeedSameStats(t *testing.T) {
	run := func() *Stats {
		f := newShared(t)
		s, err := NewSimulator(f.config(), ScenarioDemo())
		require.NoError(t, err)
		stats, err := RunClosedLoop(context.Background(), s, fallbackBridge(t, f))
		require.NoError(t, err)
		return stats
	}
	a, b := run(), run()
	assert.Equal(t, a.History, b.History)
	assert.Equal(t, a.Procs, b.Procs)
}

func TestRunClosedLoop_TickBudgetExhausted(t *testing.T) {
	f := newShared(t)
	cfg := f.config()
	cfg.Ticks = 20
	s, err := NewSimulator(cfg, ScenarioMinimal())
	require.NoError(t, err)

	stats, err := RunClosedLoop(context.Background(), s, fallbackBridge(t, f))

	assert.ErrorIs(t, err, ErrIncomplete)
	require.NotNil(t, stats)
	assert.Equal(t, 20, stats.Ticks)
	assert.False(t, stats.AllDone())
}

func TestSimulator_AdviceTimeout(t *testing.T) {
	// GIVEN no bridge at all
	f := newShared(t)
	cfg := f.config()
	cfg.AdviceTimeout = 30 * time.Millisecond
	s, err := NewSimulator(cfg, ScenarioMinimal())
	require.NoError(t, err)

	// WHEN the simulator emits its first snapshot
	stats, err := s.Run(context.Background())

	// THEN it stops after one decision with a timeout
	assert.ErrorIs(t, err, ErrAdviceTimeout)
	assert.Equal(t, 1, stats.Decisions)
	assert.Zero(t, stats.Ticks)

	data, readErr := os.ReadFile(f.log)
	require.NoError(t, readErr)
	block, ok := advisor.ParseBlock(string(data))
	require.True(t, ok)
	assert.Equal(t, int64(1000), block.Timestamp)
	assert.Len(t, block.Procs, 2)
}

func TestSimulator_AdviceNotRunnable(t *testing.T) {
	f := newShared(t)
	s, err := NewSimulator(f.config(), ScenarioMinimal())
	require.NoError(t, err)

	// A rogue advisor answers the first snapshot with an unknown pid.
	go func() {
		for i := 0; i < 1000; i++ {
			if data, err := os.ReadFile(f.log); err == nil && strings.Contains(string(data), advisor.BlockEnd) {
				af, err := os.OpenFile(f.advice, os.O_APPEND|os.O_WRONLY, 0o644)
				if err == nil {
					_, _ = af.WriteString(advisor.FormatAdvice(99, 1000))
					_ = af.Close()
				}
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrAdviceNotRunnable)
}

func TestSimulator_CancelledWhileWaiting(t *testing.T) {
	f := newShared(t)
	s, err := NewSimulator(f.config(), ScenarioMinimal())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_TruncateClearsSharedFiles(t *testing.T) {
	f := newShared(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.log), 0o755))
	require.NoError(t, os.WriteFile(f.log, []byte("stale\n"), 0o644))
	require.NoError(t, os.WriteFile(f.advice, []byte("ADVICE:PID=3 TS=1000 V=1\n"), 0o644))
	cfg := f.config()
	cfg.Truncate = true
	cfg.AdviceTimeout = 10 * time.Millisecond
	s, err := NewSimulator(cfg, ScenarioMinimal())
	require.NoError(t, err)

	_, err = s.Run(context.Background())

	// Stale advice for the same timestamp must not be picked up.
	assert.ErrorIs(t, err, ErrAdviceTimeout)
	data, readErr := os.ReadFile(f.log)
	require.NoError(t, readErr)
	assert.True(t, strings.HasPrefix(string(data), advisor.BlockStart))
}

func TestNewSimulator_Defaults(t *testing.T) {
	s, err := NewSimulator(Config{LogPath: "a", AdvicePath: "b"}, ScenarioMinimal())
	require.NoError(t, err)
	assert.Equal(t, DefaultTicks, s.cfg.Ticks)
	assert.Equal(t, DefaultQuantum, s.cfg.Quantum)
	assert.Equal(t, DefaultPollEvery, s.cfg.PollEvery)
	assert.Positive(t, s.BaseTS())

	_, err = NewSimulator(Config{}, ScenarioMinimal())
	assert.Error(t, err)
	_, err = NewSimulator(Config{LogPath: "a", AdvicePath: "b"}, nil)
	assert.Error(t, err)
}

func TestDefaultAdviceTimeout(t *testing.T) {
	assert.Equal(t, 8*time.Second, DefaultAdviceTimeout(3, time.Second, 150*time.Millisecond))
	assert.Equal(t, 8450*time.Millisecond, DefaultAdviceTimeout(3, 2*time.Second, 150*time.Millisecond))
}

func TestSimulator_TickAccounting(t *testing.T) {
	s, err := NewSimulator(Config{LogPath: "a", AdvicePath: "b"}, []*Proc{NewProc(3, 2, 0), NewProc(4, 5, 1)})
	require.NoError(t, err)
	a, b := s.procs[0], s.procs[1]

	s.tick(0, a)
	s.tick(1, a)
	s.tick(2, b)

	assert.Equal(t, int64(2), a.CPUTicks)
	assert.True(t, a.Done)
	assert.Equal(t, 1, a.FinishTick)
	assert.Equal(t, int64(0), a.WaitTicks, "finished processes stop waiting")
	assert.Equal(t, int64(2), b.WaitTicks)
	assert.Equal(t, int64(1), b.CPUTicks)
	assert.Equal(t, int64(1), b.IOCount, "io_bias 1 always produces an I/O event")
}
