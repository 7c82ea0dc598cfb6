package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schedbridge/schedbridge/advisor"
	"github.com/sirupsen/logrus"
)

// Simulator defaults.
const (
	DefaultTicks         = 250
	DefaultQuantum       = 10
	DefaultSlowAfterEmit = 50 * time.Millisecond
	minAdviceTimeout     = 8 * time.Second
)

var (
	// ErrAdviceTimeout means no advice arrived for an emitted snapshot.
	ErrAdviceTimeout = errors.New("advice timed out")
	// ErrAdviceNotRunnable means the advised pid is unknown or already finished.
	ErrAdviceNotRunnable = errors.New("advised pid is not runnable")
	// ErrIncomplete means the tick budget ran out before every process finished.
	ErrIncomplete = errors.New("not all processes finished")
)

// DefaultAdviceTimeout leaves room for every oracle attempt plus the delays
// between them, and never drops below eight seconds.
func DefaultAdviceTimeout(attempts int, oracleTimeout, retryDelay time.Duration) time.Duration {
	d := 2*time.Second + time.Duration(attempts)*(oracleTimeout+retryDelay)
	if d < minAdviceTimeout {
		return minAdviceTimeout
	}
	return d
}

// Config controls one simulation run.
type Config struct {
	LogPath    string // snapshot log the simulator appends to
	AdvicePath string // advice log the simulator reads

	Ticks         int
	Quantum       int
	BaseTS        int64 // 0 means the current Unix time
	AdviceTimeout time.Duration
	SlowAfterEmit time.Duration
	PollEvery     time.Duration
	Truncate      bool // clear both shared files before starting
	Seed          int64

	Log logrus.FieldLogger
}

// Simulator replays a scheduler that takes every decision from the advice
// log. It is single-goroutine; the bridge runs elsewhere and talks to it only
// through the two shared files.
type Simulator struct {
	cfg    Config
	procs  []*Proc
	io     *IOStreams
	advice adviceWatcher
	log    logrus.FieldLogger
}

// NewSimulator validates cfg, applies defaults, and prepares procs to run.
func NewSimulator(cfg Config, procs []*Proc) (*Simulator, error) {
	if cfg.LogPath == "" || cfg.AdvicePath == "" {
		return nil, fmt.Errorf("log and advice paths are required")
	}
	if len(procs) == 0 {
		return nil, fmt.Errorf("no processes to simulate")
	}
	if cfg.Ticks <= 0 {
		cfg.Ticks = DefaultTicks
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = DefaultQuantum
	}
	if cfg.AdviceTimeout <= 0 {
		cfg.AdviceTimeout = DefaultAdviceTimeout(advisor.DefaultAttempts, 2*time.Second, advisor.DefaultRetryDelay)
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = DefaultPollEvery
	}
	if cfg.BaseTS <= 0 {
		cfg.BaseTS = time.Now().Unix()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Simulator{
		cfg:    cfg,
		procs:  procs,
		io:     NewIOStreams(cfg.Seed),
		advice: adviceWatcher{path: cfg.AdvicePath, pollEvery: cfg.PollEvery},
		log:    cfg.Log.WithField("component", "sim"),
	}, nil
}

// Procs returns the simulated processes in workload order.
func (s *Simulator) Procs() []*Proc { return s.procs }

// BaseTS returns the timestamp of the first snapshot.
func (s *Simulator) BaseTS() int64 { return s.cfg.BaseTS }

// Run executes the simulation. The returned Stats are valid even when err is
// non-nil, describing the run up to the point it stopped.
func (s *Simulator) Run(ctx context.Context) (*Stats, error) {
	if err := s.prepareFiles(); err != nil {
		return nil, err
	}

	stats := &Stats{}
	var current *Proc
	err := func() error {
		for tick := 0; tick < s.cfg.Ticks; tick++ {
			if stats.Decisions == 0 || tick%s.cfg.Quantum == 0 || current == nil || current.Done {
				next, err := s.decide(ctx, stats)
				if err != nil {
					return err
				}
				if current == nil || current.PID != next.PID {
					stats.ContextSwitches++
				}
				current = next
				if current.StartTick < 0 {
					current.StartTick = tick
				}
				stats.History = append(stats.History, current.PID)
				s.log.Debugf("[tick %d] switch to pid %d", tick, current.PID)
			}

			s.tick(tick, current)
			stats.Ticks++
			if s.allDone() {
				return nil
			}
		}
		return ErrIncomplete
	}()
	stats.summarize(s.procs)
	return stats, err
}

// decide emits a snapshot and returns the process the advice names.
func (s *Simulator) decide(ctx context.Context, stats *Stats) (*Proc, error) {
	ts := s.cfg.BaseTS + int64(stats.Decisions)
	stats.Decisions++

	offset, err := fileSize(s.cfg.AdvicePath)
	if err != nil {
		return nil, fmt.Errorf("stat advice log: %w", err)
	}
	if err := s.emit(ts); err != nil {
		return nil, err
	}
	if s.cfg.SlowAfterEmit > 0 {
		time.Sleep(s.cfg.SlowAfterEmit)
	}

	pid, err := s.advice.wait(ctx, ts, offset, s.cfg.AdviceTimeout)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"ts": ts, "pid": pid}).Debug("advice received")
	for _, p := range s.procs {
		if p.PID == pid && !p.Done {
			return p, nil
		}
	}
	return nil, fmt.Errorf("pid %d at ts %d: %w", pid, ts, ErrAdviceNotRunnable)
}

// emit appends a snapshot of every unfinished process and syncs it.
func (s *Simulator) emit(ts int64) error {
	block := advisor.SnapshotBlock{Timestamp: ts}
	for _, p := range s.procs {
		if !p.Done {
			block.Procs = append(block.Procs, p.Snapshot())
		}
	}
	f, err := os.OpenFile(s.cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening snapshot log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(advisor.FormatBlock(block)); err != nil {
		return fmt.Errorf("appending snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot log: %w", err)
	}
	s.log.WithFields(logrus.Fields{"ts": ts, "procs": len(block.Procs)}).Debug("snapshot written")
	return nil
}

// tick advances the simulation by one tick with current on the CPU.
func (s *Simulator) tick(tick int, current *Proc) {
	if current != nil && !current.Done {
		current.CPUTicks++
		current.RecentCPU++
		if s.io.Event(current.PID, current.IOBias) {
			current.IOCount++
		}
	}
	for _, p := range s.procs {
		if p != current && !p.Done {
			p.WaitTicks++
		}
	}
	if current != nil && !current.Done && current.CPUTicks >= current.TotalRequired {
		current.Done = true
		current.FinishTick = tick
	}
}

func (s *Simulator) allDone() bool {
	for _, p := range s.procs {
		if !p.Done {
			return false
		}
	}
	return true
}

// prepareFiles creates the shared files, clearing them when configured to.
func (s *Simulator) prepareFiles() error {
	for _, path := range []string{s.cfg.LogPath, s.cfg.AdvicePath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating shared directory: %w", err)
		}
		flags := os.O_CREATE | os.O_WRONLY
		if s.cfg.Truncate {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return fmt.Errorf("preparing %s: %w", path, err)
		}
		_ = f.Close()
	}
	if s.cfg.Truncate {
		s.log.Info("truncated shared files")
	}
	return nil
}
