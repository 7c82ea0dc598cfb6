package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/schedbridge/schedbridge/sim"
)

var (
	scenario        string        // Built-in workload
	workloadPath    string        // YAML workload file, overrides --scenario
	ticks           int           // Tick budget
	quantum         int           // Ticks between scheduled decisions
	baseTS          int64         // First snapshot timestamp; 0 means now
	adviceTimeout   secondsOrDuration // Per-decision advice wait
	truncateShared  bool          // Clear shared files before starting
	slowAfterEmitMs int           // Pause after each snapshot
	simSeed         int64         // Seed for I/O events
	withBridge      bool          // Run a bridge in-process
)

// simulateCmd drives the bridge with a synthetic workload
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the closed-loop scheduling simulator",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := resolveConfig(cmd)
		applySimulateFlags(cmd.Flags(), &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		procs := loadProcs(cfg.Loop.ReservedMax)
		s, err := sim.NewSimulator(sim.Config{
			LogPath:       cfg.Paths.Log,
			AdvicePath:    cfg.Paths.Advice,
			Ticks:         cfg.Simulate.Ticks,
			Quantum:       cfg.Simulate.Quantum,
			BaseTS:        baseTS,
			AdviceTimeout: cfg.adviceTimeout(),
			SlowAfterEmit: cfg.Simulate.SlowAfterEmit,
			Truncate:      truncateShared,
			Seed:          cfg.Simulate.Seed,
		}, procs)
		if err != nil {
			logrus.Fatalf("Cannot create simulator: %v", err)
		}

		fmt.Println("=== Scheduling Simulation ===")
		fmt.Printf("Ticks: %d | Quantum: %d | Base TS: %d\n", cfg.Simulate.Ticks, cfg.Simulate.Quantum, s.BaseTS())
		fmt.Printf("Advice timeout: %v | Slow-after-emit: %v\n", cfg.adviceTimeout(), cfg.Simulate.SlowAfterEmit)
		fmt.Printf("Files: log=%s | advice=%s\n", cfg.Paths.Log, cfg.Paths.Advice)
		fmt.Printf("Weights: WAIT=%g IO=%g RECENT=%g\n", cfg.Weights.Wait, cfg.Weights.IO, cfg.Weights.Recent)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var stats *sim.Stats
		if withBridge {
			log := logrus.WithField("component", "bridge")
			flushTraces, err := startTracing(cfg.Tracing, os.Stderr, log)
			if err != nil {
				logrus.Fatalf("Cannot start tracing: %v", err)
			}
			defer flushTraces()
			adv, closeBridge, err := buildAdvisor(cfg, log, nil)
			if err != nil {
				logrus.Fatalf("Cannot start bridge: %v", err)
			}
			defer closeBridge()
			stats, err = sim.RunClosedLoop(ctx, s, adv)
			exitCode = reportSimulation(os.Stdout, stats, err)
			return
		}
		stats, err = s.Run(ctx)
		exitCode = reportSimulation(os.Stdout, stats, err)
	},
}

// loadProcs returns the workload selected by --workload or --scenario.
func loadProcs(reservedMax int) []*sim.Proc {
	if workloadPath != "" {
		w, err := sim.LoadWorkload(workloadPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := w.Validate(reservedMax); err != nil {
			logrus.Fatalf("Invalid workload %s: %v", workloadPath, err)
		}
		return w.Procs()
	}
	procs, err := sim.Scenario(scenario)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return procs
}

// applySimulateFlags layers simulate-only flags the user set explicitly.
func applySimulateFlags(f *pflag.FlagSet, cfg *Config) {
	if f.Changed("ticks") {
		cfg.Simulate.Ticks = ticks
	}
	if f.Changed("quantum") {
		cfg.Simulate.Quantum = quantum
	}
	if f.Changed("timeout") {
		cfg.Simulate.AdviceTimeout = time.Duration(adviceTimeout)
	}
	if f.Changed("slow-after-emit-ms") {
		cfg.Simulate.SlowAfterEmit = time.Duration(slowAfterEmitMs) * time.Millisecond
	}
	if f.Changed("seed") {
		cfg.Simulate.Seed = simSeed
	}
}

// reportSimulation prints the results to w and returns the process exit
// status: 2 unless every process finished.
func reportSimulation(w io.Writer, stats *sim.Stats, err error) int {
	if stats != nil {
		stats.Print(w)
	}
	switch {
	case err == nil:
		logrus.Info("Simulation complete.")
	case errors.Is(err, sim.ErrAdviceTimeout), errors.Is(err, sim.ErrAdviceNotRunnable), errors.Is(err, sim.ErrIncomplete):
		logrus.Errorf("Simulation stopped: %v", err)
	default:
		logrus.Errorf("Simulation failed: %v", err)
	}
	if stats == nil || !stats.AllDone() {
		fmt.Fprintln(w, "Not all processes finished; advice missing or too slow.")
		return 2
	}
	return 0
}

// secondsOrDuration is a flag value accepting either a Go duration ("8s",
// "1500ms") or a bare number of seconds ("8", "2.5").
type secondsOrDuration time.Duration

func (d *secondsOrDuration) Set(v string) error {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f < 0 {
			return fmt.Errorf("negative timeout %v", f)
		}
		*d = secondsOrDuration(f * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("expected seconds or a duration such as 8s: %w", err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative timeout %v", parsed)
	}
	*d = secondsOrDuration(parsed)
	return nil
}

func (d *secondsOrDuration) String() string { return time.Duration(*d).String() }

func (d *secondsOrDuration) Type() string { return "duration" }

// addSimulateFlags defines the simulate-only flags on f.
func addSimulateFlags(f *pflag.FlagSet) {
	f.StringVar(&scenario, "scenario", "demo", "Built-in workload (demo, minimal)")
	f.StringVar(&workloadPath, "workload", "", "YAML workload file; overrides --scenario")
	f.IntVar(&ticks, "ticks", sim.DefaultTicks, "Total simulation ticks")
	f.IntVar(&quantum, "quantum", sim.DefaultQuantum, "Quantum length in ticks")
	f.Int64Var(&baseTS, "base-ts", 0, "Timestamp of the first snapshot (default: current Unix time)")
	adviceTimeout = 0
	f.Var(&adviceTimeout, "timeout", "Advice wait per decision, in seconds or as a duration such as 8s (default: derived from oracle timeout and attempts)")
	f.BoolVar(&truncateShared, "truncate", false, "Truncate the shared log and advice files at start")
	f.IntVar(&slowAfterEmitMs, "slow-after-emit-ms", int(sim.DefaultSlowAfterEmit/time.Millisecond), "Extra delay after writing each snapshot (ms)")
	f.Int64Var(&simSeed, "seed", 42, "Seed for simulated I/O events")
	f.BoolVar(&withBridge, "with-bridge", false, "Run a bridge in-process alongside the simulator")
}

func init() {
	addSimulateFlags(simulateCmd.Flags())
}
