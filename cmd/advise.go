package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/schedbridge/schedbridge/advisor"
	"github.com/schedbridge/schedbridge/advisor/oracle"
)

var showRequest bool // Print the oracle request text

// dryRunSink accepts advice without publishing it.
type dryRunSink struct{}

func (dryRunSink) Publish(int, int64) (bool, error) { return false, nil }

// adviseCmd decides once for the latest block of a log, without publishing
var adviseCmd = &cobra.Command{
	Use:   "advise [sched-log]",
	Short: "Print the decision for the latest complete block of a snapshot log",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := resolveConfig(cmd)
		if len(args) == 1 {
			cfg.Paths.Log = args[0]
		}
		if err := adviseOnce(context.Background(), cfg, os.Stdout, logrus.StandardLogger()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// adviseOnce runs a single decision step over the log in cfg and reports how
// the decision was reached.
func adviseOnce(ctx context.Context, cfg Config, w io.Writer, log logrus.FieldLogger) error {
	block, err := advisor.NewLogCursor(cfg.Paths.Log, log).Poll()
	if err != nil {
		return err
	}
	if block == nil {
		return fmt.Errorf("no complete snapshot block in %s", cfg.Paths.Log)
	}

	fmt.Fprintf(w, "Block TS=%d with %d processes\n", block.Timestamp, len(block.Procs))
	for _, p := range block.Procs {
		fmt.Fprintf(w, "  PID=%d STATE=%d CPU=%d WAIT=%d IO=%d RECENT=%d\n",
			p.PID, p.State, p.CPUTicks, p.WaitTicks, p.IOCount, p.RecentCPU)
	}
	builder := advisor.RequestBuilder{ReservedMax: cfg.Loop.ReservedMax, MaxCandidates: cfg.Loop.MaxCandidates}
	if showRequest {
		if request, ok := builder.Build(block.Procs); ok {
			fmt.Fprintf(w, "\n--- request ---\n%s--- end ---\n\n", request)
		}
	}

	gen, err := oracle.New(cfg.oracleParams())
	if err != nil {
		return err
	}
	var retrying *advisor.RetryingOracle
	if gen != nil {
		retrying = &advisor.RetryingOracle{
			Oracle:   advisor.NewTextOracle(gen, log),
			Attempts: cfg.Oracle.Attempts,
			Delay:    cfg.Oracle.RetryDelay,
			Log:      log,
		}
	}
	adv := advisor.New(staticSource{block}, dryRunSink{}, advisor.Options{
		Builder: builder,
		Scorer:  advisor.Scorer{Weights: cfg.Weights, ReservedMax: cfg.Loop.ReservedMax},
		Oracle:  retrying,
		Log:     log,
	})
	res := adv.Step(ctx)
	if res.Eligible == 0 {
		fmt.Fprintln(w, "Decision: none (no eligible candidates)")
		return nil
	}
	fmt.Fprintf(w, "Eligible: %v\n", advisor.PIDs(advisor.Eligible(block.Procs, cfg.Loop.ReservedMax)))
	fmt.Fprintf(w, "Decision: PID=%d source=%s\n", res.PID, res.Source)
	fmt.Fprintf(w, "Would publish: %s", advisor.FormatAdvice(res.PID, block.Timestamp))
	return nil
}

// staticSource always yields the same block.
type staticSource struct{ block *advisor.SnapshotBlock }

func (s staticSource) Poll() (*advisor.SnapshotBlock, error) { return s.block, nil }

func init() {
	adviseCmd.Flags().BoolVar(&showRequest, "show-request", false, "Print the oracle request text")
}
