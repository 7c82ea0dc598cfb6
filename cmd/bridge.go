package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/schedbridge/schedbridge/advisor"
	"github.com/schedbridge/schedbridge/advisor/oracle"
)

var metricsAddr string // Prometheus listen address; empty disables metrics

// bridgeCmd runs the advisory loop until SIGINT or SIGTERM
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the advisory loop against the shared snapshot log",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := resolveConfig(cmd)
		log := logrus.WithField("session", uuid.NewString())

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var metrics *advisor.Metrics
		if metricsAddr != "" {
			var shutdown func()
			metrics, shutdown = serveMetrics(metricsAddr, log)
			defer shutdown()
		}

		flushTraces, err := startTracing(cfg.Tracing, os.Stderr, log)
		if err != nil {
			logrus.Fatalf("Cannot start tracing: %v", err)
		}
		defer flushTraces()

		adv, closeBridge, err := buildAdvisor(cfg, log, metrics)
		if err != nil {
			logrus.Fatalf("Cannot start bridge: %v", err)
		}
		defer closeBridge()

		log.WithFields(logrus.Fields{
			"sched_log": cfg.Paths.Log,
			"advice":    cfg.Paths.Advice,
			"pipe":      cfg.Paths.Pipe,
			"backend":   cfg.Oracle.Backend,
			"model":     cfg.Oracle.Model,
			"attempts":  cfg.Oracle.Attempts,
		}).Info("bridge starting")
		if err := adv.Run(ctx); err != nil {
			logrus.Fatalf("Advisory loop failed: %v", err)
		}
		log.Info("bridge stopped")
	},
}

// buildAdvisor wires the cursor, publisher and decision pipeline described
// by cfg. The returned func releases the advice log.
func buildAdvisor(cfg Config, log logrus.FieldLogger, metrics *advisor.Metrics) (*advisor.Advisor, func(), error) {
	pipe := cfg.Paths.Pipe
	if pipe != "" {
		if err := advisor.EnsurePipe(pipe); err != nil {
			log.WithError(err).Warn("advice pipe unavailable, mirroring disabled")
			pipe = ""
		}
	}
	pub, err := advisor.NewPublisher(cfg.Paths.Advice, pipe, log, metrics)
	if err != nil {
		return nil, nil, err
	}

	cursor := advisor.NewLogCursor(cfg.Paths.Log, log)
	if metrics != nil {
		cursor.OnTruncate = metrics.Truncations.Inc
	}

	gen, err := oracle.New(cfg.oracleParams())
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}
	var retrying *advisor.RetryingOracle
	if gen != nil {
		retrying = &advisor.RetryingOracle{
			Oracle:   advisor.NewTextOracle(gen, log),
			Attempts: cfg.Oracle.Attempts,
			Delay:    cfg.Oracle.RetryDelay,
			Log:      log,
			Metrics:  metrics,
		}
	}

	adv := advisor.New(cursor, pub, advisor.Options{
		Interval: cfg.Loop.Interval,
		Builder:  advisor.RequestBuilder{ReservedMax: cfg.Loop.ReservedMax, MaxCandidates: cfg.Loop.MaxCandidates},
		Scorer:   advisor.Scorer{Weights: cfg.Weights, ReservedMax: cfg.Loop.ReservedMax},
		Oracle:   retrying,
		Log:      log,
		Metrics:  metrics,
	})
	return adv, func() { _ = pub.Close() }, nil
}

// serveMetrics exposes a fresh registry on addr. The returned func stops the
// listener.
func serveMetrics(addr string, log logrus.FieldLogger) (*advisor.Metrics, func()) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := advisor.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics listener stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")

	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	bridgeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
