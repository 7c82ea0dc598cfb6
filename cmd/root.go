package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Logging and configuration
	logLevel   string // Log verbosity level
	logFormat  string // Log formatter: text or json
	configPath string // Optional YAML configuration file

	// Shared files
	schedLogPath string // Snapshot log written by the kernel or simulator
	advicePath   string // Durable advice log
	pipePath     string // Advice pipe; empty disables the mirror

	// Decision pipeline
	interval      time.Duration // Pause between loop iterations
	backend       string        // Oracle backend
	oracleURL     string        // Oracle base URL
	oracleModel   string        // Model id sent with each request
	apiKey        string        // API key for the openai backend
	oracleTimeout time.Duration // Per-call oracle timeout
	attempts      int           // Oracle calls per decision
	retryDelay    time.Duration // Pause between oracle calls
	weightsFlag   string        // Fallback scorer weights, "wait:1,io:1,recent:1.2"
	maxCandidates int           // Candidates listed per request
	reservedMax   int           // Highest reserved pid

	// Tracing
	traceExporter string // Span exporter: none, stdout, otlp
	otlpEndpoint  string // OTLP gRPC collector address
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "schedbridge",
	Short: "Scheduling advice bridge between a kernel snapshot log and an LLM oracle",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		switch logFormat {
		case "text":
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			logrus.Fatalf("Invalid log format: %s (valid: text, json)", logFormat)
		}
	},
}

// exitCode is set by commands that finish cleanly but must report failure.
var exitCode int

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// resolveConfig layers defaults, the --config file, the environment, and
// explicitly set flags, in increasing precedence. Any error is fatal.
func resolveConfig(cmd *cobra.Command) Config {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadConfig(configPath, cfg); err != nil {
			logrus.Fatalf("%v", err)
		}
	}
	applyEnv(&cfg, os.Getenv, logrus.StandardLogger())
	if err := applyFlags(cmd.Flags(), &cfg); err != nil {
		logrus.Fatalf("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// applyFlags copies flags the user set explicitly onto cfg. Flags left at
// their defaults never override the file or environment layers.
func applyFlags(f *pflag.FlagSet, cfg *Config) error {
	if f.Changed("sched-log") {
		cfg.Paths.Log = schedLogPath
	}
	if f.Changed("advice") {
		cfg.Paths.Advice = advicePath
	}
	if f.Changed("pipe") {
		cfg.Paths.Pipe = pipePath
	}
	if f.Changed("interval") {
		cfg.Loop.Interval = interval
	}
	if f.Changed("backend") {
		cfg.Oracle.Backend = backend
	}
	if f.Changed("url") {
		cfg.Oracle.URL = oracleURL
	}
	if f.Changed("model") {
		cfg.Oracle.Model = oracleModel
	}
	if f.Changed("api-key") {
		cfg.Oracle.APIKey = apiKey
	}
	if f.Changed("oracle-timeout") {
		cfg.Oracle.Timeout = oracleTimeout
	}
	if f.Changed("attempts") {
		cfg.Oracle.Attempts = attempts
	}
	if f.Changed("retry-delay") {
		cfg.Oracle.RetryDelay = retryDelay
	}
	if f.Changed("weights") {
		w, err := cfg.Weights.Apply(weightsFlag)
		if err != nil {
			return err
		}
		cfg.Weights = w
	}
	if f.Changed("max-candidates") {
		cfg.Loop.MaxCandidates = maxCandidates
	}
	if f.Changed("reserved-max") {
		cfg.Loop.ReservedMax = reservedMax
	}
	if f.Changed("trace") {
		cfg.Tracing.Exporter = traceExporter
	}
	if f.Changed("otlp-endpoint") {
		cfg.Tracing.Endpoint = otlpEndpoint
	}
	return nil
}

// addSharedFlags defines the flags every subcommand accepts on fs.
func addSharedFlags(fs *pflag.FlagSet) {
	fs.StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	fs.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	fs.StringVar(&configPath, "config", "", "YAML configuration file (see defaults.yaml)")

	defaults := DefaultConfig()

	// Shared files
	fs.StringVar(&schedLogPath, "sched-log", defaults.Paths.Log, "Snapshot log path")
	fs.StringVar(&advicePath, "advice", defaults.Paths.Advice, "Advice log path")
	fs.StringVar(&pipePath, "pipe", defaults.Paths.Pipe, "Advice pipe path (empty disables the pipe mirror)")

	// Decision pipeline
	fs.DurationVar(&interval, "interval", defaults.Loop.Interval, "Pause between advisory loop iterations")
	fs.StringVar(&backend, "backend", defaults.Oracle.Backend, "Oracle backend (ollama, openai, none)")
	fs.StringVar(&oracleURL, "url", defaults.Oracle.URL, "Oracle base URL")
	fs.StringVar(&oracleModel, "model", defaults.Oracle.Model, "Oracle model id")
	fs.StringVar(&apiKey, "api-key", "", "API key for the openai backend")
	fs.DurationVar(&oracleTimeout, "oracle-timeout", defaults.Oracle.Timeout, "Timeout for one oracle call")
	fs.IntVar(&attempts, "attempts", defaults.Oracle.Attempts, "Oracle calls per decision before falling back")
	fs.DurationVar(&retryDelay, "retry-delay", defaults.Oracle.RetryDelay, "Pause between oracle calls")
	fs.StringVar(&weightsFlag, "weights", "", "Fallback scorer weights, e.g. wait:1,io:1,recent:1.2")
	fs.IntVar(&maxCandidates, "max-candidates", defaults.Loop.MaxCandidates, "Maximum candidates listed in one oracle request")
	fs.IntVar(&reservedMax, "reserved-max", defaults.Loop.ReservedMax, "Highest reserved pid, never advised")

	// Tracing
	fs.StringVar(&traceExporter, "trace", defaults.Tracing.Exporter, "Export oracle call spans (none, stdout, otlp); stdout spans go to stderr")
	fs.StringVar(&otlpEndpoint, "otlp-endpoint", defaults.Tracing.Endpoint, "OTLP gRPC collector address for --trace otlp")
}

// init sets up persistent flags and subcommands
func init() {
	addSharedFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(bridgeCmd, simulateCmd, adviseCmd)
}
