package cmd

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/schedbridge/schedbridge/advisor"
	"github.com/schedbridge/schedbridge/advisor/oracle"
	"github.com/schedbridge/schedbridge/sim"
	"gopkg.in/yaml.v3"
)

// PathsConfig locates the files shared with the kernel or simulator.
type PathsConfig struct {
	Log    string `yaml:"log"`    // snapshot log, read by the bridge
	Advice string `yaml:"advice"` // durable advice log
	Pipe   string `yaml:"pipe"`   // low-latency advice pipe; empty disables the mirror
}

// LoopConfig shapes the advisory loop and the decision request.
type LoopConfig struct {
	Interval      time.Duration `yaml:"interval"`
	MaxCandidates int           `yaml:"max_candidates"`
	ReservedMax   int           `yaml:"reserved_max"`
}

// OracleConfig selects and tunes the external oracle.
type OracleConfig struct {
	Backend     string        `yaml:"backend"`
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Attempts    int           `yaml:"attempts"` // total calls per decision
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// SimulateConfig holds the closed-loop simulator's settings.
type SimulateConfig struct {
	Ticks         int           `yaml:"ticks"`
	Quantum       int           `yaml:"quantum"`
	AdviceTimeout time.Duration `yaml:"advice_timeout"` // zero derives it from the oracle settings
	SlowAfterEmit time.Duration `yaml:"slow_after_emit"`
	Seed          int64         `yaml:"seed"`
}

// TracingConfig selects where oracle call spans are exported.
type TracingConfig struct {
	Exporter string `yaml:"exporter"` // none, stdout or otlp
	Endpoint string `yaml:"endpoint"` // OTLP gRPC collector address
	Insecure bool   `yaml:"insecure"`
}

// Config represents the full configuration file structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Paths    PathsConfig     `yaml:"paths"`
	Loop     LoopConfig      `yaml:"loop"`
	Oracle   OracleConfig    `yaml:"oracle"`
	Weights  advisor.Weights `yaml:"weights"`
	Simulate SimulateConfig  `yaml:"simulate"`
	Tracing  TracingConfig   `yaml:"tracing"`
}

// DefaultConfig returns the built-in defaults, the lowest configuration layer.
func DefaultConfig() Config {
	op := oracle.DefaultParams()
	return Config{
		Paths: PathsConfig{
			Log:    "shared/sched_log.txt",
			Advice: "shared/llm_advice.txt",
			Pipe:   "shared/llm_advice.fifo",
		},
		Loop: LoopConfig{
			Interval:      advisor.DefaultInterval,
			MaxCandidates: advisor.DefaultMaxCandidates,
			ReservedMax:   advisor.DefaultReservedMax,
		},
		Oracle: OracleConfig{
			Backend:     op.Backend,
			URL:         op.URL,
			Model:       op.Model,
			Timeout:     op.Timeout,
			Temperature: op.Temperature,
			MaxTokens:   op.MaxTokens,
			Attempts:    advisor.DefaultAttempts,
			RetryDelay:  advisor.DefaultRetryDelay,
		},
		Weights: advisor.DefaultWeights(),
		Simulate: SimulateConfig{
			Ticks:         sim.DefaultTicks,
			Quantum:       sim.DefaultQuantum,
			SlowAfterEmit: sim.DefaultSlowAfterEmit,
			Seed:          42,
		},
		Tracing: TracingConfig{
			Exporter: TraceNone,
			Endpoint: "localhost:4317",
			Insecure: true,
		},
	}
}

// LoadConfig layers the YAML file at path over base. Keys absent from the
// file keep base's values. Uses strict parsing: unrecognized keys are rejected.
func LoadConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the bridge or simulator cannot run with.
func (c Config) Validate() error {
	if c.Paths.Log == "" || c.Paths.Advice == "" {
		return fmt.Errorf("paths.log and paths.advice must be set")
	}
	if c.Loop.Interval < 0 {
		return fmt.Errorf("loop.interval must be non-negative, got %v", c.Loop.Interval)
	}
	if c.Loop.MaxCandidates < 1 {
		return fmt.Errorf("loop.max_candidates must be at least 1, got %d", c.Loop.MaxCandidates)
	}
	if c.Loop.ReservedMax < 0 {
		return fmt.Errorf("loop.reserved_max must be non-negative, got %d", c.Loop.ReservedMax)
	}
	if !oracle.IsValidBackend(c.Oracle.Backend) {
		return fmt.Errorf("unknown oracle backend %q; valid: %v", c.Oracle.Backend, oracle.ValidBackendNames())
	}
	if c.Oracle.Attempts < 1 {
		return fmt.Errorf("oracle.attempts must be at least 1, got %d", c.Oracle.Attempts)
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive, got %v", c.Oracle.Timeout)
	}
	if c.Oracle.RetryDelay < 0 {
		return fmt.Errorf("oracle.retry_delay must be non-negative, got %v", c.Oracle.RetryDelay)
	}
	if t := float64(c.Oracle.Temperature); math.IsNaN(t) || t < 0 {
		return fmt.Errorf("oracle.temperature must be non-negative, got %v", c.Oracle.Temperature)
	}
	if c.Oracle.MaxTokens < 1 {
		return fmt.Errorf("oracle.max_tokens must be at least 1, got %d", c.Oracle.MaxTokens)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if c.Simulate.Ticks < 1 {
		return fmt.Errorf("simulate.ticks must be at least 1, got %d", c.Simulate.Ticks)
	}
	if c.Simulate.Quantum < 1 {
		return fmt.Errorf("simulate.quantum must be at least 1, got %d", c.Simulate.Quantum)
	}
	if c.Simulate.AdviceTimeout < 0 || c.Simulate.SlowAfterEmit < 0 {
		return fmt.Errorf("simulate durations must be non-negative")
	}
	if !validTraceExporters[c.Tracing.Exporter] {
		return fmt.Errorf("unknown tracing.exporter %q (valid: none, stdout, otlp)", c.Tracing.Exporter)
	}
	if c.Tracing.Exporter == TraceOTLP && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint must be set for the otlp exporter")
	}
	return nil
}

// oracleParams converts the oracle section into backend parameters.
func (c Config) oracleParams() oracle.Params {
	return oracle.Params{
		Backend:     c.Oracle.Backend,
		URL:         c.Oracle.URL,
		Model:       c.Oracle.Model,
		APIKey:      c.Oracle.APIKey,
		Timeout:     c.Oracle.Timeout,
		Temperature: c.Oracle.Temperature,
		MaxTokens:   c.Oracle.MaxTokens,
	}
}

// adviceTimeout is the simulator's per-decision wait, derived from the oracle
// retry budget unless set explicitly.
func (c Config) adviceTimeout() time.Duration {
	if c.Simulate.AdviceTimeout > 0 {
		return c.Simulate.AdviceTimeout
	}
	return sim.DefaultAdviceTimeout(c.Oracle.Attempts, c.Oracle.Timeout, c.Oracle.RetryDelay)
}
