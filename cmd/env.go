package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// envSetter applies one environment value to a Config.
type envSetter func(cfg *Config, value string) error

func envString(field func(*Config) *string) envSetter {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func envInt(field func(*Config) *int) envSetter {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func envFloat(field func(*Config) *float64) envSetter {
	return func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(cfg) = f
		return nil
	}
}

// envDuration parses a plain number in the given unit, e.g. "1.5" seconds.
func envDuration(unit time.Duration, field func(*Config) *time.Duration) envSetter {
	return func(cfg *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("negative duration %v", f)
		}
		*field(cfg) = time.Duration(f * float64(unit))
		return nil
	}
}

// envVars maps each supported environment variable to the field it sets.
var envVars = []struct {
	name string
	set  envSetter
}{
	{"LLM_AGENT_INTERVAL", envDuration(time.Second, func(c *Config) *time.Duration { return &c.Loop.Interval })},
	{"LLM_AGENT_LOG", envString(func(c *Config) *string { return &c.Paths.Log })},
	{"LLM_AGENT_ADVICE", envString(func(c *Config) *string { return &c.Paths.Advice })},
	{"LLM_AGENT_PIPE", envString(func(c *Config) *string { return &c.Paths.Pipe })},
	{"LLM_AGENT_BACKEND", envString(func(c *Config) *string { return &c.Oracle.Backend })},
	{"LLM_AGENT_URL", envString(func(c *Config) *string { return &c.Oracle.URL })},
	{"LLM_AGENT_MODEL", envString(func(c *Config) *string { return &c.Oracle.Model })},
	{"LLM_AGENT_API_KEY", envString(func(c *Config) *string { return &c.Oracle.APIKey })},
	{"LLM_AGENT_TIMEOUT_MS", envDuration(time.Millisecond, func(c *Config) *time.Duration { return &c.Oracle.Timeout })},
	{"LLM_AGENT_RETRIES", envInt(func(c *Config) *int { return &c.Oracle.Attempts })},
	{"LLM_AGENT_RETRY_SLEEP_MS", envDuration(time.Millisecond, func(c *Config) *time.Duration { return &c.Oracle.RetryDelay })},
	{"LLM_AGENT_W_WAIT", envFloat(func(c *Config) *float64 { return &c.Weights.Wait })},
	{"LLM_AGENT_W_IO", envFloat(func(c *Config) *float64 { return &c.Weights.IO })},
	{"LLM_AGENT_W_RECENT", envFloat(func(c *Config) *float64 { return &c.Weights.Recent })},
	{"LLM_AGENT_MAX_CANDIDATES", envInt(func(c *Config) *int { return &c.Loop.MaxCandidates })},
	{"LLM_AGENT_RESERVED_MAX", envInt(func(c *Config) *int { return &c.Loop.ReservedMax })},
	{"LLM_AGENT_TRACE", envString(func(c *Config) *string { return &c.Tracing.Exporter })},
	{"LLM_AGENT_OTLP_ENDPOINT", envString(func(c *Config) *string { return &c.Tracing.Endpoint })},
	{"TEST_HARNESS_TIMEOUT", envDuration(time.Second, func(c *Config) *time.Duration { return &c.Simulate.AdviceTimeout })},
}

// applyEnv overlays environment variables onto cfg. Empty values are ignored;
// malformed ones are logged and ignored, leaving the lower layer in place.
func applyEnv(cfg *Config, getenv func(string) string, log logrus.FieldLogger) {
	for _, ev := range envVars {
		v := strings.TrimSpace(getenv(ev.name))
		if v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"var": ev.name, "value": v}).
				Warn("ignoring malformed environment variable")
		}
	}
}
