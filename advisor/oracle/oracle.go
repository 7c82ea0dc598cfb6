// Package oracle provides the network backends that answer scheduling
// requests: an Ollama /api/generate client and an OpenAI-compatible chat
// completions client. Both satisfy advisor.Generator.
package oracle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/schedbridge/schedbridge/advisor"
)

const tracerName = "schedbridge/oracle"

// Backend names.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendNone   = "none"
)

// Defaults for the oracle call.
const (
	DefaultURL         = "http://127.0.0.1:11434"
	DefaultModel       = "phi3:mini"
	DefaultTimeout     = 2 * time.Second
	DefaultTemperature = float32(0.1)
	DefaultMaxTokens   = 16
)

var validBackends = map[string]bool{
	BackendOllama: true,
	BackendOpenAI: true,
	BackendNone:   true,
}

// IsValidBackend reports whether name is a recognised backend.
func IsValidBackend(name string) bool { return validBackends[name] }

// ValidBackendNames returns the sorted backend names.
func ValidBackendNames() []string {
	names := make([]string, 0, len(validBackends))
	for n := range validBackends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Params describes one oracle endpoint and its generation settings.
type Params struct {
	Backend     string
	URL         string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int

	// TracerProvider receives the client's spans; nil uses the global provider.
	TracerProvider trace.TracerProvider
}

func (p Params) tracer() trace.Tracer {
	if p.TracerProvider != nil {
		return p.TracerProvider.Tracer(tracerName)
	}
	return otel.Tracer(tracerName)
}

// DefaultParams returns the settings for a local Ollama server.
func DefaultParams() Params {
	return Params{
		Backend:     BackendOllama,
		URL:         DefaultURL,
		Model:       DefaultModel,
		Timeout:     DefaultTimeout,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// New builds the Generator for p.Backend. It returns nil for BackendNone.
func New(p Params) (advisor.Generator, error) {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	p.URL = strings.TrimRight(p.URL, "/")
	switch p.Backend {
	case BackendOllama, "":
		return NewOllamaClient(p), nil
	case BackendOpenAI:
		return NewOpenAIClient(p), nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown oracle backend %q; valid: %s", p.Backend, strings.Join(ValidBackendNames(), ", "))
	}
}
