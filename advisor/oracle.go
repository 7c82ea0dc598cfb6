package advisor

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Oracle is the external scheduling-advice capability. Its only contract is
// bounded latency and best-effort correctness: callers must expect no answer
// or a well-formed but wrong one.
type Oracle interface {
	Ask(ctx context.Context, request string) (pid int, ok bool)
}

// Generator produces free-form text for a prompt. Oracle backends implement it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TextOracle adapts a Generator into an Oracle by extracting a pid from the
// generated text. Transport and parse failures are logged and collapsed into
// "no answer".
type TextOracle struct {
	gen Generator
	log logrus.FieldLogger
}

// NewTextOracle wraps gen.
func NewTextOracle(gen Generator, log logrus.FieldLogger) *TextOracle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TextOracle{gen: gen, log: log}
}

// Ask implements Oracle.
func (o *TextOracle) Ask(ctx context.Context, request string) (int, bool) {
	text, err := o.gen.Generate(ctx, request)
	if err != nil {
		o.log.WithError(err).Warn("oracle call failed")
		return 0, false
	}
	pid, ok := ExtractPID(text)
	if !ok {
		o.log.WithField("answer", truncate(text, 80)).Warn("no pid found in oracle answer")
		return 0, false
	}
	return pid, true
}

// OracleFunc lets a plain function act as an Oracle.
type OracleFunc func(ctx context.Context, request string) (int, bool)

// Ask implements Oracle.
func (f OracleFunc) Ask(ctx context.Context, request string) (int, bool) { return f(ctx, request) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
