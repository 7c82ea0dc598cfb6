package advisor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the pause between advisory loop iterations.
const DefaultInterval = 1500 * time.Millisecond

// State is the advisory loop's position within one iteration.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateBlockFound
	StateNoBlock
	StateDeciding
	StatePublishing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateBlockFound:
		return "block_found"
	case StateNoBlock:
		return "no_block"
	case StateDeciding:
		return "deciding"
	case StatePublishing:
		return "publishing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// BlockSource yields the latest complete snapshot block, or nil. *LogCursor implements it.
type BlockSource interface {
	Poll() (*SnapshotBlock, error)
}

// AdvicePublisher receives decisions. *Publisher implements it.
type AdvicePublisher interface {
	Publish(pid int, ts int64) (bool, error)
}

// Options configures an Advisor. Zero values fall back to package defaults.
type Options struct {
	Interval time.Duration
	Builder  RequestBuilder
	Scorer   Scorer
	Oracle   *RetryingOracle // nil runs fallback-only
	Log      logrus.FieldLogger
	Metrics  *Metrics
}

// StepResult describes what one loop iteration did.
type StepResult struct {
	State     State // StateNoBlock or StateBlockFound
	Timestamp int64
	Eligible  int
	PID       int
	Source    string
	Published bool
	Err       error
}

// Advisor runs the poll, decide, publish loop. It is single-goroutine: every
// step runs to completion before the next poll.
type Advisor struct {
	source   BlockSource
	sink     AdvicePublisher
	oracle   *RetryingOracle
	builder  RequestBuilder
	scorer   Scorer
	interval time.Duration
	log      logrus.FieldLogger
	metrics  *Metrics
	state    State
}

// New creates an Advisor reading from source and publishing to sink.
func New(source BlockSource, sink AdvicePublisher, opts Options) *Advisor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Builder == (RequestBuilder{}) {
		opts.Builder = NewRequestBuilder()
	}
	if opts.Scorer == (Scorer{}) {
		opts.Scorer = NewScorer()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Advisor{
		source:   source,
		sink:     sink,
		oracle:   opts.Oracle,
		builder:  opts.Builder,
		scorer:   opts.Scorer,
		interval: opts.Interval,
		log:      opts.Log.WithField("component", "advisor"),
		metrics:  opts.Metrics,
	}
}

// State returns the loop's current state.
func (a *Advisor) State() State { return a.state }

func (a *Advisor) setState(s State) {
	if a.state != s {
		a.log.WithFields(logrus.Fields{"from": a.state, "to": s}).Trace("state transition")
	}
	a.state = s
}

// Run loops until ctx is cancelled. Cancellation is honoured only between
// iterations: an in-flight decision, including its oracle calls, always
// completes first.
func (a *Advisor) Run(ctx context.Context) error {
	a.log.WithField("interval", a.interval).Info("advisory loop started")
	for {
		if ctx.Err() != nil {
			a.setState(StateStopping)
			a.log.Info("advisory loop stopped")
			return nil
		}
		a.Step(context.WithoutCancel(ctx))

		timer := time.NewTimer(a.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Step runs one poll, decide, publish iteration and returns to idle.
func (a *Advisor) Step(ctx context.Context) StepResult {
	defer a.setState(StateIdle)

	a.setState(StatePolling)
	block, err := a.source.Poll()
	if err != nil {
		a.metrics.pollError()
		a.log.WithError(err).Warn("snapshot poll failed")
		a.setState(StateNoBlock)
		return StepResult{State: StateNoBlock, Err: err}
	}
	if block == nil {
		a.setState(StateNoBlock)
		return StepResult{State: StateNoBlock}
	}

	a.setState(StateBlockFound)
	log := a.log.WithField("ts", block.Timestamp)
	eligible := Eligible(block.Procs, a.builder.ReservedMax)
	res := StepResult{State: StateBlockFound, Timestamp: block.Timestamp, Eligible: len(eligible)}
	if len(eligible) == 0 {
		log.WithField("procs", len(block.Procs)).Debug("no eligible candidates")
		return res
	}

	start := time.Now()
	a.setState(StateDeciding)
	pid, source, ok := a.decide(ctx, block, eligible, log)
	if !ok {
		log.Error("no valid decision for block with eligible candidates")
		return res
	}
	res.PID, res.Source = pid, source
	a.metrics.decision(source)

	a.setState(StatePublishing)
	published, err := a.sink.Publish(pid, block.Timestamp)
	if err != nil {
		log.WithError(err).WithField("pid", pid).Warn("publishing advice failed")
		res.Err = err
		return res
	}
	res.Published = published
	if published {
		a.metrics.observeDecision(time.Since(start).Seconds())
	}
	log.WithFields(logrus.Fields{"pid": pid, "source": source, "eligible": len(eligible)}).Debug("decision made")
	return res
}

// decide picks a pid for block. An uncontested block skips the oracle. Every
// path's answer is checked against the eligible set before it is returned.
func (a *Advisor) decide(ctx context.Context, block *SnapshotBlock, eligible []ProcessSnapshot, log logrus.FieldLogger) (int, string, bool) {
	allowed := PIDs(eligible)
	if len(eligible) == 1 {
		return eligible[0].PID, SourceDirect, true
	}

	if a.oracle != nil {
		cands := a.builder.Candidates(block.Procs)
		request := RenderRequest(cands)
		if pid, ok := a.oracle.Decide(ctx, request, PIDs(cands)); ok {
			if containsPID(allowed, pid) {
				return pid, SourceOracle, true
			}
			log.WithField("pid", pid).Warn("discarding oracle pid outside eligible set")
		}
	}

	pid, ok := a.scorer.Choose(block.Procs)
	if !ok || !containsPID(allowed, pid) {
		return 0, "", false
	}
	return pid, SourceFallback, true
}
