package advisor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	blocks []*SnapshotBlock
	err    error
	polls  int
}

func (f *fakeSource) Poll() (*SnapshotBlock, error) {
	f.polls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.blocks) == 0 {
		return nil, nil
	}
	b := f.blocks[0]
	f.blocks = f.blocks[1:]
	return b, nil
}

type advice struct {
	pid int
	ts  int64
}

type recordingSink struct {
	got []advice
	err error
}

func (r *recordingSink) Publish(pid int, ts int64) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.got = append(r.got, advice{pid, ts})
	return true, nil
}

func fixedOracle(answers ...int) (*RetryingOracle, *scriptedOracle) {
	o := &scriptedOracle{answers: answers}
	return &RetryingOracle{Oracle: o, Attempts: 3, Sleep: func(time.Duration) {}}, o
}

func contested(ts int64) *SnapshotBlock {
	return &SnapshotBlock{Timestamp: ts, Procs: []ProcessSnapshot{
		runnable(3, 10, 2, 0, 5),
		runnable(4, 5, 6, 3, 2),
		runnable(5, 0, 1, 0, 0),
	}}
}

func TestAdvisor_Step_NoBlock(t *testing.T) {
	sink := &recordingSink{}
	a := New(&fakeSource{}, sink, Options{})

	res := a.Step(context.Background())

	assert.Equal(t, StateNoBlock, res.State)
	assert.Empty(t, sink.got)
	assert.Equal(t, StateIdle, a.State())
}

func TestAdvisor_Step_PollErrorIsNotFatal(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	a := New(&fakeSource{err: errors.New("EIO")}, &recordingSink{}, Options{Metrics: m})

	res := a.Step(context.Background())

	assert.Equal(t, StateNoBlock, res.State)
	assert.Error(t, res.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollErrors))
}

func TestAdvisor_Step_NoEligibleCandidates(t *testing.T) {
	// GIVEN a block holding only reserved and non-runnable processes
	block := &SnapshotBlock{Timestamp: 9, Procs: []ProcessSnapshot{
		runnable(1, 0, 50, 0, 0),
		{PID: 8, State: 1, WaitTicks: 100},
	}}
	oracle, o := fixedOracle(8)
	sink := &recordingSink{}
	a := New(&fakeSource{blocks: []*SnapshotBlock{block}}, sink, Options{Oracle: oracle})

	// WHEN the loop steps
	res := a.Step(context.Background())

	// THEN nothing is asked and nothing is published
	assert.Equal(t, StateBlockFound, res.State)
	assert.Zero(t, res.Eligible)
	assert.Zero(t, o.calls)
	assert.Empty(t, sink.got)
}

func TestAdvisor_Step_SingleCandidateSkipsOracle(t *testing.T) {
	block := &SnapshotBlock{Timestamp: 11, Procs: []ProcessSnapshot{
		runnable(2, 0, 9, 0, 0),
		runnable(6, 1, 1, 0, 1),
	}}
	oracle, o := fixedOracle(6)
	sink := &recordingSink{}
	a := New(&fakeSource{blocks: []*SnapshotBlock{block}}, sink, Options{Oracle: oracle})

	res := a.Step(context.Background())

	assert.Equal(t, SourceDirect, res.Source)
	assert.Zero(t, o.calls)
	assert.Equal(t, []advice{{6, 11}}, sink.got)
}

func TestAdvisor_Step_OracleAnswerPublished(t *testing.T) {
	oracle, o := fixedOracle(5)
	sink := &recordingSink{}
	m := NewMetrics(prometheus.NewRegistry())
	a := New(&fakeSource{blocks: []*SnapshotBlock{contested(20)}}, sink, Options{Oracle: oracle, Metrics: m})

	res := a.Step(context.Background())

	assert.Equal(t, SourceOracle, res.Source)
	assert.True(t, res.Published)
	assert.Equal(t, 1, o.calls)
	assert.Equal(t, []advice{{5, 20}}, sink.got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues(SourceOracle)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DecisionSeconds))
}

func TestAdvisor_Step_ExhaustedOracleFallsBack(t *testing.T) {
	// GIVEN an oracle that keeps naming a pid outside the eligible set
	oracle, o := fixedOracle(99, 99, 99)
	sink := &recordingSink{}
	a := New(&fakeSource{blocks: []*SnapshotBlock{contested(21)}}, sink, Options{Oracle: oracle})

	// WHEN the loop steps
	res := a.Step(context.Background())

	// THEN all attempts are spent and the scorer's pick is published
	assert.Equal(t, 3, o.calls)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, []advice{{4, 21}}, sink.got)
}

func TestAdvisor_Step_FallbackOnly(t *testing.T) {
	sink := &recordingSink{}
	a := New(&fakeSource{blocks: []*SnapshotBlock{contested(22)}}, sink, Options{})

	res := a.Step(context.Background())

	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, []advice{{4, 22}}, sink.got)
}

func TestAdvisor_Step_PublishErrorReported(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	a := New(&fakeSource{blocks: []*SnapshotBlock{contested(23)}}, sink, Options{})

	res := a.Step(context.Background())

	assert.Error(t, res.Err)
	assert.False(t, res.Published)
	assert.Equal(t, StateIdle, a.State())
}

func TestAdvisor_Step_SameBlockPublishedOnce(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "sched_log.txt")
	advicePath := filepath.Join(dir, "llm_advice.txt")
	appendFile(t, logPath, block(30, 3, 4))

	pub, err := NewPublisher(advicePath, "", nil, nil)
	require.NoError(t, err)
	defer func() { _ = pub.Close() }()
	a := New(NewLogCursor(logPath, nil), pub, Options{})

	first := a.Step(context.Background())
	second := a.Step(context.Background())

	assert.True(t, first.Published)
	assert.Equal(t, StateNoBlock, second.State)
	assert.Len(t, readLines(t, advicePath), 1)
}

func TestAdvisor_Run_StopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	a := New(src, &recordingSink{}, Options{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, StateStopping, a.State())
}

func TestAdvisor_Run_InFlightDecisionCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var sawCancelled bool
	oracle := &RetryingOracle{
		Oracle: OracleFunc(func(callCtx context.Context, _ string) (int, bool) {
			cancel()
			sawCancelled = callCtx.Err() != nil
			return 5, true
		}),
		Attempts: 1,
	}
	sink := &recordingSink{}
	a := New(&fakeSource{blocks: []*SnapshotBlock{contested(40)}}, sink, Options{Oracle: oracle, Interval: time.Millisecond})

	require.NoError(t, a.Run(ctx))

	assert.False(t, sawCancelled, "oracle call must not observe loop cancellation")
	assert.Equal(t, []advice{{5, 40}}, sink.got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "block_found", StateBlockFound.String())
	assert.Equal(t, "unknown", State(42).String())
}
