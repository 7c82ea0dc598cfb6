package advisor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Retry defaults.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 150 * time.Millisecond
)

// RetryingOracle asks an Oracle repeatedly until it names an eligible pid.
type RetryingOracle struct {
	Oracle   Oracle
	Attempts int           // total calls, at least 1
	Delay    time.Duration // pause between calls

	// Sleep is used for the inter-attempt pause; nil means time.Sleep.
	// The pause is deliberately not cancellable.
	Sleep   func(time.Duration)
	Log     logrus.FieldLogger
	Metrics *Metrics
}

// Decide returns the first answer contained in eligible. An unparsable answer
// and an answer outside eligible are treated alike: both consume an attempt.
// It reports false once all attempts are exhausted.
func (r *RetryingOracle) Decide(ctx context.Context, request string, eligible []int) (int, bool) {
	if r.Oracle == nil || len(eligible) == 0 {
		return 0, false
	}
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && r.Delay > 0 {
			sleep(r.Delay)
		}
		entry := log.WithFields(logrus.Fields{"attempt": attempt, "of": attempts})
		pid, ok := r.Oracle.Ask(ctx, request)
		switch {
		case !ok:
			r.Metrics.oracleAttempt("no_answer")
			entry.Warn("oracle gave no usable answer")
		case !containsPID(eligible, pid):
			r.Metrics.oracleAttempt("rejected")
			entry.WithFields(logrus.Fields{"pid": pid, "eligible": eligible}).
				Warn("oracle named a pid outside the eligible set")
		default:
			r.Metrics.oracleAttempt("accepted")
			entry.WithField("pid", pid).Debug("oracle answer accepted")
			return pid, true
		}
	}
	log.WithField("attempts", attempts).Warn("oracle attempts exhausted, using fallback")
	return 0, false
}
