package advisor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Publisher appends advice to the durable advice log and mirrors it to the
// low-latency pipe. It remembers only the last published (pid, timestamp)
// pair; a restarted publisher starts with no memory of earlier advice.
type Publisher struct {
	advicePath string
	pipePath   string
	file       *os.File

	last    AdviceRecord
	hasLast bool

	log     logrus.FieldLogger
	metrics *Metrics
}

// NewPublisher opens (creating if needed) the advice log for appending.
// pipePath may be empty to disable the pipe mirror. Failure here is fatal for
// the bridge: nothing downstream works without the advice log.
func NewPublisher(advicePath, pipePath string, log logrus.FieldLogger, metrics *Metrics) (*Publisher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(advicePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating advice directory: %w", err)
	}
	f, err := os.OpenFile(advicePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening advice log: %w", err)
	}
	return &Publisher{
		advicePath: advicePath,
		pipePath:   pipePath,
		file:       f,
		log:        log.WithField("file", advicePath),
		metrics:    metrics,
	}, nil
}

// Publish writes advice for (pid, ts) unless that exact pair was the last one
// published. It reports whether a line was written. The de-duplication state
// advances only after the line has been synced to storage.
func (p *Publisher) Publish(pid int, ts int64) (bool, error) {
	if p.hasLast && p.last.PID == pid && p.last.Timestamp == ts {
		p.metrics.duplicate()
		p.log.WithFields(logrus.Fields{"pid": pid, "ts": ts}).Debug("advice already published")
		return false, nil
	}

	line := FormatAdvice(pid, ts)
	if _, err := p.file.WriteString(line); err != nil {
		return false, fmt.Errorf("appending advice: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return false, fmt.Errorf("syncing advice log: %w", err)
	}
	p.last = AdviceRecord{PID: pid, Timestamp: ts, Version: AdviceVersion}
	p.hasLast = true
	p.metrics.published()
	p.log.WithFields(logrus.Fields{"pid": pid, "ts": ts}).Info("advice published")

	p.mirror(line)
	return true, nil
}

// mirror copies line to the pipe. It never blocks and never fails the caller.
func (p *Publisher) mirror(line string) {
	if p.pipePath == "" {
		return
	}
	reason, err := writePipe(p.pipePath, []byte(line))
	switch {
	case err != nil:
		p.metrics.pipeSkip("error")
		p.log.WithError(err).WithField("pipe", p.pipePath).Warn("advice pipe write failed")
	case reason != "":
		p.metrics.pipeSkip(reason)
		p.log.WithFields(logrus.Fields{"pipe": p.pipePath, "reason": reason}).Debug("advice pipe skipped")
	}
}

// Last returns the most recently published record, if any.
func (p *Publisher) Last() (AdviceRecord, bool) {
	return p.last, p.hasLast
}

// Close releases the advice log.
func (p *Publisher) Close() error {
	return p.file.Close()
}
