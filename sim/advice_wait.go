package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/schedbridge/schedbridge/advisor"
)

// DefaultPollEvery is the advice file polling period.
const DefaultPollEvery = 20 * time.Millisecond

// fileSize returns the size of path, or 0 if it does not exist.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// adviceWatcher tails the advice log for the line answering one timestamp.
type adviceWatcher struct {
	path      string
	pollEvery time.Duration
}

// wait polls the advice log from offset until a line for ts appears or
// timeout elapses. Only complete lines are consumed; a line still being
// written is re-read on the next poll. A shrinking file restarts at 0.
func (w adviceWatcher) wait(ctx context.Context, ts int64, offset int64, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	pos := offset
	for {
		size, err := fileSize(w.path)
		if err != nil {
			return 0, fmt.Errorf("stat advice log: %w", err)
		}
		if size < pos {
			pos = 0
		}
		if size > pos {
			chunk, err := readFrom(w.path, pos)
			if err != nil {
				return 0, err
			}
			complete := strings.LastIndexByte(chunk, '\n') + 1
			pos += int64(complete)
			for _, line := range strings.Split(chunk[:complete], "\n") {
				if rec, ok := advisor.ParseAdviceLine(line); ok && rec.Timestamp == ts {
					return rec.PID, nil
				}
			}
		}

		if !time.Now().Before(deadline) {
			return 0, fmt.Errorf("no advice for ts %d after %v: %w", ts, timeout, ErrAdviceTimeout)
		}
		timer := time.NewTimer(w.pollEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}
}

func readFrom(path string, offset int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening advice log: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("seeking advice log: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading advice log: %w", err)
	}
	return string(data), nil
}
