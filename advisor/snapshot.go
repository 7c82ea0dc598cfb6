package advisor

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire markers for one snapshot block in the shared log.
const (
	BlockStart      = "SCHED_LOG_START"
	BlockEnd        = "SCHED_LOG_END"
	timestampPrefix = "TIMESTAMP:"
	procPrefix      = "PROC:"
	procFieldCount  = 6
)

// StateRunnable is the producer's state code for a schedulable process.
// Producer and bridge must agree on it; every other code is ignored.
const StateRunnable = 3

// ProcessSnapshot is one process's scheduling metrics at one logical instant.
type ProcessSnapshot struct {
	PID       int
	State     int
	CPUTicks  int64
	WaitTicks int64
	IOCount   int64
	RecentCPU int64 // decaying recent-window counter, may go down
}

// SnapshotBlock is a time-stamped capture of all tracked processes.
type SnapshotBlock struct {
	Timestamp int64
	Procs     []ProcessSnapshot
}

// ParseBlock decodes the body of one block (the text between the start and
// end markers; the markers themselves are tolerated). Malformed PROC lines are
// skipped individually. It reports false when no timestamp or no well-formed
// process line is present.
func ParseBlock(text string) (*SnapshotBlock, bool) {
	block := &SnapshotBlock{}
	haveTS := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, timestampPrefix):
			if haveTS {
				continue
			}
			ts, err := strconv.ParseInt(strings.TrimSpace(line[len(timestampPrefix):]), 10, 64)
			if err != nil || ts < 0 {
				continue
			}
			block.Timestamp = ts
			haveTS = true
		case strings.HasPrefix(line, procPrefix):
			p, err := ParseProcLine(line)
			if err != nil {
				continue
			}
			block.Procs = append(block.Procs, p)
		}
	}
	if !haveTS || len(block.Procs) == 0 {
		return nil, false
	}
	return block, true
}

// ParseProcLine decodes a single "PROC:<pid>,<state>,<cpu>,<wait>,<io>,<recent>" line.
func ParseProcLine(line string) (ProcessSnapshot, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, procPrefix) {
		return ProcessSnapshot{}, fmt.Errorf("missing %q prefix", procPrefix)
	}
	parts := strings.Split(line[len(procPrefix):], ",")
	if len(parts) != procFieldCount {
		return ProcessSnapshot{}, fmt.Errorf("expected %d fields, got %d", procFieldCount, len(parts))
	}
	var vals [procFieldCount]int64
	for i, part := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return ProcessSnapshot{}, fmt.Errorf("field %d: %w", i, err)
		}
		if v < 0 {
			return ProcessSnapshot{}, fmt.Errorf("field %d: negative value %d", i, v)
		}
		vals[i] = v
	}
	if vals[0] == 0 {
		return ProcessSnapshot{}, fmt.Errorf("pid must be positive")
	}
	return ProcessSnapshot{
		PID:       int(vals[0]),
		State:     int(vals[1]),
		CPUTicks:  vals[2],
		WaitTicks: vals[3],
		IOCount:   vals[4],
		RecentCPU: vals[5],
	}, nil
}

// FormatBlock renders a block in the shared-log wire format, terminated by a newline.
func FormatBlock(b SnapshotBlock) string {
	var sb strings.Builder
	sb.WriteString(BlockStart)
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "%s%d\n", timestampPrefix, b.Timestamp)
	for _, p := range b.Procs {
		fmt.Fprintf(&sb, "%s%d,%d,%d,%d,%d,%d\n", procPrefix,
			p.PID, p.State, p.CPUTicks, p.WaitTicks, p.IOCount, p.RecentCPU)
	}
	sb.WriteString(BlockEnd)
	sb.WriteByte('\n')
	return sb.String()
}
