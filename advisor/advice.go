package advisor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AdviceVersion is the protocol version tag on every advice line.
const AdviceVersion = 1

// AdviceRecord is one published scheduling decision.
type AdviceRecord struct {
	PID       int
	Timestamp int64
	Version   int
}

// String renders the record as an advice line without the trailing newline.
func (r AdviceRecord) String() string {
	return fmt.Sprintf("ADVICE:PID=%d TS=%d V=%d", r.PID, r.Timestamp, r.Version)
}

// FormatAdvice returns the newline-terminated advice line for (pid, ts).
func FormatAdvice(pid int, ts int64) string {
	return AdviceRecord{PID: pid, Timestamp: ts, Version: AdviceVersion}.String() + "\n"
}

var adviceLine = regexp.MustCompile(`^ADVICE:PID=(\d+)\s+TS=(\d+)(?:\s+V=(\d+))?`)

// ParseAdviceLine decodes an advice line. Lines without a timestamp are rejected.
func ParseAdviceLine(line string) (AdviceRecord, bool) {
	m := adviceLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return AdviceRecord{}, false
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil {
		return AdviceRecord{}, false
	}
	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return AdviceRecord{}, false
	}
	rec := AdviceRecord{PID: pid, Timestamp: ts, Version: AdviceVersion}
	if m[3] != "" {
		if v, err := strconv.Atoi(m[3]); err == nil {
			rec.Version = v
		}
	}
	return rec, true
}
