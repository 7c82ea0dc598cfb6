package advisor

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxCandidates caps how many processes one oracle request lists.
const DefaultMaxCandidates = 8

// RequestBuilder renders eligible candidates into the oracle's instruction text.
type RequestBuilder struct {
	ReservedMax   int
	MaxCandidates int
}

// NewRequestBuilder returns a builder with the default reserved pid range and cap.
func NewRequestBuilder() RequestBuilder {
	return RequestBuilder{ReservedMax: DefaultReservedMax, MaxCandidates: DefaultMaxCandidates}
}

// Candidates returns the eligible processes the request will list. Over the
// cap, the longest-waiting (then most I/O-bound) processes are kept so that
// starvation risks stay visible.
func (b RequestBuilder) Candidates(procs []ProcessSnapshot) []ProcessSnapshot {
	eligible := Eligible(procs, b.ReservedMax)
	if b.MaxCandidates <= 0 || len(eligible) <= b.MaxCandidates {
		return eligible
	}
	sorted := make([]ProcessSnapshot, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WaitTicks != sorted[j].WaitTicks {
			return sorted[i].WaitTicks > sorted[j].WaitTicks
		}
		if sorted[i].IOCount != sorted[j].IOCount {
			return sorted[i].IOCount > sorted[j].IOCount
		}
		return sorted[i].PID < sorted[j].PID
	})
	return sorted[:b.MaxCandidates]
}

// Build renders the request text. It reports false when nothing is runnable.
func (b RequestBuilder) Build(procs []ProcessSnapshot) (string, bool) {
	cands := b.Candidates(procs)
	if len(cands) == 0 {
		return "", false
	}
	return RenderRequest(cands), true
}

// RenderRequest formats an already-selected candidate list.
func RenderRequest(cands []ProcessSnapshot) string {
	var sb strings.Builder
	sb.WriteString("You are a CPU scheduling advisor for an operating system kernel.\n")
	sb.WriteString("Pick exactly one process to run next from the list below.\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1. Answer with a single line in the exact format PID:<number>.\n")
	sb.WriteString("2. The number must be one of the PIDs listed below.\n")
	sb.WriteString("3. Do not add any explanation or other text.\n")
	sb.WriteString("4. Prefer processes that have waited long or do frequent I/O; avoid processes with high recent CPU.\n\n")
	sb.WriteString("Processes (CPU=total ticks run, WAIT=ticks waiting, IO=I/O events, RECENT=recent CPU):\n")
	for _, p := range cands {
		fmt.Fprintf(&sb, "PID %d: CPU=%d, WAIT=%d, IO=%d, RECENT=%d\n",
			p.PID, p.CPUTicks, p.WaitTicks, p.IOCount, p.RecentCPU)
	}
	fmt.Fprintf(&sb, "\nExample answer:\nPID:%d\n", cands[0].PID)
	return sb.String()
}
