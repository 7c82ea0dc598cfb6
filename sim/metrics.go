// Tracks simulation-wide scheduling quality: decisions, context switches,
// per-process wait and turnaround.

package sim

import (
	"fmt"
	"io"
	"sort"
)

// historyShown is how many decisions Print lists in the execution order.
const historyShown = 40

// Stats aggregates a simulation run for final reporting.
type Stats struct {
	Ticks           int   // Ticks executed
	Decisions       int   // Snapshots emitted
	ContextSwitches int   // Decisions that changed the running pid
	History         []int // Pid chosen at each decision

	AvgWait       float64 // Mean wait ticks over all processes
	AvgTurnaround float64 // Mean finish tick over finished processes
	Finished      int

	Procs []Proc // Final per-process state, sorted by pid
}

// summarize fills the averages and the per-process table from procs.
func (st *Stats) summarize(procs []*Proc) {
	st.Procs = st.Procs[:0]
	var waits, turns float64
	st.Finished = 0
	for _, p := range procs {
		st.Procs = append(st.Procs, *p)
		waits += float64(p.WaitTicks)
		if p.Done {
			// All processes arrive at tick 0.
			turns += float64(p.FinishTick)
			st.Finished++
		}
	}
	sort.Slice(st.Procs, func(i, j int) bool { return st.Procs[i].PID < st.Procs[j].PID })
	st.AvgWait, st.AvgTurnaround = 0, 0
	if len(procs) > 0 {
		st.AvgWait = waits / float64(len(procs))
	}
	if st.Finished > 0 {
		st.AvgTurnaround = turns / float64(st.Finished)
	}
}

// AllDone reports whether every process finished.
func (st *Stats) AllDone() bool {
	return len(st.Procs) > 0 && st.Finished == len(st.Procs)
}

// Print displays the per-process table and aggregate results.
func (st *Stats) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Results ===")
	for _, p := range st.Procs {
		fmt.Fprintf(w, "PID=%2d CPU=%3d WAIT=%3d IO=%2d RECENT=%3d DONE=%-5t START=%s FINISH=%s\n",
			p.PID, p.CPUTicks, p.WaitTicks, p.IOCount, p.RecentCPU, p.Done,
			tickString(p.StartTick), tickString(p.FinishTick))
	}
	fmt.Fprintf(w, "Total ticks          : %d\n", st.Ticks)
	fmt.Fprintf(w, "Decisions            : %d\n", st.Decisions)
	fmt.Fprintf(w, "Context switches     : %d\n", st.ContextSwitches)
	fmt.Fprintf(w, "Average wait         : %.2f ticks\n", st.AvgWait)
	fmt.Fprintf(w, "Average turnaround   : %.2f ticks\n", st.AvgTurnaround)
	shown := st.History
	if len(shown) > historyShown {
		shown = shown[:historyShown]
	}
	fmt.Fprintf(w, "Execution order (first %d decisions): %v\n", historyShown, shown)
}

func tickString(t int) string {
	if t < 0 {
		return "-"
	}
	return fmt.Sprint(t)
}
