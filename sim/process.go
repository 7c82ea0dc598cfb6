package sim

import "github.com/schedbridge/schedbridge/advisor"

// Proc is one simulated process. Every process arrives at tick 0.
type Proc struct {
	PID           int
	TotalRequired int64   // CPU ticks needed to finish
	IOBias        float64 // per-tick I/O probability while running, in [0, 1]

	CPUTicks  int64
	WaitTicks int64
	IOCount   int64
	RecentCPU int64

	Done       bool
	StartTick  int // -1 until first scheduled
	FinishTick int // -1 until done
}

// NewProc returns a fresh, never-scheduled process.
func NewProc(pid int, totalRequired int64, ioBias float64) *Proc {
	return &Proc{PID: pid, TotalRequired: totalRequired, IOBias: ioBias, StartTick: -1, FinishTick: -1}
}

// Snapshot renders the process as the kernel would report it: every
// unfinished process is runnable.
func (p *Proc) Snapshot() advisor.ProcessSnapshot {
	return advisor.ProcessSnapshot{
		PID:       p.PID,
		State:     advisor.StateRunnable,
		CPUTicks:  p.CPUTicks,
		WaitTicks: p.WaitTicks,
		IOCount:   p.IOCount,
		RecentCPU: p.RecentCPU,
	}
}
