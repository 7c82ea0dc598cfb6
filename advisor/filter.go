package advisor

// DefaultReservedMax is the highest pid never offered for scheduling
// (kernel, init and shell on the instrumented machine).
const DefaultReservedMax = 2

// Eligible returns the runnable, non-reserved processes in snapshot order.
func Eligible(procs []ProcessSnapshot, reservedMax int) []ProcessSnapshot {
	var out []ProcessSnapshot
	for _, p := range procs {
		if p.State == StateRunnable && p.PID > reservedMax {
			out = append(out, p)
		}
	}
	return out
}

// PIDs returns the pids of procs in order.
func PIDs(procs []ProcessSnapshot) []int {
	pids := make([]int, len(procs))
	for i, p := range procs {
		pids[i] = p.PID
	}
	return pids
}

func containsPID(pids []int, pid int) bool {
	for _, p := range pids {
		if p == pid {
			return true
		}
	}
	return false
}
