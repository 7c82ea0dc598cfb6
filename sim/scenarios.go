package sim

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ScenarioDemo is five processes of varying CPU and I/O behaviour.
func ScenarioDemo() []*Proc {
	return []*Proc{
		NewProc(3, 50, 0.30),
		NewProc(4, 40, 0.45),
		NewProc(5, 70, 0.05),
		NewProc(6, 60, 0.25),
		NewProc(7, 30, 0.60),
	}
}

// ScenarioMinimal is two processes for quick sanity checks.
func ScenarioMinimal() []*Proc {
	return []*Proc{
		NewProc(15, 40, 0.10),
		NewProc(16, 40, 0.50),
	}
}

var scenarios = map[string]func() []*Proc{
	"demo":    ScenarioDemo,
	"minimal": ScenarioMinimal,
}

// IsValidScenario returns true if name is a built-in scenario.
func IsValidScenario(name string) bool {
	_, ok := scenarios[name]
	return ok
}

// ValidScenarioNames returns sorted built-in scenario names.
func ValidScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario returns a fresh workload for a built-in scenario.
func Scenario(name string) ([]*Proc, error) {
	f, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q; valid: %v", name, ValidScenarioNames())
	}
	return f(), nil
}

// ProcSpec is one process entry of a workload file.
type ProcSpec struct {
	PID           int     `yaml:"pid"`
	TotalRequired int64   `yaml:"total_required"`
	IOBias        float64 `yaml:"io_bias"`
}

// Workload is a YAML workload file:
//
//	processes:
//	  - {pid: 3, total_required: 50, io_bias: 0.3}
type Workload struct {
	Processes []ProcSpec `yaml:"processes"`
}

// LoadWorkload reads and parses a YAML workload file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadWorkload(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload: %w", err)
	}
	var w Workload
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&w); err != nil {
		return nil, fmt.Errorf("parsing workload: %w", err)
	}
	return &w, nil
}

// Validate checks the workload against the advisor's reserved pid range:
// processes at or below reservedMax would never be advised.
func (w *Workload) Validate(reservedMax int) error {
	if len(w.Processes) == 0 {
		return fmt.Errorf("workload has no processes")
	}
	seen := make(map[int]bool, len(w.Processes))
	for i, p := range w.Processes {
		prefix := fmt.Sprintf("processes[%d]", i)
		if p.PID <= reservedMax {
			return fmt.Errorf("%s: pid %d is in the reserved range (<= %d)", prefix, p.PID, reservedMax)
		}
		if seen[p.PID] {
			return fmt.Errorf("%s: duplicate pid %d", prefix, p.PID)
		}
		seen[p.PID] = true
		if p.TotalRequired < 1 {
			return fmt.Errorf("%s: total_required must be at least 1, got %d", prefix, p.TotalRequired)
		}
		if !(p.IOBias >= 0 && p.IOBias <= 1) {
			return fmt.Errorf("%s: io_bias must be in [0, 1], got %f", prefix, p.IOBias)
		}
	}
	return nil
}

// Procs returns fresh processes for the workload.
func (w *Workload) Procs() []*Proc {
	procs := make([]*Proc, 0, len(w.Processes))
	for _, p := range w.Processes {
		procs = append(procs, NewProc(p.PID, p.TotalRequired, p.IOBias))
	}
	return procs
}
