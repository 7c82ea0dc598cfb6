package advisor

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
)

// Weights are the fallback scorer's coefficients.
type Weights struct {
	Wait   float64 `yaml:"wait"`
	IO     float64 `yaml:"io"`
	Recent float64 `yaml:"recent"`
}

// DefaultWeights prefers long-waiting and I/O-bound processes and penalises
// recent CPU hogs, the same policy the oracle is asked to follow.
func DefaultWeights() Weights {
	return Weights{Wait: 1.0, IO: 1.0, Recent: 1.2}
}

// Validate rejects negative, NaN and infinite weights.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"wait": w.Wait, "io": w.IO, "recent": w.Recent} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("weight %q must be a finite non-negative number, got %v", name, v)
		}
	}
	return nil
}

// ParseWeights parses a comma-separated "name:weight" list, e.g.
// "wait:1,io:1,recent:1.2". Unnamed weights keep their default value.
func ParseWeights(s string) (Weights, error) {
	return DefaultWeights().Apply(s)
}

// Apply returns w with the weights named in s ("name:weight,...") replaced.
func (w Weights) Apply(s string) (Weights, error) {
	if strings.TrimSpace(s) == "" {
		return w, nil
	}
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return Weights{}, fmt.Errorf("invalid weight %q (expected name:weight)", strings.TrimSpace(part))
		}
		name := strings.ToLower(strings.TrimSpace(kv[0]))
		if seen[name] {
			return Weights{}, fmt.Errorf("duplicate weight %q", name)
		}
		seen[name] = true
		v, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("invalid value for weight %q: %w", name, err)
		}
		switch name {
		case "wait":
			w.Wait = v
		case "io":
			w.IO = v
		case "recent":
			w.Recent = v
		default:
			return Weights{}, fmt.Errorf("unknown weight %q; valid: wait, io, recent", name)
		}
	}
	return w, w.Validate()
}

// Scorer is the deterministic fallback decision function.
type Scorer struct {
	Weights     Weights
	ReservedMax int
}

// NewScorer returns a scorer with default weights and reserved pid range.
func NewScorer() Scorer {
	return Scorer{Weights: DefaultWeights(), ReservedMax: DefaultReservedMax}
}

// Score computes the weighted score of p, including its pid jitter.
func (s Scorer) Score(p ProcessSnapshot) float64 {
	return s.Weights.Wait*float64(p.WaitTicks) +
		s.Weights.IO*float64(p.IOCount) -
		s.Weights.Recent*float64(p.RecentCPU) +
		Jitter(p.PID)
}

// Choose returns the best-scoring eligible pid. Exact ties go to the process
// with fewer accumulated CPU ticks, then to the lower pid.
func (s Scorer) Choose(procs []ProcessSnapshot) (int, bool) {
	cands := Eligible(procs, s.ReservedMax)
	if len(cands) == 0 {
		return 0, false
	}
	best := cands[0]
	bestScore := s.Score(best)
	for _, p := range cands[1:] {
		if score := s.Score(p); outranks(p, score, best, bestScore) {
			best, bestScore = p, score
		}
	}
	return best.PID, true
}

// outranks reports whether a (scoring aScore) beats b (scoring bScore).
func outranks(a ProcessSnapshot, aScore float64, b ProcessSnapshot, bScore float64) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	if a.CPUTicks != b.CPUTicks {
		return a.CPUTicks < b.CPUTicks
	}
	return a.PID < b.PID
}

// Jitter is a stable per-pid offset in [0, 0.001) used to break exact score
// ties reproducibly. It depends on the pid alone.
func Jitter(pid int) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.Itoa(pid)))
	return float64(h.Sum64()%1000) / 1e6
}
