package sim

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// IOStreams draws simulated I/O events from one seeded stream per process.
// A process's stream is seeded with seed XOR fnv1a64("io_<pid>"), so its
// event sequence depends only on the seed and on how long it has run, never
// on how the scheduler interleaved the other processes.
//
// Not safe for concurrent use; the simulator owns it.
type IOStreams struct {
	seed    int64
	streams map[int]*rand.Rand
}

// NewIOStreams creates the streams for one simulation run.
func NewIOStreams(seed int64) *IOStreams {
	return &IOStreams{seed: seed, streams: make(map[int]*rand.Rand)}
}

// Event reports whether pid performs I/O on this tick, with probability bias.
func (s *IOStreams) Event(pid int, bias float64) bool {
	if bias <= 0 {
		return false
	}
	return s.stream(pid).Float64() < bias
}

// Seed returns the run's seed.
func (s *IOStreams) Seed() int64 { return s.seed }

func (s *IOStreams) stream(pid int) *rand.Rand {
	r, ok := s.streams[pid]
	if !ok {
		r = rand.New(rand.NewSource(s.seed ^ fnv1a64("io_"+strconv.Itoa(pid))))
		s.streams[pid] = r
	}
	return r
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
