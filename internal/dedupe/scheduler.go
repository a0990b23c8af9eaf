package dedupe

import (
	"math/rand/v2"
	"sync"
)

// Scheduler decides the order in which sources are visited during a pass.
//
// The order is a uniform shuffle drawn once per pass, so across many calls no
// source is systematically visited first (and so systematically kept). This
// is a heuristic: it does not guarantee equal survival rates per source.
// Safe for concurrent use.
type Scheduler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewScheduler returns a scheduler whose orders are reproducible for seed.
func NewScheduler(seed uint64) *Scheduler {
	return &Scheduler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomScheduler returns a scheduler seeded from system entropy.
func NewRandomScheduler() *Scheduler {
	return NewScheduler(rand.Uint64())
}

// Order returns a random permutation of the source indices [0, n).
func (s *Scheduler) Order(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(n)
}
