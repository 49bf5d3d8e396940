package puzzle

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
)

// RecentCapacity is how many past targets are avoided when alternatives exist.
const RecentCapacity = 5

// Apply evaluates l op r. The second return is false when the result is
// undefined: a zero divisor or a division with a remainder.
func Apply(op Operation, l, r int) (int, bool) {
	switch op {
	case Addition:
		return l + r, true
	case Subtraction:
		return l - r, true
	case Multiplication:
		return l * r, true
	case Division:
		if r == 0 || l%r != 0 {
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

// Reachable returns every distinct result of op over the pool's cross
// product, sorted ascending.
func Reachable(op Operation, p DiskPool) []int {
	seen := make(map[int]struct{}, PoolSize*PoolSize)
	out := make([]int, 0, PoolSize*PoolSize)
	for _, l := range p.Left {
		for _, r := range p.Right {
			v, ok := Apply(op, l, r)
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// Rand is the source used to pick targets.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// lockedRand lets several engines share one seeded source.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewSeededRand returns a deterministic source that is safe for concurrent use.
func NewSeededRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// recentTargets is a bounded FIFO, oldest first.
type recentTargets struct {
	values []int
}

func (q *recentTargets) push(v int) {
	q.values = append(q.values, v)
	if len(q.values) > RecentCapacity {
		q.values = slices.Delete(q.values, 0, len(q.values)-RecentCapacity)
	}
}

func (q *recentTargets) contains(v int) bool { return slices.Contains(q.values, v) }

func (q *recentTargets) snapshot() []int { return slices.Clone(q.values) }

// pickTarget draws a target from reachable, avoiding recent values when it
// can, and records it.
func pickTarget(src Rand, reachable []int, recent *recentTargets) (int, error) {
	candidates := make([]int, 0, len(reachable))
	for _, v := range reachable {
		if !recent.contains(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		candidates = reachable
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("%w: empty reachable set", ErrNoReachableTarget)
	}

	target := candidates[src.IntN(len(candidates))]
	recent.push(target)
	return target, nil
}
