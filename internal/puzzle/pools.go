package puzzle

import "fmt"

type poolKey struct {
	op   Operation
	diff Difficulty
}

// poolTable is the canonical disk layout per operation and difficulty.
var poolTable = map[poolKey]DiskPool{
	{Addition, Easy}:   {Left: [6]int{1, 2, 3, 4, 5, 6}, Right: [6]int{1, 2, 3, 4, 5, 6}},
	{Addition, Medium}: {Left: [6]int{5, 6, 7, 8, 9, 10}, Right: [6]int{5, 6, 7, 8, 9, 10}},
	{Addition, Hard}:   {Left: [6]int{10, 12, 14, 16, 18, 20}, Right: [6]int{5, 7, 9, 10, 11, 13}},

	{Subtraction, Easy}:   {Left: [6]int{6, 7, 8, 9, 10, 12}, Right: [6]int{1, 2, 3, 4, 5, 6}},
	{Subtraction, Medium}: {Left: [6]int{10, 12, 14, 16, 18, 20}, Right: [6]int{2, 4, 6, 8, 10, 12}},
	{Subtraction, Hard}:   {Left: [6]int{15, 18, 20, 25, 30, 35}, Right: [6]int{5, 8, 10, 12, 15, 18}},

	{Multiplication, Easy}:   {Left: [6]int{1, 2, 3, 4, 5, 6}, Right: [6]int{1, 2, 3, 4, 5, 6}},
	{Multiplication, Medium}: {Left: [6]int{2, 3, 4, 5, 6, 7}, Right: [6]int{2, 3, 4, 5, 6, 7}},
	{Multiplication, Hard}:   {Left: [6]int{5, 6, 7, 8, 9, 10}, Right: [6]int{3, 4, 5, 6, 7, 8}},

	{Division, Easy}:   {Left: [6]int{2, 4, 6, 8, 10, 12}, Right: [6]int{1, 2, 3, 4, 5, 6}},
	{Division, Medium}: {Left: [6]int{10, 15, 18, 20, 24, 30}, Right: [6]int{2, 3, 3, 4, 6, 5}},
	{Division, Hard}:   {Left: [6]int{12, 16, 20, 24, 28, 36}, Right: [6]int{2, 4, 5, 6, 7, 9}},
}

// Pool returns the disk values for op and diff.
func Pool(op Operation, diff Difficulty) (DiskPool, error) {
	p, ok := poolTable[poolKey{op, diff}]
	if !ok {
		return DiskPool{}, fmt.Errorf("%w: %s_%s", ErrConfiguration, op.Key(), diff.Key())
	}
	return p, nil
}

// PoolEntry pairs a pool with the combination it belongs to.
type PoolEntry struct {
	Operation  Operation
	Difficulty Difficulty
	Pool       DiskPool
}

// Pools returns every table entry, operation-major.
func Pools() []PoolEntry {
	out := make([]PoolEntry, 0, len(poolTable))
	for _, op := range Operations() {
		for _, diff := range Difficulties() {
			if p, ok := poolTable[poolKey{op, diff}]; ok {
				out = append(out, PoolEntry{Operation: op, Difficulty: diff, Pool: p})
			}
		}
	}
	return out
}

// SelfCheck verifies that every combination has a pool with at least one
// reachable target. Run it once at startup and abort on error.
func SelfCheck() error {
	for _, op := range Operations() {
		for _, diff := range Difficulties() {
			p, err := Pool(op, diff)
			if err != nil {
				return err
			}
			if len(Reachable(op, p)) == 0 {
				return fmt.Errorf("%w: %s_%s", ErrNoReachableTarget, op.Key(), diff.Key())
			}
		}
	}
	return nil
}
