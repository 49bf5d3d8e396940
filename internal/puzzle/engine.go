package puzzle

const (
	basePoints     = 10
	maxStreakBonus = 5
)

// Engine owns one player's puzzle state: the active pools, the current
// target, score and streak.
//
// An Engine is not safe for concurrent use. Callers serialise access to it.
type Engine struct {
	rand   Rand
	scores ScoreStore

	op        Operation
	diff      Difficulty
	pool      DiskPool
	reachable []int
	target    int
	left      int
	right     int
	score     int
	streak    int
	recent    recentTargets
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source. The default is the process-wide source
// of math/rand/v2.
func WithRand(r Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// WithScoreStore sets the store used for high scores.
func WithScoreStore(s ScoreStore) Option {
	return func(e *Engine) { e.scores = s }
}

// NewEngine builds an engine for op and diff and draws the first target.
func NewEngine(op Operation, diff Difficulty, opts ...Option) (*Engine, error) {
	e := &Engine{rand: globalRand{}}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Configure(op, diff); err != nil {
		return nil, err
	}
	return e, nil
}

// SetOperation switches the operation and starts a fresh round.
func (e *Engine) SetOperation(op Operation) error {
	return e.Configure(op, e.diff)
}

// SetDifficulty switches the difficulty and starts a fresh round.
func (e *Engine) SetDifficulty(diff Difficulty) error {
	return e.Configure(e.op, diff)
}

// Configure switches both operation and difficulty, resets score, streak
// and recent targets, and draws a new target. On error the engine is
// unchanged.
func (e *Engine) Configure(op Operation, diff Difficulty) error {
	pool, err := Pool(op, diff)
	if err != nil {
		return err
	}
	reachable := Reachable(op, pool)

	var recent recentTargets
	target, err := pickTarget(e.rand, reachable, &recent)
	if err != nil {
		return err
	}

	e.op, e.diff = op, diff
	e.pool = pool
	e.reachable = reachable
	e.score, e.streak = 0, 0
	e.recent = recent
	e.target = target
	return nil
}

// UpdateLeftSelection records the value under the left disk's pointer.
// Values outside the pool are accepted; they simply never match.
func (e *Engine) UpdateLeftSelection(v int) { e.left = v }

// UpdateRightSelection records the value under the right disk's pointer.
func (e *Engine) UpdateRightSelection(v int) { e.right = v }

// Evaluate checks the current selection against the target.
func (e *Engine) Evaluate() EvaluationResult {
	res := EvaluationResult{Target: e.target}
	res.Result, res.Defined = Apply(e.op, e.left, e.right)
	res.Correct = res.Defined && res.Result == e.target

	if !res.Correct {
		e.streak = 0
		res.NewStreak = 0
		res.NextTarget = e.target
		return res
	}

	e.streak++
	bonus := min(e.streak-1, maxStreakBonus)
	res.PointsAwarded = basePoints + bonus
	res.NewStreak = e.streak
	e.score += res.PointsAwarded

	// reachable is non-empty once Configure succeeded.
	next, err := pickTarget(e.rand, e.reachable, &e.recent)
	if err == nil {
		e.target = next
	}
	res.NextTarget = e.target
	return res
}

// Pool is a side-effect free lookup of any table entry.
func (e *Engine) Pool(op Operation, diff Difficulty) (DiskPool, error) {
	return Pool(op, diff)
}

// ActivePool returns the pools for the current operation and difficulty.
func (e *Engine) ActivePool() DiskPool { return e.pool }

// Reachable returns the reachable set of the active pools.
func (e *Engine) Reachable() []int { return append([]int(nil), e.reachable...) }

// Operation is the active operation.
func (e *Engine) Operation() Operation { return e.op }

// Difficulty is the active difficulty.
func (e *Engine) Difficulty() Difficulty { return e.diff }

// Target is the number the current selection must produce.
func (e *Engine) Target() int { return e.target }

// Score is the total earned since the last reset.
func (e *Engine) Score() int { return e.score }

// Streak counts consecutive correct answers.
func (e *Engine) Streak() int { return e.streak }

// State returns a snapshot for display.
func (e *Engine) State() State {
	return State{
		Operation:     e.op,
		Difficulty:    e.diff,
		Target:        e.target,
		LeftSelected:  e.left,
		RightSelected: e.right,
		Score:         e.score,
		Streak:        e.streak,
		RecentTargets: e.recent.snapshot(),
	}
}
