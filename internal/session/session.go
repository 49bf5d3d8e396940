// Package session runs timed games on top of a puzzle engine: two rotating
// disks, a countdown, pause/resume and the final high-score check.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"disk-spinner/internal/puzzle"
)

// State is the lifecycle of a game.
type State int

const (
	Active State = iota
	Paused
	Over
)

func (s State) String() string {
	switch s {
	case Paused:
		return "paused"
	case Over:
		return "over"
	}
	return "active"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "active":
		*s = Active
	case "paused":
		*s = Paused
	case "over":
		*s = Over
	default:
		return fmt.Errorf("unknown session state %q", b)
	}
	return nil
}

// Result is what a finished game leaves behind.
type Result struct {
	Score             int       `json:"score"`
	NewHighScore      bool      `json:"new_high_score"`
	PreviousHighScore int       `json:"previous_high_score"`
	FinishedAt        time.Time `json:"finished_at"`
}

// FinishFunc is called once per finished game, outside the session lock.
type FinishFunc func(ctx context.Context, v View)

// Session is one player's game. All methods are safe for concurrent use;
// they serialise access to the underlying engine.
type Session struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	engine   *puzzle.Engine
	left     Disk
	right    Disk
	now      func() time.Time
	duration time.Duration
	onFinish FinishFunc

	state     State
	remaining time.Duration // as of resumedAt while active, frozen while paused
	resumedAt time.Time
	result    *Result
	finishErr error
}

func newSession(id string, engine *puzzle.Engine, duration time.Duration, now func() time.Time, onFinish FinishFunc) *Session {
	s := &Session{
		id:        id,
		createdAt: now(),
		engine:    engine,
		now:       now,
		duration:  duration,
		onFinish:  onFinish,
	}
	s.reset()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// reset snaps both disks to their first slot, reports the values to the
// engine and restarts the clock.
func (s *Session) reset() {
	pool := s.engine.ActivePool()
	s.left = newDisk(pool.Left)
	s.right = newDisk(pool.Right)
	s.engine.UpdateLeftSelection(s.left.Value())
	s.engine.UpdateRightSelection(s.right.Value())

	s.state = Active
	s.remaining = s.duration
	s.resumedAt = s.now()
	s.result = nil
	s.finishErr = nil
}

func (s *Session) remainingLocked(now time.Time) time.Duration {
	switch s.state {
	case Over:
		return 0
	case Paused:
		return s.remaining
	}
	left := s.remaining - now.Sub(s.resumedAt)
	if left < 0 {
		return 0
	}
	return left
}

// expireLocked ends the game when its time is up. It reports whether the
// game ended during this call.
func (s *Session) expireLocked(ctx context.Context) bool {
	if s.state != Active {
		return false
	}
	now := s.now()
	if s.remainingLocked(now) > 0 {
		return false
	}
	s.finishLocked(ctx, s.resumedAt.Add(s.remaining))
	return true
}

// finishLocked records the final score exactly once.
func (s *Session) finishLocked(ctx context.Context, at time.Time) {
	op, diff := s.engine.Operation(), s.engine.Difficulty()

	res := Result{FinishedAt: at}
	prev, err := s.engine.HighScore(ctx, op, diff)
	if err == nil {
		res.PreviousHighScore = prev
		res.Score, res.NewHighScore, err = s.engine.FinalizeSession(ctx)
	} else {
		res.Score = s.engine.Score()
	}
	if errors.Is(err, puzzle.ErrScoreStoreNotConfigured) {
		err = nil
	}

	s.state = Over
	s.remaining = 0
	s.result = &res
	s.finishErr = err
}

// checkPlayable expires the game if due and rejects moves on a paused or
// finished game.
func (s *Session) checkPlayable(ctx context.Context) (ended bool, err error) {
	ended = s.expireLocked(ctx)
	switch s.state {
	case Paused:
		return ended, ErrSessionPaused
	case Over:
		return ended, ErrSessionOver
	}
	return ended, nil
}

// unlockAndNotify releases the lock and, when the game just ended, runs the
// finish hook with a fresh view.
func (s *Session) unlockAndNotify(ctx context.Context, ended bool) {
	var v View
	if ended {
		v = s.viewLocked()
	}
	s.mu.Unlock()
	if ended && s.onFinish != nil {
		s.onFinish(ctx, v)
	}
}

// View returns the current state, ending the game first if its time is up.
func (s *Session) View(ctx context.Context) View {
	s.mu.Lock()
	ended := s.expireLocked(ctx)
	v := s.viewLocked()
	s.unlockAndNotify(ctx, ended)
	return v
}

// Rotate turns one disk and reports the new value to the engine.
func (s *Session) Rotate(ctx context.Context, side Side, steps int) (View, error) {
	s.mu.Lock()
	ended, err := s.checkPlayable(ctx)
	if err == nil {
		if side == Left {
			s.engine.UpdateLeftSelection(s.left.Rotate(steps))
		} else {
			s.engine.UpdateRightSelection(s.right.Rotate(steps))
		}
	}
	v := s.viewLocked()
	s.unlockAndNotify(ctx, ended)
	return v, err
}

// Select reports value for one side directly. Any integer is accepted; the
// disk follows when the value is printed on it.
func (s *Session) Select(ctx context.Context, side Side, value int) (View, error) {
	s.mu.Lock()
	ended, err := s.checkPlayable(ctx)
	if err == nil {
		if side == Left {
			s.left.moveTo(value)
			s.engine.UpdateLeftSelection(value)
		} else {
			s.right.moveTo(value)
			s.engine.UpdateRightSelection(value)
		}
	}
	v := s.viewLocked()
	s.unlockAndNotify(ctx, ended)
	return v, err
}

// Submit evaluates the current selection.
func (s *Session) Submit(ctx context.Context) (puzzle.EvaluationResult, View, error) {
	s.mu.Lock()
	var res puzzle.EvaluationResult
	ended, err := s.checkPlayable(ctx)
	if err == nil {
		res = s.engine.Evaluate()
	}
	v := s.viewLocked()
	s.unlockAndNotify(ctx, ended)
	return res, v, err
}

// Configure switches operation and difficulty and starts a new game, also
// when the previous one is paused or over. A game whose time ran out is
// finalized before the new one starts.
func (s *Session) Configure(ctx context.Context, op puzzle.Operation, diff puzzle.Difficulty) (View, error) {
	s.mu.Lock()
	var finished *View
	if s.expireLocked(ctx) {
		fv := s.viewLocked()
		finished = &fv
	}

	err := s.engine.Configure(op, diff)
	if err == nil {
		s.reset()
	}
	v := s.viewLocked()
	s.mu.Unlock()

	if finished != nil && s.onFinish != nil {
		s.onFinish(ctx, *finished)
	}
	return v, err
}

// Restart starts a new game with the current operation and difficulty.
func (s *Session) Restart(ctx context.Context) (View, error) {
	s.mu.Lock()
	op, diff := s.engine.Operation(), s.engine.Difficulty()
	s.mu.Unlock()
	return s.Configure(ctx, op, diff)
}

// Pause freezes the countdown. Pausing a paused game is a no-op.
func (s *Session) Pause(ctx context.Context) (View, error) {
	s.mu.Lock()
	ended := s.expireLocked(ctx)
	var err error
	switch s.state {
	case Active:
		now := s.now()
		s.remaining = s.remainingLocked(now)
		s.state = Paused
	case Over:
		err = ErrSessionOver
	}
	v := s.viewLocked()
	s.unlockAndNotify(ctx, ended)
	return v, err
}

// Resume continues a paused countdown. Resuming an active game is a no-op.
func (s *Session) Resume(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Paused:
		s.state = Active
		s.resumedAt = s.now()
	case Over:
		return s.viewLocked(), ErrSessionOver
	}
	return s.viewLocked(), nil
}

// Finish ends the game now unless it has already ended and returns its
// result. The error is a high-score store failure, if any; the result is
// valid either way.
func (s *Session) Finish(ctx context.Context) (Result, error) {
	s.mu.Lock()
	ended := false
	if s.state != Over {
		now := s.now()
		if s.state == Active && s.remainingLocked(now) == 0 {
			now = s.resumedAt.Add(s.remaining)
		}
		s.finishLocked(ctx, now)
		ended = true
	}
	res, err := *s.result, s.finishErr
	s.unlockAndNotify(ctx, ended)
	return res, err
}

// Result returns the final result once the game is over.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// HighScore returns the stored best for the session's current combination.
func (s *Session) HighScore(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.HighScore(ctx, s.engine.Operation(), s.engine.Difficulty())
}

func (s *Session) finishedBefore(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Over && s.result != nil && !s.result.FinishedAt.After(t)
}

// View is a JSON-friendly snapshot of a session.
type View struct {
	ID               string        `json:"id"`
	Operation        string        `json:"operation"`
	Difficulty       string        `json:"difficulty"`
	Symbol           string        `json:"symbol"`
	Target           int           `json:"target"`
	Expression       string        `json:"expression"`
	Left             DiskView      `json:"left"`
	Right            DiskView      `json:"right"`
	Score            int           `json:"score"`
	Streak           int           `json:"streak"`
	RecentTargets    []int         `json:"recent_targets"`
	State            State         `json:"state"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds float64       `json:"remaining_seconds"`
	Result           *Result       `json:"result,omitempty"`

	operation  puzzle.Operation
	difficulty puzzle.Difficulty
}

// Combination returns the operation and difficulty the view was taken with.
func (v View) Combination() (puzzle.Operation, puzzle.Difficulty) {
	return v.operation, v.difficulty
}

func (s *Session) viewLocked() View {
	st := s.engine.State()
	remaining := s.remainingLocked(s.now())
	v := View{
		ID:               s.id,
		Operation:        st.Operation.Key(),
		Difficulty:       st.Difficulty.Key(),
		Symbol:           st.Operation.Symbol(),
		Target:           st.Target,
		Expression:       st.Expression(),
		Left:             s.left.view(st.LeftSelected),
		Right:            s.right.view(st.RightSelected),
		Score:            st.Score,
		Streak:           st.Streak,
		RecentTargets:    st.RecentTargets,
		State:            s.state,
		Remaining:        remaining,
		RemainingSeconds: remaining.Seconds(),
		operation:        st.Operation,
		difficulty:       st.Difficulty,
	}
	if s.result != nil {
		r := *s.result
		v.Result = &r
	}
	return v
}
