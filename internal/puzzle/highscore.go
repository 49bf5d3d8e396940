package puzzle

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// ScoreStore is the key-value collaborator that persists high scores.
type ScoreStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ScoreRecorder is implemented by stores that can raise a stored best in a
// single step. SetIfGreater writes value only when it beats the stored
// number (or none is stored) and reports whether it wrote.
type ScoreRecorder interface {
	SetIfGreater(ctx context.Context, key string, value int) (bool, error)
}

// recordMu serialises the read-then-write for stores without SetIfGreater.
var recordMu sync.Mutex

// HighScoreKey is the store key for one operation/difficulty pair,
// e.g. "HighScore_Addition_Easy".
func HighScoreKey(op Operation, diff Difficulty) string {
	return fmt.Sprintf("HighScore_%s_%s", op, diff)
}

// HighScore returns the stored best score, or 0 when none is recorded.
func (e *Engine) HighScore(ctx context.Context, op Operation, diff Difficulty) (int, error) {
	return ReadHighScore(ctx, e.scores, op, diff)
}

// ReadHighScore reads a best score straight from a store, for callers that
// have no engine at hand.
func ReadHighScore(ctx context.Context, scores ScoreStore, op Operation, diff Difficulty) (int, error) {
	if scores == nil {
		return 0, ErrScoreStoreNotConfigured
	}
	raw, ok, err := scores.Get(ctx, HighScoreKey(op, diff))
	if err != nil {
		return 0, fmt.Errorf("read high score: %w", err)
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse high score %q: %w", raw, err)
	}
	return v, nil
}

// RecordScoreIfHigh stores score when it beats the stored best and reports
// whether it did. Engines sharing a store never lower each other's best.
func (e *Engine) RecordScoreIfHigh(ctx context.Context, op Operation, diff Difficulty, score int) (bool, error) {
	if e.scores == nil {
		return false, ErrScoreStoreNotConfigured
	}
	if r, ok := e.scores.(ScoreRecorder); ok {
		raised, err := r.SetIfGreater(ctx, HighScoreKey(op, diff), score)
		if err != nil {
			return false, fmt.Errorf("write high score: %w", err)
		}
		return raised, nil
	}

	recordMu.Lock()
	defer recordMu.Unlock()
	best, err := e.HighScore(ctx, op, diff)
	if err != nil {
		return false, err
	}
	if score <= best {
		return false, nil
	}
	if err := e.scores.Set(ctx, HighScoreKey(op, diff), strconv.Itoa(score)); err != nil {
		return false, fmt.Errorf("write high score: %w", err)
	}
	return true, nil
}

// FinalizeSession is called when the game timer runs out. It records the
// current score against the active operation and difficulty.
func (e *Engine) FinalizeSession(ctx context.Context) (score int, isNewHighScore bool, err error) {
	isNewHighScore, err = e.RecordScoreIfHigh(ctx, e.op, e.diff, e.score)
	return e.score, isNewHighScore, err
}
