package puzzle

import "errors"

var (
	// ErrConfiguration reports an (operation, difficulty) pair with no pool entry.
	ErrConfiguration = errors.New("no disk pool configured")
	// ErrNoReachableTarget reports a pool whose cross product has no valid result.
	ErrNoReachableTarget = errors.New("no reachable target")
	// ErrScoreStoreNotConfigured is returned by high-score calls on an engine
	// built without a score store.
	ErrScoreStoreNotConfigured = errors.New("score store not configured")
)
