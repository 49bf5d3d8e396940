package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"disk-spinner/internal/puzzle"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultDuration  = 60 * time.Second
	DefaultRetention = 10 * time.Minute
)

// Manager owns every live session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	scores    puzzle.ScoreStore
	rand      puzzle.Rand
	duration  time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
	onFinish  []FinishFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRand shares one random source between all engines.
func WithRand(r puzzle.Rand) ManagerOption {
	return func(m *Manager) { m.rand = r }
}

// WithDuration sets the length of a game.
func WithDuration(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.duration = d
		}
	}
}

// WithRetention sets how long finished sessions stay readable before Sweep
// evicts them.
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.retention = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for game start and finish events.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// OnFinish registers a hook run once for every game that ends.
func OnFinish(fn FinishFunc) ManagerOption {
	return func(m *Manager) { m.onFinish = append(m.onFinish, fn) }
}

// NewManager returns a manager whose engines keep high scores in scores.
// A nil store disables high scores.
func NewManager(scores puzzle.ScoreStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:  make(map[string]*Session),
		scores:    scores,
		duration:  DefaultDuration,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Duration is the length of a game.
func (m *Manager) Duration() time.Duration { return m.duration }

func (m *Manager) finished(ctx context.Context, v View) {
	m.logger.Info("game finished",
		zap.String("session_id", v.ID),
		zap.String("operation", v.Operation),
		zap.String("difficulty", v.Difficulty),
		zap.Int("score", v.Result.Score),
		zap.Bool("new_high_score", v.Result.NewHighScore),
	)
	for _, fn := range m.onFinish {
		fn(ctx, v)
	}
}

// Create starts a new game.
func (m *Manager) Create(ctx context.Context, op puzzle.Operation, diff puzzle.Difficulty) (*Session, error) {
	opts := []puzzle.Option{puzzle.WithRand(m.rand)}
	if m.scores != nil {
		opts = append(opts, puzzle.WithScoreStore(m.scores))
	}
	engine, err := puzzle.NewEngine(op, diff, opts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s := newSession(uuid.NewString(), engine, m.duration, m.now, m.finished)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("game started",
		zap.String("session_id", s.id),
		zap.String("operation", op.Key()),
		zap.String("difficulty", diff.Key()),
	)
	return s, nil
}

// Get returns the session with id or ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Finish ends the game and forgets the session.
func (m *Manager) Finish(ctx context.Context, id string) (Result, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Finish(ctx)
}

// Len is the number of sessions held, finished ones included.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep ends games whose time is up and evicts games that finished more
// than the retention period ago.
func (m *Manager) Sweep(ctx context.Context) (expired, evicted int) {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	cutoff := m.now().Add(-m.retention)
	var stale []string
	for _, s := range all {
		s.mu.Lock()
		ended := s.expireLocked(ctx)
		s.unlockAndNotify(ctx, ended)
		if ended {
			expired++
		}
		if s.finishedBefore(cutoff) {
			stale = append(stale, s.id)
		}
	}

	if len(stale) > 0 {
		m.mu.Lock()
		for _, id := range stale {
			if _, ok := m.sessions[id]; ok {
				delete(m.sessions, id)
				evicted++
			}
		}
		m.mu.Unlock()
	}
	return expired, evicted
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, evicted := m.Sweep(ctx)
			if expired > 0 || evicted > 0 {
				m.logger.Debug("sessions swept",
					zap.Int("expired", expired),
					zap.Int("evicted", evicted),
					zap.Int("remaining", m.Len()),
				)
			}
		}
	}
}
