package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"disk-spinner/internal/prefs"
	"disk-spinner/internal/puzzle"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *fakeClock, *prefs.Memory) {
	t.Helper()
	clock := newFakeClock()
	store := prefs.NewMemory()
	opts = append([]ManagerOption{WithClock(clock.Now), WithRand(puzzle.NewSeededRand(1))}, opts...)
	return NewManager(store, opts...), clock, store
}

// answer selects a pair that hits the current target and submits it.
func answer(t *testing.T, s *Session) puzzle.EvaluationResult {
	t.Helper()
	ctx := context.Background()
	v := s.View(ctx)
	op, _ := v.Combination()
	for _, l := range v.Left.Values {
		for _, r := range v.Right.Values {
			if got, ok := puzzle.Apply(op, l, r); ok && got == v.Target {
				if _, err := s.Select(ctx, Left, l); err != nil {
					t.Fatalf("select left: %v", err)
				}
				if _, err := s.Select(ctx, Right, r); err != nil {
					t.Fatalf("select right: %v", err)
				}
				res, _, err := s.Submit(ctx)
				if err != nil {
					t.Fatalf("submit: %v", err)
				}
				return res
			}
		}
	}
	t.Fatalf("no pair reaches target %d", v.Target)
	return puzzle.EvaluationResult{}
}

func TestDiskRotateWraps(t *testing.T) {
	d := newDisk([6]int{1, 2, 3, 4, 5, 6})

	tests := []struct {
		steps int
		want  int
	}{
		{steps: 1, want: 2},
		{steps: 5, want: 1},
		{steps: -1, want: 6},
		{steps: -13, want: 5},
		{steps: 12, want: 5},
	}
	for _, tc := range tests {
		if got := d.Rotate(tc.steps); got != tc.want {
			t.Fatalf("Rotate(%d): expected %d, got %d", tc.steps, tc.want, got)
		}
	}
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"left": Left, "L": Left, " right ": Right, "r": Right} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Fatalf("ParseSide(%q): expected %s, got %s err=%v", in, want, got, err)
		}
	}
	if _, err := ParseSide("middle"); err == nil {
		t.Fatal("expected error for unknown side")
	}
}

func TestCreateStartsActiveGameWithDisksAtFirstSlot(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, err := m.Create(context.Background(), puzzle.Subtraction, puzzle.Medium)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Fatalf("expected uuid session id, got %q", s.ID())
	}

	v := s.View(context.Background())
	if v.State != Active || v.Remaining != DefaultDuration {
		t.Fatalf("expected active game with full time, got %s %s", v.State, v.Remaining)
	}
	if v.Left.Index != 0 || v.Left.Selected != 10 || v.Right.Selected != 2 {
		t.Fatalf("expected disks at first slot (10, 2), got %+v %+v", v.Left, v.Right)
	}
	if v.Expression != "10 - 2" {
		t.Fatalf("expected expression %q, got %q", "10 - 2", v.Expression)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Len())
	}
}

func TestRotateReportsValueToEngine(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _ := m.Create(context.Background(), puzzle.Multiplication, puzzle.Hard)

	v, err := s.Rotate(context.Background(), Right, -1)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if v.Right.Index != 5 || v.Right.Selected != 8 {
		t.Fatalf("expected right disk at slot 5 showing 8, got %+v", v.Right)
	}
	if v.Expression != "5 * 8" {
		t.Fatalf("expected %q, got %q", "5 * 8", v.Expression)
	}
}

func TestSelectOffDiskValueKeepsDiskPosition(t *testing.T) {
	m, _, _ := newTestManager(t)
	s, _ := m.Create(context.Background(), puzzle.Addition, puzzle.Easy)
	ctx := context.Background()

	v, _ := s.Select(ctx, Left, 4)
	if v.Left.Index != 3 {
		t.Fatalf("expected left disk to follow to slot 3, got %d", v.Left.Index)
	}
	v, _ = s.Select(ctx, Left, 99)
	if v.Left.Index != 3 || v.Left.Selected != 99 {
		t.Fatalf("expected slot 3 with selection 99, got %+v", v.Left)
	}
}

func TestPauseFreezesTimer(t *testing.T) {
	m, clock, _ := newTestManager(t)
	s, _ := m.Create(context.Background(), puzzle.Addition, puzzle.Easy)
	ctx := context.Background()

	clock.Advance(20 * time.Second)
	if _, err := s.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	clock.Advance(5 * time.Minute)

	v := s.View(ctx)
	if v.State != Paused || v.Remaining != 40*time.Second {
		t.Fatalf("expected paused with 40s left, got %s %s", v.State, v.Remaining)
	}
	if _, err := s.Rotate(ctx, Left, 1); !errors.Is(err, ErrSessionPaused) {
		t.Fatalf("expected ErrSessionPaused, got %v", err)
	}
	if _, _, err := s.Submit(ctx); !errors.Is(err, ErrSessionPaused) {
		t.Fatalf("expected ErrSessionPaused on submit, got %v", err)
	}

	if _, err := s.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	clock.Advance(10 * time.Second)
	if v := s.View(ctx); v.State != Active || v.Remaining != 30*time.Second {
		t.Fatalf("expected active with 30s left, got %s %s", v.State, v.Remaining)
	}
}

func TestTimerExpiryFinalizesOnce(t *testing.T) {
	var finished []View
	m, clock, store := newTestManager(t, OnFinish(func(_ context.Context, v View) {
		finished = append(finished, v)
	}))
	ctx := context.Background()
	s, _ := m.Create(ctx, puzzle.Division, puzzle.Hard)

	answer(t, s)
	answer(t, s)

	clock.Advance(61 * time.Second)

	if _, _, err := s.Submit(ctx); !errors.Is(err, ErrSessionOver) {
		t.Fatalf("expected ErrSessionOver, got %v", err)
	}
	v := s.View(ctx)
	if v.State != Over || v.Result == nil {
		t.Fatalf("expected finished game with result, got %+v", v)
	}
	if v.Result.Score != 21 || !v.Result.NewHighScore || v.Result.PreviousHighScore != 0 {
		t.Fatalf("unexpected result %+v", *v.Result)
	}
	if len(finished) != 1 {
		t.Fatalf("expected one finish notification, got %d", len(finished))
	}

	got, ok, _ := store.Get(ctx, "HighScore_Division_Hard")
	if !ok || got != "21" {
		t.Fatalf("expected stored high score 21, got %q", got)
	}

	res, err := s.Finish(ctx)
	if err != nil || res.Score != 21 {
		t.Fatalf("expected Finish to return the recorded result, got %+v err=%v", res, err)
	}
	if len(finished) != 1 {
		t.Fatalf("expected no second notification, got %d", len(finished))
	}
}

func TestLowerScoreKeepsPreviousHighScore(t *testing.T) {
	m, _, store := newTestManager(t)
	ctx := context.Background()
	store.Set(ctx, "HighScore_Addition_Easy", "50")

	s, _ := m.Create(ctx, puzzle.Addition, puzzle.Easy)
	answer(t, s)

	res, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res.Score != 10 || res.NewHighScore || res.PreviousHighScore != 50 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got, _, _ := store.Get(ctx, "HighScore_Addition_Easy"); got != "50" {
		t.Fatalf("expected high score to stay 50, got %q", got)
	}
}

func TestRestartReopensFinishedGame(t *testing.T) {
	m, clock, _ := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, puzzle.Subtraction, puzzle.Easy)
	answer(t, s)

	clock.Advance(2 * time.Minute)
	if v := s.View(ctx); v.State != Over {
		t.Fatalf("expected game over, got %s", v.State)
	}
	if _, err := s.Pause(ctx); !errors.Is(err, ErrSessionOver) {
		t.Fatalf("expected ErrSessionOver from Pause, got %v", err)
	}

	v, err := s.Restart(ctx)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if v.State != Active || v.Score != 0 || v.Streak != 0 || v.Remaining != DefaultDuration || v.Result != nil {
		t.Fatalf("expected a fresh game, got %+v", v)
	}
}

func TestConfigureAfterTimeoutFinalizesPreviousGame(t *testing.T) {
	tests := []struct {
		name string
		act  func(context.Context, *Session) (View, error)
	}{
		{"configure", func(ctx context.Context, s *Session) (View, error) {
			return s.Configure(ctx, puzzle.Addition, puzzle.Hard)
		}},
		{"restart", func(ctx context.Context, s *Session) (View, error) {
			return s.Restart(ctx)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var finished []View
			m, clock, store := newTestManager(t, OnFinish(func(_ context.Context, v View) {
				finished = append(finished, v)
			}))
			ctx := context.Background()
			s, _ := m.Create(ctx, puzzle.Addition, puzzle.Easy)
			answer(t, s)
			answer(t, s)

			clock.Advance(61 * time.Second)

			v, err := tc.act(ctx, s)
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			if v.State != Active || v.Score != 0 || v.Result != nil {
				t.Fatalf("expected a fresh game, got %+v", v)
			}

			got, ok, _ := store.Get(ctx, "HighScore_Addition_Easy")
			if !ok || got != "21" {
				t.Fatalf("expected stored high score 21, got %q ok=%t", got, ok)
			}
			if len(finished) != 1 {
				t.Fatalf("expected one finish notification, got %d", len(finished))
			}
			if r := finished[0].Result; r == nil || r.Score != 21 || !r.NewHighScore || finished[0].Difficulty != "easy" {
				t.Fatalf("expected the finished easy game with score 21, got %+v", finished[0])
			}
		})
	}
}

func TestConfigureSwitchesPoolsAndResetsDisks(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, puzzle.Addition, puzzle.Easy)
	s.Rotate(ctx, Left, 2)

	v, err := s.Configure(ctx, puzzle.Division, puzzle.Medium)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	want := [6]int{10, 15, 18, 20, 24, 30}
	if v.Left.Values != want || v.Left.Index != 0 || v.Left.Selected != 10 {
		t.Fatalf("expected division/medium left disk at slot 0, got %+v", v.Left)
	}
	if v.Operation != "division" || v.Difficulty != "medium" {
		t.Fatalf("expected division/medium, got %s/%s", v.Operation, v.Difficulty)
	}

	if _, err := s.Configure(ctx, puzzle.Operation(12), puzzle.Easy); !errors.Is(err, puzzle.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if v := s.View(ctx); v.Operation != "division" {
		t.Fatalf("expected failed configure to keep division, got %s", v.Operation)
	}
}

func TestManagerGetAndFinish(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	s, _ := m.Create(ctx, puzzle.Addition, puzzle.Hard)

	if got, err := m.Get(s.ID()); err != nil || got != s {
		t.Fatalf("Get: expected session, got %v err=%v", got, err)
	}
	if _, err := m.Finish(ctx, s.ID()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := m.Finish(ctx, s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second finish, got %v", err)
	}
}

func TestSweepExpiresAndEvicts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m, clock, _ := newTestManager(t, WithRetention(time.Minute), WithDuration(30*time.Second), WithLogger(zap.New(core)))
	ctx := context.Background()

	old, _ := m.Create(ctx, puzzle.Addition, puzzle.Easy)
	clock.Advance(20 * time.Second)
	fresh, _ := m.Create(ctx, puzzle.Addition, puzzle.Easy)

	clock.Advance(15 * time.Second)
	expired, evicted := m.Sweep(ctx)
	if expired != 1 || evicted != 0 {
		t.Fatalf("expected 1 expired 0 evicted, got %d/%d", expired, evicted)
	}
	if v := old.View(ctx); v.State != Over {
		t.Fatalf("expected old game over, got %s", v.State)
	}
	if v := fresh.View(ctx); v.State != Active {
		t.Fatalf("expected fresh game active, got %s", v.State)
	}

	clock.Advance(time.Minute)
	expired, evicted = m.Sweep(ctx)
	if expired != 1 || evicted != 1 {
		t.Fatalf("expected 1 expired 1 evicted, got %d/%d", expired, evicted)
	}
	if _, err := m.Get(old.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old session evicted, got %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 session left, got %d", m.Len())
	}

	if n := logs.FilterMessage("game finished").Len(); n != 2 {
		t.Fatalf("expected 2 finish logs, got %d", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSessionsWithoutStoreStillFinish(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()
	s, err := m.Create(ctx, puzzle.Multiplication, puzzle.Easy)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	answer(t, s)

	res, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("expected no error without a store, got %v", err)
	}
	if res.Score != 10 || res.NewHighScore {
		t.Fatalf("unexpected result %+v", res)
	}
}
