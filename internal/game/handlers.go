package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"disk-spinner/internal/handlers"
	"disk-spinner/internal/observability"
	"disk-spinner/internal/puzzle"
	"disk-spinner/internal/session"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// tracer is the game's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("game")

// Handlers serves the /game endpoints on top of a session manager.
type Handlers struct {
	sessions   *session.Manager
	scores     puzzle.ScoreStore
	collectors *Collectors
}

// NewHandlers wires the game endpoints. scores backs the high score lookup
// and may be nil; collectors may be nil.
func NewHandlers(sessions *session.Manager, scores puzzle.ScoreStore, collectors *Collectors) *Handlers {
	return &Handlers{sessions: sessions, scores: scores, collectors: collectors}
}

// statusFor maps domain errors onto HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, session.ErrSessionPaused):
		return http.StatusConflict, "session is paused"
	case errors.Is(err, session.ErrSessionOver):
		return http.StatusConflict, "session is over"
	case errors.Is(err, puzzle.ErrScoreStoreNotConfigured):
		return http.StatusNotImplemented, "high scores are not enabled"
	case errors.Is(err, puzzle.ErrConfiguration), errors.Is(err, puzzle.ErrNoReachableTarget):
		return http.StatusInternalServerError, "puzzle configuration error"
	}
	return http.StatusInternalServerError, "internal error"
}

// request carries the per-request observability state shared by handlers.
type request struct {
	ctx    context.Context
	span   trace.Span
	logger *zap.Logger
	opName string
	start  time.Time
	w      http.ResponseWriter
}

func begin(w http.ResponseWriter, r *http.Request, opName string, attrs ...attribute.KeyValue) *request {
	ctx := r.Context()
	requestID := observability.RequestIDFromContext(ctx)

	attrs = append(attrs,
		attribute.String("game.operation", opName),
		attribute.String("request.id", requestID),
	)
	ctx, span := tracer.Start(ctx, "game."+opName, trace.WithAttributes(attrs...))

	return &request{
		ctx:    ctx,
		span:   span,
		logger: observability.LoggerWithTrace(ctx),
		opName: opName,
		start:  time.Now(),
		w:      w,
	}
}

func (q *request) end() {
	elapsed := float64(time.Since(q.start).Microseconds()) / 1000.0 // ms
	requestHistogram.Record(q.ctx, elapsed, metric.WithAttributes(attribute.String("operation", q.opName)))
	q.span.End()
}

func (q *request) fail(status int, msg string, err error) {
	observability.RecordError(q.ctx, q.span, q.logger, errorCounter, q.opName, msg, err, status, q.w)
}

func (q *request) failErr(err error) {
	status, msg := statusFor(err)
	q.fail(status, msg, err)
}

// decode reads a JSON body into dst. An empty body is allowed when optional.
func (q *request) decode(r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	q.fail(http.StatusBadRequest, "invalid request body", err)
	return false
}

func (q *request) ok(status int, v any) {
	q.span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(q.w, status, v)
}

func (q *request) logView(msg string, v session.View, fields ...zap.Field) {
	q.logger.Info(msg, append([]zap.Field{
		zap.String("session_id", v.ID),
		zap.String("operation", v.Operation),
		zap.String("difficulty", v.Difficulty),
		zap.String("state", v.State.String()),
		zap.String("request_id", observability.RequestIDFromContext(q.ctx)),
	}, fields...)...)
}

func parseCombination(opRaw, diffRaw string) (puzzle.Operation, puzzle.Difficulty, error) {
	op, err := puzzle.ParseOperation(opRaw)
	if err != nil {
		return 0, 0, err
	}
	diff, err := puzzle.ParseDifficulty(diffRaw)
	if err != nil {
		return 0, 0, err
	}
	return op, diff, nil
}

// lookup resolves the {id} URL parameter.
func (h *Handlers) lookup(q *request, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	q.span.SetAttributes(attribute.String("game.session_id", id))
	s, err := h.sessions.Get(id)
	if err != nil {
		q.failErr(err)
		return nil, false
	}
	return s, true
}

// ---------------------------------------------------------------------------
// Handlers - pool table
// ---------------------------------------------------------------------------

// ListPools handles GET /game/pools
func (h *Handlers) ListPools(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "list_pools")
	defer q.end()

	entries := puzzle.Pools()
	resp := make([]PoolResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newPoolResponse(e.Operation, e.Difficulty, e.Pool))
	}
	q.ok(http.StatusOK, resp)
}

// GetPool handles GET /game/pools/{operation}/{difficulty}
func (h *Handlers) GetPool(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "get_pool")
	defer q.end()

	op, diff, err := parseCombination(chi.URLParam(r, "operation"), chi.URLParam(r, "difficulty"))
	if err != nil {
		q.fail(http.StatusBadRequest, err.Error(), err)
		return
	}
	p, err := puzzle.Pool(op, diff)
	if err != nil {
		q.failErr(err)
		return
	}
	q.ok(http.StatusOK, newPoolResponse(op, diff, p))
}

// HighScore handles GET /game/highscores/{operation}/{difficulty}
func (h *Handlers) HighScore(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "high_score")
	defer q.end()

	op, diff, err := parseCombination(chi.URLParam(r, "operation"), chi.URLParam(r, "difficulty"))
	if err != nil {
		q.fail(http.StatusBadRequest, err.Error(), err)
		return
	}
	best, err := puzzle.ReadHighScore(q.ctx, h.scores, op, diff)
	if err != nil {
		q.failErr(err)
		return
	}
	q.ok(http.StatusOK, HighScoreResponse{
		Operation:  op.Key(),
		Difficulty: diff.Key(),
		Key:        puzzle.HighScoreKey(op, diff),
		HighScore:  best,
	})
}

// ---------------------------------------------------------------------------
// Handlers - session lifecycle
// ---------------------------------------------------------------------------

// CreateSession handles POST /game/sessions
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "create_session")
	defer q.end()

	var req CreateSessionRequest
	if !q.decode(r, &req, true) {
		return
	}
	if req.Operation == "" {
		req.Operation = puzzle.Addition.Key()
	}
	if req.Difficulty == "" {
		req.Difficulty = puzzle.Easy.Key()
	}
	op, diff, err := parseCombination(req.Operation, req.Difficulty)
	if err != nil {
		q.fail(http.StatusBadRequest, err.Error(), err)
		return
	}

	s, err := h.sessions.Create(q.ctx, op, diff)
	if err != nil {
		q.failErr(err)
		return
	}
	v := s.View(q.ctx)

	attrs := comboAttrs(v.Operation, v.Difficulty)
	startedCounter.Add(q.ctx, 1, attrs)
	targetsCounter.Add(q.ctx, 1, attrs)
	q.span.SetAttributes(attribute.String("game.session_id", v.ID))

	q.logView("session created", v, zap.Int("target", v.Target))
	q.ok(http.StatusCreated, v)
}

// GetSession handles GET /game/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "get_session")
	defer q.end()

	s, ok := h.lookup(q, r)
	if !ok {
		return
	}
	q.ok(http.StatusOK, s.View(q.ctx))
}

// FinishSession handles DELETE /game/sessions/{id}. The game ends now and
// the session is forgotten.
func (h *Handlers) FinishSession(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "finish_session")
	defer q.end()

	id := chi.URLParam(r, "id")
	q.span.SetAttributes(attribute.String("game.session_id", id))

	res, err := h.sessions.Finish(q.ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		q.failErr(err)
		return
	}
	if err != nil {
		// The game is over either way; only the high score write failed.
		q.fail(http.StatusInternalServerError, "failed to record high score", err)
		return
	}

	q.span.SetAttributes(
		attribute.Int("game.final_score", res.Score),
		attribute.Bool("game.new_high_score", res.NewHighScore),
	)
	q.logger.Info("session finished",
		zap.String("session_id", id),
		zap.Int("score", res.Score),
		zap.Bool("new_high_score", res.NewHighScore),
		zap.String("request_id", observability.RequestIDFromContext(q.ctx)),
	)
	q.ok(http.StatusOK, FinishResponse{ID: id, Result: res})
}

// Configure handles PUT /game/sessions/{id}/config
func (h *Handlers) Configure(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "configure")
	defer q.end()

	s, ok := h.lookup(q, r)
	if !ok {
		return
	}
	var req ConfigRequest
	if !q.decode(r, &req, false) {
		return
	}

	op, diff := s.View(q.ctx).Combination()
	var err error
	if req.Operation != nil {
		if op, err = puzzle.ParseOperation(*req.Operation); err != nil {
			q.fail(http.StatusBadRequest, err.Error(), err)
			return
		}
	}
	if req.Difficulty != nil {
		if diff, err = puzzle.ParseDifficulty(*req.Difficulty); err != nil {
			q.fail(http.StatusBadRequest, err.Error(), err)
			return
		}
	}

	v, err := s.Configure(q.ctx, op, diff)
	if err != nil {
		q.failErr(err)
		return
	}
	targetsCounter.Add(q.ctx, 1, comboAttrs(v.Operation, v.Difficulty))

	q.logView("session configured", v, zap.Int("target", v.Target))
	q.ok(http.StatusOK, v)
}

// Restart handles POST /game/sessions/{id}/restart
func (h *Handlers) Restart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "restart", (*session.Session).Restart)
}

// Pause handles POST /game/sessions/{id}/pause
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "pause", (*session.Session).Pause)
}

// Resume handles POST /game/sessions/{id}/resume
func (h *Handlers) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "resume", (*session.Session).Resume)
}

func (h *Handlers) lifecycle(w http.ResponseWriter, r *http.Request, opName string, act func(*session.Session, context.Context) (session.View, error)) {
	q := begin(w, r, opName)
	defer q.end()

	s, ok := h.lookup(q, r)
	if !ok {
		return
	}
	v, err := act(s, q.ctx)
	if err != nil {
		q.failErr(err)
		return
	}
	if opName == "restart" {
		targetsCounter.Add(q.ctx, 1, comboAttrs(v.Operation, v.Difficulty))
	}

	q.logView(fmt.Sprintf("session %s", opName), v, zap.Duration("remaining", v.Remaining))
	q.ok(http.StatusOK, v)
}

// ---------------------------------------------------------------------------
// Handlers - play
// ---------------------------------------------------------------------------

// Rotate handles POST /game/sessions/{id}/disks/{side}/rotate
func (h *Handlers) Rotate(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "rotate")
	defer q.end()

	side, err := session.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		q.fail(http.StatusBadRequest, err.Error(), err)
		return
	}
	s, ok := h.lookup(q, r)
	if !ok {
		return
	}
	var req RotateRequest
	if !q.decode(r, &req, false) {
		return
	}

	v, err := s.Rotate(q.ctx, side, req.Steps)
	if err != nil {
		q.failErr(err)
		return
	}
	q.span.SetAttributes(
		attribute.String("game.side", side.String()),
		attribute.Int("game.steps", req.Steps),
	)
	q.ok(http.StatusOK, v)
}

// Select handles PUT /game/sessions/{id}/disks/{side}
func (h *Handlers) Select(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "select")
	defer q.end()

	side, err := session.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		q.fail(http.StatusBadRequest, err.Error(), err)
		return
	}
	s, ok := h.lookup(q, r)
	if !ok {
		return
	}
	var req SelectRequest
	if !q.decode(r, &req, false) {
		return
	}
	if req.Value == nil {
		q.fail(http.StatusBadRequest, "value is required", errors.New("missing value"))
		return
	}

	v, err := s.Select(q.ctx, side, *req.Value)
	if err != nil {
		q.failErr(err)
		return
	}
	q.ok(http.StatusOK, v)
}

// Answer handles POST /game/sessions/{id}/answer
func (h *Handlers) Answer(w http.ResponseWriter, r *http.Request) {
	q := begin(w, r, "answer")
	defer q.end()

	s, ok := h.lookup(q, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if !q.decode(r, &req, true) {
		return
	}

	// --- 1. Optional selection carried in the body ---
	if req.Left != nil {
		if _, err := s.Select(q.ctx, session.Left, *req.Left); err != nil {
			q.failErr(err)
			return
		}
	}
	if req.Right != nil {
		if _, err := s.Select(q.ctx, session.Right, *req.Right); err != nil {
			q.failErr(err)
			return
		}
	}

	// --- 2. Evaluate ---
	res, v, err := s.Submit(q.ctx)
	if err != nil {
		q.failErr(err)
		return
	}

	// --- 3. Record metrics ---
	attrs := metric.WithAttributes(
		attribute.String("operation", v.Operation),
		attribute.String("difficulty", v.Difficulty),
		attribute.Bool("correct", res.Correct),
	)
	answersCounter.Add(q.ctx, 1, attrs)
	h.collectors.observeAnswer(v.Operation, v.Difficulty, res.Correct)
	if res.Correct {
		combo := comboAttrs(v.Operation, v.Difficulty)
		pointsCounter.Add(q.ctx, int64(res.PointsAwarded), combo)
		streakHistogram.Record(q.ctx, int64(res.NewStreak), combo)
		targetsCounter.Add(q.ctx, 1, combo)
	}

	// --- 4. Span event with the outcome ---
	q.span.AddEvent("answer.evaluated", trace.WithAttributes(
		attribute.Bool("correct", res.Correct),
		attribute.Int("target", res.Target),
		attribute.Int("result", res.Result),
		attribute.Int("points", res.PointsAwarded),
	))

	// --- 5. Structured log with trace correlation ---
	q.logView("answer evaluated", v,
		zap.Bool("correct", res.Correct),
		zap.Int("target", res.Target),
		zap.Int("result", res.Result),
		zap.Bool("defined", res.Defined),
		zap.Int("points", res.PointsAwarded),
		zap.Int("streak", res.NewStreak),
		zap.Int("score", v.Score),
	)

	q.ok(http.StatusOK, AnswerResponse{Evaluation: res, Session: v})
}
