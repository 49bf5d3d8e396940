package settings

import (
	"encoding/json"
	"net/http"

	"disk-spinner/internal/handlers"
	"disk-spinner/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("settings")

// Response is the JSON body of every settings endpoint.
type Response struct {
	Settings
	EffectiveMusicVolume float64 `json:"effective_music_volume"`
	EffectiveFXVolume    float64 `json:"effective_fx_volume"`
}

func newResponse(s Settings) Response {
	return Response{
		Settings:             s,
		EffectiveMusicVolume: s.EffectiveMusicVolume(),
		EffectiveFXVolume:    s.EffectiveFXVolume(),
	}
}

// Handlers serves the settings endpoints.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Get handles GET /settings
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "settings.get")
	defer span.End()
	logger := observability.LoggerWithTrace(ctx)

	s, err := h.svc.Load(ctx)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "get", "failed to load settings", err, http.StatusInternalServerError, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, newResponse(s))
}

// Put handles PUT /settings. Fields left out of the body keep their value.
func (h *Handlers) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "settings.put",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	var u Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "put", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	s, err := h.svc.Apply(ctx, u)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "put", "failed to save settings", err, http.StatusInternalServerError, w)
		return
	}
	h.saved(r, span, logger, "put", s)
	handlers.WriteJSON(w, http.StatusOK, newResponse(s))
}

// ToggleMusic handles POST /settings/music/toggle
func (h *Handlers) ToggleMusic(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "settings.toggle_music")
	defer span.End()
	logger := observability.LoggerWithTrace(ctx)

	s, err := h.svc.ToggleMusic(ctx)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "toggle_music", "failed to save settings", err, http.StatusInternalServerError, w)
		return
	}
	h.saved(r, span, logger, "toggle_music", s)
	handlers.WriteJSON(w, http.StatusOK, newResponse(s))
}

func (h *Handlers) saved(r *http.Request, span trace.Span, logger *zap.Logger, opName string, s Settings) {
	ctx := r.Context()
	updateCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", opName)))

	span.SetAttributes(
		attribute.Bool("settings.music_enabled", s.MusicEnabled),
		attribute.Float64("settings.music_volume", s.MusicVolume),
		attribute.Float64("settings.global_volume", s.GlobalVolume),
	)
	span.SetStatus(codes.Ok, "")

	logger.Info("settings updated",
		zap.String("operation", opName),
		zap.Bool("music_enabled", s.MusicEnabled),
		zap.Float64("music_volume", s.MusicVolume),
		zap.Float64("fx_volume", s.FXVolume),
		zap.Float64("global_volume", s.GlobalVolume),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)
}
