package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"disk-spinner/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel instruments, initialised once via InitMetrics().
var (
	answersCounter   metric.Int64Counter
	pointsCounter    metric.Int64Counter
	streakHistogram  metric.Int64Histogram
	targetsCounter   metric.Int64Counter
	startedCounter   metric.Int64Counter
	finishedCounter  metric.Int64Counter
	requestHistogram metric.Float64Histogram
	errorCounter     metric.Int64Counter
	finalScoreGauge  metric.Int64Gauge
)

// InitMetrics registers the game instruments. Call this once at startup
// (after observability.InitTelemetry).
func InitMetrics() error {
	meter := otel.Meter("game")

	var err error

	answersCounter, err = meter.Int64Counter("game.answers.total",
		metric.WithDescription("Total number of submitted answers"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		return fmt.Errorf("creating answers counter: %w", err)
	}

	pointsCounter, err = meter.Int64Counter("game.points.total",
		metric.WithDescription("Total number of points awarded"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("creating points counter: %w", err)
	}

	streakHistogram, err = meter.Int64Histogram("game.streak",
		metric.WithDescription("Streak length after each correct answer"),
		metric.WithUnit("{answer}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 8, 10, 15, 20),
	)
	if err != nil {
		return fmt.Errorf("creating streak histogram: %w", err)
	}

	targetsCounter, err = meter.Int64Counter("game.targets.generated.total",
		metric.WithDescription("Total number of targets drawn"),
		metric.WithUnit("{target}"),
	)
	if err != nil {
		return fmt.Errorf("creating targets counter: %w", err)
	}

	startedCounter, err = meter.Int64Counter("game.sessions.started.total",
		metric.WithDescription("Total number of games started"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return fmt.Errorf("creating started counter: %w", err)
	}

	finishedCounter, err = meter.Int64Counter("game.sessions.finished.total",
		metric.WithDescription("Total number of games finished"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return fmt.Errorf("creating finished counter: %w", err)
	}

	requestHistogram, err = meter.Float64Histogram("game.request.duration",
		metric.WithDescription("Duration of game requests in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 5, 10, 50, 100),
	)
	if err != nil {
		return fmt.Errorf("creating request histogram: %w", err)
	}

	errorCounter, err = meter.Int64Counter("game.errors.total",
		metric.WithDescription("Total number of game errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("creating error counter: %w", err)
	}

	finalScoreGauge, err = meter.Int64Gauge("game.last_final_score",
		metric.WithDescription("Final score of the last finished game"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("creating final score gauge: %w", err)
	}

	return nil
}

func comboAttrs(op, diff string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("difficulty", diff),
	)
}

// ---------------------------------------------------------------------------
// Prometheus collectors
// ---------------------------------------------------------------------------

// Collectors are the game series scraped from /metrics. They are kept
// separate from the OTel instruments so /metrics is useful without an OTLP
// collector.
type Collectors struct {
	sessions atomic.Pointer[session.Manager]

	activeSessions prometheus.GaugeFunc
	answers        *prometheus.CounterVec
	finished       *prometheus.CounterVec
}

func NewCollectors() *Collectors {
	c := &Collectors{}
	c.activeSessions = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "disk_spinner",
		Name:      "active_sessions",
		Help:      "Number of sessions held in memory.",
	}, c.countSessions)
	c.answers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disk_spinner",
		Name:      "answers_total",
		Help:      "Submitted answers by operation, difficulty and outcome.",
	}, []string{"operation", "difficulty", "correct"})
	c.finished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "disk_spinner",
		Name:      "games_finished_total",
		Help:      "Finished games by operation, difficulty and whether they set a high score.",
	}, []string{"operation", "difficulty", "new_high_score"})
	return c
}

// TrackSessions points the active sessions gauge at m.
func (c *Collectors) TrackSessions(m *session.Manager) {
	c.sessions.Store(m)
}

func (c *Collectors) countSessions() float64 {
	m := c.sessions.Load()
	if m == nil {
		return 0
	}
	return float64(m.Len())
}

// Register adds the collectors to reg. Collectors that are already
// registered are not an error.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.activeSessions, c.answers, c.finished} {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func (c *Collectors) observeAnswer(op, diff string, correct bool) {
	if c == nil {
		return
	}
	c.answers.WithLabelValues(op, diff, strconv.FormatBool(correct)).Inc()
}

// ObserveFinish records a finished game. Pass it to session.OnFinish.
func (c *Collectors) ObserveFinish(ctx context.Context, v session.View) {
	if v.Result == nil {
		return
	}
	attrs := comboAttrs(v.Operation, v.Difficulty)
	finishedCounter.Add(ctx, 1, attrs)
	finalScoreGauge.Record(ctx, int64(v.Result.Score), attrs)

	if c == nil {
		return
	}
	c.finished.WithLabelValues(v.Operation, v.Difficulty, strconv.FormatBool(v.Result.NewHighScore)).Inc()
}
