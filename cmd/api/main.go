package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"disk-spinner/internal/config"
	"disk-spinner/internal/game"
	"disk-spinner/internal/observability"
	"disk-spinner/internal/prefs"
	"disk-spinner/internal/puzzle"
	"disk-spinner/internal/server"
	"disk-spinner/internal/session"
	"disk-spinner/internal/settings"
	"disk-spinner/internal/telegram"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loadDotEnv(); err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Logger
	if err := observability.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	defer observability.SyncLogger()
	logger := observability.Logger

	// Tracing, metrics, logs
	observability.SetServiceName(cfg.ServiceName)
	telemetryShutdown, err := initTelemetry(ctx, cfg.OTelEnabled)
	if err != nil {
		logger.Fatal("init telemetry", zap.Error(err))
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()
	// InitLogging may have replaced the logger with an OTLP tee.
	logger = observability.Logger

	if err := puzzle.SelfCheck(); err != nil {
		logger.Fatal("disk pool table", zap.Error(err))
	}

	// Preferences
	store, err := prefs.Open(ctx, cfg.PrefsDriver, cfg.PrefsDSN)
	if err != nil {
		logger.Fatal("open preference store", zap.String("driver", cfg.PrefsDriver), zap.Error(err))
	}
	defer store.Close()

	// Sessions
	collectors := game.NewCollectors()
	opts := []session.ManagerOption{
		session.WithDuration(cfg.GameDuration),
		session.WithRetention(cfg.SessionRetention),
		session.WithLogger(logger),
		session.OnFinish(collectors.ObserveFinish),
	}
	if cfg.RandomSeed != nil {
		opts = append(opts, session.WithRand(puzzle.NewSeededRand(*cfg.RandomSeed)))
	}
	sessions := session.NewManager(store, opts...)
	collectors.TrackSessions(sessions)
	if err := collectors.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("register collectors", zap.Error(err))
	}
	go sessions.Run(ctx, cfg.SweepInterval)

	// Telegram
	if cfg.TelegramEnabled() {
		if err := startTelegram(ctx, cfg.TelegramToken, sessions, logger); err != nil {
			logger.Fatal("start telegram bot", zap.Error(err))
		}
	}

	// Router
	router := server.NewRouter(server.Deps{
		Game:     game.NewHandlers(sessions, store, collectors),
		Settings: settings.NewHandlers(settings.NewService(store)),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server started",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("prefs_driver", cfg.PrefsDriver),
			zap.Duration("game_duration", cfg.GameDuration),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	waitForShutdown(ctx, srv)
}

func startTelegram(ctx context.Context, token string, sessions *session.Manager, logger *zap.Logger) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}
	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	router := telegram.NewRouter(bot, sessions, logger.Named("telegram"))
	go telegram.Poll(ctx, bot, func(upd tgbotapi.Update) {
		router.HandleUpdate(ctx, upd)
	}, logger.Named("telegram"))
	return nil
}

func waitForShutdown(ctx context.Context, srv *http.Server) {

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Logger.Warn("server shutdown", zap.Error(err))
	}
	observability.Logger.Info("server stopped")
}
