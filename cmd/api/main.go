package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/support-relay/relay/internal/api/http"
	"github.com/support-relay/relay/internal/api/http/handlers"
	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/config"
	"github.com/support-relay/relay/internal/events"
	"github.com/support-relay/relay/internal/observability"
	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/realtime"
	"github.com/support-relay/relay/internal/repository"
	"github.com/support-relay/relay/internal/service"
	"github.com/support-relay/relay/internal/upload"
	"github.com/support-relay/relay/internal/worker"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer backend.Close()

	ticketRegistry := repository.NewTicketRegistry()
	moderatorDirectory := repository.NewModeratorDirectory()
	ticketCount, moderatorCount, err := persistence.LoadInto(ctx, backend, ticketRegistry, moderatorDirectory)
	if err != nil {
		logger.Fatal("failed to load persisted state", zap.Error(err))
	}
	logger.Info("state loaded", zap.Int("tickets", ticketCount), zap.Int("moderators", moderatorCount))

	metrics := observability.NewMetrics()
	flusher := persistence.NewFlusher(persistence.FlusherDependencies{
		Backend:    backend,
		Tickets:    ticketRegistry,
		Moderators: moderatorDirectory,
		Debounce:   cfg.Storage.Debounce(),
		Logger:     logger,
		Metrics:    metrics,
	})
	defer flusher.FlushOnPanic()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	var sessions auth.SessionStore = auth.StatelessSessions{}
	if redis != nil {
		sessions = auth.NewRedisSessionStore(redis.Client)
	}

	router := events.NewRouter()
	ticketService := service.NewTicketService(service.TicketDependencies{
		Tickets:    ticketRegistry,
		Moderators: moderatorDirectory,
		Scheduler:  flusher,
		Router:     router,
		Logger:     logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()),
		Codes:      auth.NewCodeVerifier(cfg.Auth.ModeratorCode, cfg.Auth.ModeratorCodeHash),
		Sessions:   sessions,
		Moderators: moderatorDirectory,
		Scheduler:  flusher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(logger, cfg.Notification)
	worker.StartNotificationWorker(ctx, ticketService, notificationService, flusher)

	storage, err := newUploadStorage(ctx, cfg.Upload)
	if err != nil {
		logger.Fatal("failed to init upload storage", zap.String("backend", cfg.Upload.Backend), zap.Error(err))
	}
	uploadService := upload.NewService(storage, int64(cfg.Upload.MaxBytes), logger)

	hub := realtime.NewHub(realtime.HubDependencies{
		Tickets:  ticketService,
		Verifier: authService,
		Flusher:  flusher,
		Logger:   logger,
		Metrics:  metrics,
	})

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             cfg.Upload.MaxBytes + 1024*1024,
		ErrorHandler:          httptransport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, backend, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Moderators:     handlers.NewModeratorHandler(authService),
		Uploads:        handlers.NewUploadHandler(uploadService),
		Hub:            hub,
		AuthMiddleware: auth.NewAuthMiddleware(authService),
		PublicDir:      cfg.App.PublicDir,
	}
	if local, ok := storage.(*upload.LocalStorage); ok {
		routes.UploadDir = local.Dir()
		routes.UploadPrefix = cfg.Upload.URLPrefix
	}
	httptransport.RegisterRoutes(app, routes)

	ln, port, err := listenFreePort(cfg.App)
	if err != nil {
		logger.Fatal("no free port", zap.Int("from", cfg.App.Port), zap.Error(err))
	}
	logger.Info("support relay listening", zap.String("addr", cfg.App.Addr(port)))

	go func() {
		if err := app.Listener(ln); err != nil {
			logger.Error("fiber listener stopped", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := flusher.FlushNow(flushCtx); err != nil {
		logger.Error("final flush failed", zap.Error(err))
	}
}

func newUploadStorage(ctx context.Context, cfg config.UploadConfig) (upload.Storage, error) {
	if cfg.Backend == config.UploadMinio {
		return upload.NewMinioStorage(ctx, cfg)
	}
	return upload.NewLocalStorage(cfg.Dir, cfg.URLPrefix)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
