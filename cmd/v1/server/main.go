package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovidtrivia/quizroom/internal/v1/api"
	"github.com/ovidtrivia/quizroom/internal/v1/bus"
	"github.com/ovidtrivia/quizroom/internal/v1/config"
	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/health"
	"github.com/ovidtrivia/quizroom/internal/v1/logging"
	"github.com/ovidtrivia/quizroom/internal/v1/middleware"
	"github.com/ovidtrivia/quizroom/internal/v1/persistence"
	"github.com/ovidtrivia/quizroom/internal/v1/questions"
	"github.com/ovidtrivia/quizroom/internal/v1/ratelimit"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/ovidtrivia/quizroom/internal/v1/session"
	"github.com/ovidtrivia/quizroom/internal/v1/socket"
	"github.com/ovidtrivia/quizroom/internal/v1/timer"
	"github.com/ovidtrivia/quizroom/internal/v1/tracing"
	"github.com/ovidtrivia/quizroom/internal/v1/transport"
)

func main() {
	// Load .env for local development; try a few relative paths the way the
	// teacher's cmd/v1/session/main.go does, since `go run` and a built
	// binary are invoked from different working directories.
	envPaths := []string{".env", "../../../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv == "development"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var tracerShutdown func(context.Context) error
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := tracing.InitTracer(ctx, "quizroom", endpoint)
		if err != nil {
			logging.Warn(ctx, "tracing disabled: failed to initialize exporter")
		} else {
			tracerShutdown = tp.Shutdown
		}
	}

	var redisService *bus.Service
	if cfg.RedisEnabled {
		redisService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Warn(ctx, "redis unavailable, continuing without it")
			redisService = nil
		}
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		logging.Warn(ctx, "failed to create state directory")
	}
	roomStore := persistence.NewRoomStore(filepath.Join(cfg.StateDir, cfg.RoomStateFile))
	sessionStore := persistence.NewSessionStore(filepath.Join(cfg.StateDir, cfg.SessionStateFile))

	sessions := session.NewStore(sessionStore)
	sessions.Restore(sessionStore.Load())

	provider := questions.NewProvider(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeoutSeconds)

	// The registry needs its broadcaster/timer collaborators before it can be
	// constructed, but the hub and supervisor need the registry. hubRef lets
	// all three close over each other without an import cycle: the registry
	// only ever sees the Broadcaster/TimerController interfaces.
	hubRef := &hubHolder{}
	registry := room.NewRegistry(hubRef, hubRef, roomStore)
	registry.Restore(roomStore.Load())

	supervisor := timer.NewSupervisor(registry, hubRef)
	hubRef.timers = supervisor

	binder := socket.NewBinder(registry)
	hub := transport.NewHub(binder, registry, provider, allowedOrigins(cfg.CorsAllowOrigins))
	hubRef.hub = hub

	rateLimiter, err := ratelimit.NewRateLimiter(cfg, redisService.Client())
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	healthHandler := health.NewHandler(redisService, cfg.StateDir, provider)

	apiHandlers := api.NewHandlers(registry, sessions, provider, hub, "", cfg.GoEnv != "development")

	if cfg.GoEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	if cfg.CorsAllowOrigins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins(cfg.CorsAllowOrigins)
	}
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, middleware.HeaderXCorrelationID)
	router.Use(cors.New(corsCfg))

	router.Use(rateLimiter.GlobalMiddleware())

	router.GET("/healthz/live", healthHandler.Liveness)
	router.GET("/healthz/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api/v1")
	apiHandlers.RegisterRoutes(apiGroup)

	router.GET("/ws", func(c *gin.Context) {
		if !rateLimiter.CheckWebSocket(c) {
			return
		}
		hub.ServeWs(c)
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := supervisor.Shutdown(shutdownCtx); err != nil {
		slog.Warn("timer supervisor shutdown incomplete", "error", err)
	}
	hub.Shutdown()
	if tracerShutdown != nil {
		_ = tracerShutdown(shutdownCtx)
	}

	logging.Info(ctx, "server exited")
}

// hubHolder breaks the construction-order cycle between room.Registry
// (which needs a Broadcaster/TimerController at construction time) and
// transport.Hub/timer.Supervisor (which need the registry as their Engine).
// It forwards every call to the real hub/timer once they exist; both are
// assigned before the registry is ever mutated by a request.
type hubHolder struct {
	hub    *transport.Hub
	timers *timer.Supervisor
}

func (h *hubHolder) Emit(pin string, event events.Name, data any, skipParticipantID string) {
	h.hub.Emit(pin, event, data, skipParticipantID)
}

func (h *hubHolder) EmitTo(pin, participantID string, event events.Name, data any) {
	h.hub.EmitTo(pin, participantID, event, data)
}

func (h *hubHolder) Restart(pin string) {
	h.timers.Restart(pin)
}

func (h *hubHolder) Cancel(pin string) {
	h.timers.Cancel(pin)
}

func allowedOrigins(csv string) []string {
	if csv == "" || csv == "*" {
		return []string{"*"}
	}
	out := make([]string, 0, 4)
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
