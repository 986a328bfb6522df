package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civic-board/internal/config"
	"civic-board/internal/engine"
	"civic-board/internal/middleware"
	"civic-board/internal/store"
	"civic-board/internal/utils"
	ws "civic-board/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
)

// Server holds all dependencies
type Server struct {
	system   *actor.ActorSystem
	context  *actor.RootContext
	engine   *engine.Engine
	store    store.Store
	verifier *middleware.TokenVerifier
	hub      *ws.Hub
	metrics  *utils.MetricsCollector
	logger   *slog.Logger
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	metrics := utils.NewMetricsCollector()

	mongoStore, err := store.NewMongoStore(cfg.Database.URI, cfg.Database.Name, logger)
	if err != nil {
		logger.Error("failed to connect to store", "err", err)
		os.Exit(1)
	}
	if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
		logger.Error("failed to ensure indexes", "err", err)
		os.Exit(1)
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	system := actor.NewActorSystem()
	boardEngine := engine.NewEngine(system, mongoStore, hub, metrics, logger)

	server := &Server{
		system:   system,
		context:  system.Root,
		engine:   boardEngine,
		store:    mongoStore,
		verifier: middleware.NewTokenVerifier(cfg.Auth.TokenSecret),
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)
	mux.HandleFunc("/projects", server.handleProjects)
	mux.HandleFunc("/project", server.handleProject)
	mux.HandleFunc("/project/vote", server.handleVote)
	mux.HandleFunc("/project/vote/status", server.handleVoteStatus)
	mux.HandleFunc("/comments", server.handleComments)
	mux.HandleFunc("/comment", server.handleComment)
	mux.HandleFunc("/comment/pin", server.handlePinComment)
	mux.HandleFunc("/comment/resolve", server.handleResolveComment)
	mux.HandleFunc("/notifications", server.handleNotifications)
	mux.HandleFunc("/notifications/read", server.handleMarkRead)
	mux.HandleFunc("/notifications/readAll", server.handleMarkAllRead)
	mux.HandleFunc("/profile", server.handleProfile)
	mux.HandleFunc("/ws", server.handleWebSocket)

	handler := middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins))(
		server.verifier.Middleware(mux),
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: handler,
	}

	go func() {
		logger.Info("starting server", "addr", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Block until interrupted, then drain connections and release the
	// store before exiting.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "err", err)
	}
	if err := mongoStore.Close(shutdownCtx); err != nil {
		logger.Warn("store close failed", "err", err)
	}
}
