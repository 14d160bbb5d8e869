package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/aeromission/internal/analysis"
	"github.com/yegors/aeromission/internal/api"
	"github.com/yegors/aeromission/internal/casefile"
	"github.com/yegors/aeromission/internal/config"
	"github.com/yegors/aeromission/internal/mission"
	"github.com/yegors/aeromission/internal/storage/sqlite"
	"github.com/yegors/aeromission/internal/websocket"
	"github.com/yegors/aeromission/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting aeromission server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("solver", cfg.Solver.AVLPath),
	)

	// Create run storage
	runStorage, err := sqlite.NewRunStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer runStorage.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create WebSocket server
	var wsServer *websocket.Server
	opts := analysis.Options{
		Store:     runStorage,
		NewAero:   analysis.AVLFactory(cfg.AVL(), log),
		CacheSize: cfg.Solver.CoefficientCacheSize,
	}
	if cfg.WebSocket.Enabled {
		wsServer = websocket.NewServer(log)
		go wsServer.Run(ctx)
		opts.Publisher = wsServer
	}

	// Optional default mission profile
	if cfg.Mission.DefaultProfile != "" {
		profile, err := loadProfile(cfg.Mission.DefaultProfile)
		if err != nil {
			log.Error("Failed to load default profile", logger.String("path", cfg.Mission.DefaultProfile), logger.Error(err))
			os.Exit(1)
		}
		opts.DefaultProfile = profile
		log.Info("Using configured default profile", logger.Int("segments", len(profile)))
	}

	analysisService, err := analysis.NewService(opts, log)
	if err != nil {
		log.Error("Failed to create analysis service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(analysisService, wsServer, log)

	readTimeout, writeTimeout, idleTimeout := cfg.ServerTimeouts()
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", logger.String("addr", server.Addr), logger.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	// Stops the WebSocket hub
	cancel()

	log.Info("Server fully stopped")
}

// loadProfile reads the mission of a case file
func loadProfile(path string) ([]mission.Segment, error) {
	c, err := casefile.Load(path)
	if err != nil {
		return nil, err
	}
	if len(c.Mission) == 0 {
		return nil, fmt.Errorf("%s defines no mission", path)
	}
	return mission.BuildProfile(c.Mission)
}
