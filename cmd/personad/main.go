package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/runixer/personad/internal/app"
	"github.com/runixer/personad/internal/config"
	"github.com/runixer/personad/internal/storage"
	"github.com/runixer/personad/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Version = "dev"

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "personad",
		Name:      "build_info",
		Help:      "Build information with version and Go runtime details",
	},
	[]string{"version", "go_version"},
)

func init() {
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

func runHealthcheck(configPath string) int {
	// Try to load config to get the port
	// We suppress errors here because if config fails, we might still want to try default port
	// or maybe the app is running with env vars only.
	cfg, err := config.Load(configPath)
	port := "8080"
	if err == nil && cfg.Server.ListenPort != "" {
		port = cfg.Server.ListenPort
	} else {
		// Fallback to env var if config load failed
		if envPort := os.Getenv("PERSONAD_SERVER_PORT"); envPort != "" {
			port = envPort
		}
	}

	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck returned status: %d\n", resp.StatusCode)
		return 1
	}
	return 0
}

func main() {
	// Set up JSON logging early (before config load) with default INFO level.
	// Will be reconfigured with correct level after config is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := app.LoadEnv(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	healthcheck := flag.Bool("healthcheck", false, "run healthcheck and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("personad", Version)
		os.Exit(0)
	}

	if *healthcheck {
		os.Exit(runHealthcheck(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Can't use logger here, because it's not initialized yet
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		slog.Warn("unknown log level, defaulting to info", "level", cfg.Log.Level)
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("Config loaded successfully", "personas", len(cfg.Personas))

	var store *storage.SQLiteStore
	if cfg.ReplyLog.Enabled {
		store, err = storage.NewSQLiteStore(logger, cfg.Database.Path)
		if err != nil {
			logger.Error("failed to create storage", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := store.Init(); err != nil {
			logger.Error("failed to initialize storage", "error", err)
			os.Exit(1)
		}
		logger.Info("Database initialized successfully.")
	} else {
		logger.Info("Reply log is disabled, running without storage.")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Replies surface through the log by default; the /send endpoint reports
	// only how many personas picked the message up.
	sink := func(ctx context.Context, personaName, reply string, err error) {
		if err != nil {
			logger.Warn("persona reply failed", "persona", personaName, "error", err)
			return
		}
		logger.Info("persona reply", "persona", personaName, "reply", reply)
	}

	services, err := app.SetupServices(ctx, logger, cfg, store, sink)
	if err != nil {
		logger.Error("failed to set up services", "error", err)
		os.Exit(1)
	}
	defer services.Close()
	logger.Info("Services created successfully.", "personas", len(services.Personas))

	var replyRepo storage.ReplyLogRepository
	var maintainer web.Maintainer
	if store != nil {
		replyRepo = store
		maintainer = store
	}

	webServer := web.NewServer(logger, cfg, replyRepo, services.Router, maintainer)
	srvDone := make(chan struct{})
	go func() {
		defer close(srvDone)
		if err := webServer.Start(ctx); err != nil {
			logger.Error("web server failed", "error", err)
			cancel() // Trigger graceful shutdown instead of os.Exit
		}
	}()

	logger.Info("Starting Personad", "version", Version)

	<-ctx.Done()
	logger.Info("Shutting down...")

	// Let in-flight persona replies finish before tearing down clients
	services.Router.Wait()
	logger.Info("Reply tasks drained")

	<-srvDone
	logger.Info("Web server stopped")
}
