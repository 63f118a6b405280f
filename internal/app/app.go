// Package app boots the server process: configuration, logging, the room
// hub, and the HTTP surface, with a graceful shutdown path tied to the
// caller's context.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	server "redoubt/server"
	"redoubt/server/internal/config"
	"redoubt/server/internal/content"
	servernet "redoubt/server/internal/net"
	"redoubt/server/internal/observability"
	"redoubt/server/internal/sim"
	"redoubt/server/internal/telemetry"
	"redoubt/server/logging"
	loggingSinks "redoubt/server/logging/sinks"
)

// Config carries the process-level knobs that come from flags rather than
// the config file.
type Config struct {
	ConfigPath    string
	Observability observability.Config
}

// Run boots the server and blocks until ctx is cancelled or the listener
// fails. Shutdown drains in-flight HTTP requests, stops every room loop, and
// flushes the logging router before returning.
func Run(ctx context.Context, appCfg Config) error {
	cfg, err := loadConfig(appCfg.ConfigPath)
	if err != nil {
		return err
	}

	stdLogger := log.Default()
	telemetryLogger := telemetry.WrapLogger(stdLogger)

	metrics := logging.NewMetrics()
	router, zapLogger, err := buildLogging(cfg.Logging, metrics)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		if zapLogger != nil {
			_ = zapLogger.Sync()
		}
	}()

	library, err := loadLibrary(cfg.Match.ContentOverride)
	if err != nil {
		return fmt.Errorf("load content catalog: %w", err)
	}
	telemetryLogger.Printf("content catalog loaded hash=%s", library.Hash())

	seed := fmt.Sprintf("%s-%d", cfg.Server.Name, cfg.Server.StartTime)
	hub := server.NewHub(library, server.HubConfig{
		SimConfig:  cfg.RoomConfig(seed),
		LoopConfig: cfg.LoopConfig(),
		Deps: sim.Deps{
			Logger:    telemetryLogger,
			Clock:     logging.SystemClock{},
			Publisher: router,
			Metrics:   telemetry.WrapMetrics(metrics),
		},
		WriteWait:         cfg.Network.WriteTimeout,
		HeartbeatInterval: cfg.Network.HeartbeatInterval,
		DisconnectAfter:   cfg.Network.DisconnectAfter,
	})
	defer hub.Close()

	observabilityCfg := appCfg.Observability
	if raw := os.Getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			observabilityCfg.EnablePprofTrace = value
		} else {
			telemetryLogger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:     filepath.Clean(cfg.Server.ClientDir),
		Logger:        stdLogger,
		TickRate:      cfg.Match.TickRate,
		Heartbeat:     cfg.Network.HeartbeatInterval,
		Observability: observabilityCfg,
	})

	srv := &http.Server{Addr: cfg.Network.BindAddress, Handler: handler}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			telemetryLogger.Printf("http shutdown: %v", err)
		}
	}()

	telemetryLogger.Printf("server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	<-shutdownDone
	return nil
}

// loadConfig reads the TOML file when a path was given and falls back to
// defaults when it was not, so the server boots with no file at all.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("REDOUBT_CONFIG")
	}
	if path == "" {
		cfg := config.Defaults()
		cfg.Server.StartTime = time.Now().Unix()
		return cfg, nil
	}
	return config.Load(path)
}

// loadLibrary builds the content catalog, applying an operator override file
// when one is configured.
func loadLibrary(overridePath string) (*content.Library, error) {
	if overridePath != "" {
		return content.LoadOverrides(overridePath)
	}
	return content.NewLibrary()
}

// buildLogging assembles the event router from the logging section. The
// console format writes human-readable lines; json routes events through a
// production zap logger instead. When an event log path is configured the
// match event stream is additionally appended there as NDJSON.
func buildLogging(cfg config.LoggingConfig, metrics *logging.Metrics) (*logging.Router, *zap.Logger, error) {
	logCfg := logging.DefaultConfig()
	logCfg.MinimumSeverity = parseSeverity(cfg.Level)

	var (
		sinks     []logging.NamedSink
		zapLogger *zap.Logger
	)
	switch cfg.Format {
	case "json":
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		zapLogger = logger
		logCfg.EnabledSinks = []string{"zap"}
		sinks = append(sinks, logging.NamedSink{Name: "zap", Sink: loggingSinks.NewZap(logger)})
	default:
		logCfg.EnabledSinks = []string{"console"}
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console)})
	}

	if cfg.EventLogPath != "" {
		file, err := os.OpenFile(cfg.EventLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open event log %s: %w", cfg.EventLogPath, err)
		}
		logCfg.JSON.FilePath = cfg.EventLogPath
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(file, logCfg.JSON)})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, metrics, sinks)
	if err != nil {
		return nil, nil, err
	}
	return router, zapLogger, nil
}

func parseSeverity(level string) logging.Severity {
	switch level {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
