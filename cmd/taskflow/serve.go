package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/api"
	"github.com/goclaw/taskflow/pkg/api/events"
	"github.com/goclaw/taskflow/pkg/api/handlers"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/metrics"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/telemetry/tracing"
	"github.com/goclaw/taskflow/pkg/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := map[string]interface{}{}
			if port != 0 {
				extra["server.port"] = port
			}
			return runServe(cmd.Context(), opts, extra)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server port")
	return cmd
}

func runServe(parent context.Context, opts *rootOptions, extra map[string]interface{}) error {
	if parent == nil {
		parent = context.Background()
	}
	loader := config.NewLoader()
	cfg, err := opts.load(loader, extra)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	logger.SetGlobal(log)

	log.Info("Starting taskflow",
		"build", version.Get().String(),
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App, tracing.WithLogger(log.With("component", "tracing")))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Warn("Error shutting down tracing", "error", err)
		}
	}()

	metricsManager := metrics.NewManager(metricsConfig(cfg))
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	rt, err := newRuntime(ctx, cfg, log, metricsManager)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("Error closing runtime", "error", err)
		}
	}()
	if err := rt.seed(ctx); err != nil {
		return err
	}

	// Lifecycle events: memory bus -> broadcaster -> websocket clients.
	sub, err := rt.bus.Subscribe(eventbus.AllSubjects(), 256)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	defer sub.Close()
	broadcaster := events.NewBroadcaster()
	defer broadcaster.Close()
	wsHandler := handlers.NewWebSocketHandler(log.With("component", "websocket"), handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	defer wsHandler.Close()
	go broadcaster.Bridge(ctx, sub, eventbus.NewEnvelopeConsumer(rt.schemas), log)
	go broadcaster.Forward(ctx, wsHandler.Forward)

	healthHandler := handlers.NewHealthHandler(map[string]handlers.Probe{
		"storage": storageProbe(rt.store),
		"events":  publisherProbe(rt.publisher),
	}, func() map[string]any {
		return map[string]any{
			"storage":          cfg.Storage.Type,
			"events":           cfg.Events.Type,
			"autoFix":          rt.validation.AutoFixEnabled(),
			"websocketClients": wsHandler.Connections(),
		}
	})

	apiHandlers := &api.Handlers{
		Workflow:   handlers.NewWorkflowHandler(rt.workflows, rt.dispatcher, log),
		Rules:      handlers.NewRuleHandler(rt.validation, log),
		Validation: handlers.NewValidationHandler(rt.validation, log),
		Health:     healthHandler,
		Events:     wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	if path := loader.File(); path != "" {
		watcher, err := config.NewWatcher(path, loader,
			config.WithOverrides(opts.overrides(extra)),
			config.WithWatcherLogger(log.With("component", "config")),
		)
		if err != nil {
			log.Warn("Config hot reload disabled", "error", err)
		} else {
			watcher.OnChange(hotReload(cfg, log, rt))
			go func() {
				if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
		}
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)
	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	healthHandler.SetReady(true)
	log.Info("taskflow is running",
		"http_addr", httpServer.Addr(),
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
		"events", cfg.Events.Type,
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case runErr = <-serverErrChan:
		log.Error("HTTP server error", "error", runErr)
	}

	healthHandler.SetReady(false)
	if err := httpServer.Shutdown(context.Background()); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}
	// Stop the event pumps before their channels are closed.
	stop()

	log.Info("taskflow stopped gracefully")
	return runErr
}

func metricsConfig(cfg *config.Config) metrics.Config {
	m := metrics.DefaultConfig()
	m.Enabled = cfg.Metrics.Enabled
	m.Port = cfg.Metrics.Port
	m.Path = cfg.Metrics.Path
	return m
}

func storageProbe(store storage.Storage) handlers.Probe {
	return func(ctx context.Context) error {
		_, _, err := store.ListWorkflows(ctx, &storage.WorkflowFilter{Limit: 1})
		return err
	}
}

func publisherProbe(p *eventbus.Publisher) handlers.Probe {
	return func(context.Context) error {
		if p.Degraded() {
			return errors.New("event publisher degraded")
		}
		return nil
	}
}

// hotReload applies the settings that can change without a restart and
// warns about the rest.
func hotReload(initial *config.Config, log logger.Logger, rt *runtime) func(*config.Config) {
	var mu sync.Mutex
	last := initial
	return func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		current, next := config.ReloadableFrom(last), config.ReloadableFrom(cfg)
		if next.LogLevel != current.LogLevel {
			log.SetLevel(logger.ParseLevel(next.LogLevel))
			log.Info("Log level changed", "level", next.LogLevel)
		}
		if next.EnableAutoFix != current.EnableAutoFix {
			rt.validation.SetAutoFix(next.EnableAutoFix)
			log.Info("Auto-fix toggled", "enabled", next.EnableAutoFix)
		}
		if keys := config.RestartRequired(last, cfg); len(keys) > 0 {
			log.Warn("Changed settings need a restart to apply", "keys", keys)
		}
		last = cfg
	}
}

