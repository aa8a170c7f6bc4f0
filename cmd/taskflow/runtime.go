package main

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/action"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/metrics"
	"github.com/goclaw/taskflow/pkg/seed"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/storage/badger"
	"github.com/goclaw/taskflow/pkg/storage/memory"
	"github.com/goclaw/taskflow/pkg/storage/redis"
	"github.com/goclaw/taskflow/pkg/validation"
	"github.com/goclaw/taskflow/pkg/workflow"
)

// runtime is the set of components every command works with.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Manager

	store      storage.Storage
	bus        *eventbus.MemoryBus
	schemas    *eventbus.SchemaRouter
	publisher  *eventbus.Publisher
	emitter    *eventbus.AsyncEmitter
	workflows  *workflow.Engine
	validation *validation.Engine
	dispatcher *action.Dispatcher

	closers []func() error
}

// newRuntime opens storage and the event transport and builds the engines.
// The caller must Close the runtime.
func newRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, mgr *metrics.Manager) (*runtime, error) {
	if mgr == nil {
		mgr = metrics.NoOpManager()
	}
	rt := &runtime{cfg: cfg, log: log, metrics: mgr}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	if err := rt.openEvents(cfg, log); err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.workflows = workflow.New(store,
		workflow.WithLogger(log.With("component", "workflow")),
		workflow.WithMetrics(mgr),
		workflow.WithEvents(rt.emitter),
		workflow.WithStatusField(cfg.Engine.StatusField),
	)
	rt.validation = validation.New(store,
		validation.WithLogger(log.With("component", "validation")),
		validation.WithMetrics(mgr),
		validation.WithEvents(rt.emitter),
		validation.WithAutoFix(cfg.Engine.EnableAutoFix),
	)
	rt.dispatcher = action.NewDispatcher(
		action.WithLogger(log.With("component", "action")),
		action.WithMetrics(mgr),
		action.WithEvents(rt.emitter),
	)
	return rt, nil
}

func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "badger":
		store, err := badger.NewBadgerStorage(&badger.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
		})
		if err != nil {
			return nil, fmt.Errorf("open badger storage: %w", err)
		}
		log.Info("Initialized Badger storage", "path", cfg.Storage.Badger.Path)
		return store, nil
	case "redis":
		client := newRedisClient(cfg.Storage.Redis)
		store, err := redis.NewRedisStorage(ctx, client, &redis.Config{
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		log.Info("Initialized Redis storage", "address", cfg.Storage.Redis.Address)
		return store, nil
	case "memory", "":
		log.Info("Initialized memory storage")
		return memory.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newRedisClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// openEvents builds the publisher. The in-process bus always receives every
// event so websocket subscribers see them whatever the external transport.
func (rt *runtime) openEvents(cfg *config.Config, log logger.Logger) error {
	rt.bus = eventbus.NewMemoryBus()
	rt.closers = append(rt.closers, rt.bus.Close)
	rt.schemas = eventbus.NewDefaultSchemaRouter()

	var transport eventbus.Transport = rt.bus
	var external eventbus.Transport
	switch cfg.Events.Type {
	case "redis":
		client := newRedisClient(cfg.Storage.Redis)
		rt.closers = append(rt.closers, client.Close)
		t, err := eventbus.NewRedisTransport(client)
		if err != nil {
			return err
		}
		external = t
	case "nats":
		t, err := eventbus.DialNATS(eventbus.NATSConfig{
			URL:  cfg.Events.NATS.URL,
			Name: cfg.Events.NATS.Name,
		})
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, t.Close)
		external = t
	}
	if external != nil {
		tee, err := eventbus.Tee(external, rt.bus)
		if err != nil {
			return err
		}
		tee.OnMirrorError = func(subject string, err error) {
			log.Warn("local event mirror failed", "subject", subject, "error", err)
		}
		transport = tee
		log.Info("Publishing events", "transport", cfg.Events.Type)
	}

	retry := eventbus.DefaultRetryConfig()
	retry.MaxRetries = cfg.Events.Retry.MaxRetries
	if cfg.Events.Retry.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.Events.Retry.InitialBackoff
	}
	if cfg.Events.Retry.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.Events.Retry.MaxBackoff
	}

	publisher, err := eventbus.NewPublisher(cfg.Events.NodeID, transport,
		eventbus.WithRetry(retry),
		eventbus.WithTelemetry(rt.metrics),
		eventbus.WithSchemaRouter(rt.schemas),
	)
	if err != nil {
		return err
	}
	rt.publisher = publisher
	// Engines hand events to the queue; only its goroutine waits on the
	// transport and the retry backoff.
	rt.emitter = eventbus.NewAsyncEmitter(publisher,
		eventbus.WithQueueSize(cfg.Events.QueueSize),
		eventbus.WithDropTelemetry(rt.metrics),
		eventbus.WithErrorHandler(func(ev eventbus.Event, err error) {
			log.Warn("failed to publish event", "type", ev.Kind.String(), "workflow_id", ev.WorkflowID, "error", err)
		}),
	)
	rt.closers = append(rt.closers, rt.emitter.Close)
	return nil
}

// seed stores the built-in definitions into empty storage when enabled,
// then loads the configured definition files over them.
func (rt *runtime) seed(ctx context.Context) error {
	seeder := seed.New(rt.workflows, rt.validation, rt.log.With("component", "seed"))
	if rt.cfg.Engine.SeedDefaults {
		if _, err := seeder.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed defaults: %w", err)
		}
	}
	if len(rt.cfg.Engine.Definitions) > 0 {
		if _, err := seeder.LoadDefinitions(ctx, rt.cfg.Engine.Definitions); err != nil {
			return fmt.Errorf("load definitions: %w", err)
		}
	}
	return nil
}

// Close releases everything in reverse order of opening.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
