package container

import (
	"context"
	"fmt"

	"automl/adapters/artifacts"
	"automl/adapters/tracking/redisregistry"
	"automl/adapters/tracking/sqlstore"
	"automl/app"
	"automl/domain/search"
	"automl/internal"
	"automl/internal/api"
	"automl/internal/config"
	"automl/internal/models"
	"automl/internal/observability"
	"automl/internal/serving"
	"automl/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Telemetry *observability.Telemetry
	Store     *sqlstore.Store

	// Ports
	Runs      ports.RunLog
	Registry  ports.ModelRegistry
	Artifacts ports.ArtifactStore

	Factory *models.Factory

	closers []func() error
}

// New creates the container and opens every backing store named by cfg.
// On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	c := &Container{Config: cfg, Logger: logger, Factory: models.NewFactory()}
	fail := func(what string, err error) (*Container, error) {
		c.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize %s: %w", what, err)
	}

	if err := c.initTelemetry(ctx); err != nil {
		return fail("telemetry", err)
	}
	if err := c.initTracking(ctx); err != nil {
		return fail("tracking store", err)
	}
	if err := c.initRegistry(ctx); err != nil {
		return fail("model registry", err)
	}
	if err := c.initArtifacts(); err != nil {
		return fail("artifact store", err)
	}

	logger.Info("Container initialized: tracking=%s registry=%s artifacts=%s",
		cfg.Tracking.Driver, cfg.Registry.Backend, cfg.Tracking.ArtifactRoot)
	return c, nil
}

func (c *Container) initTelemetry(ctx context.Context) error {
	tel, err := observability.Init(ctx, observability.Options{
		ServiceName:    c.Config.Observability.ServiceName,
		ConsoleTracing: c.Config.Observability.ConsoleTracing,
	})
	if err != nil {
		return err
	}
	c.Telemetry = tel
	c.closers = append(c.closers, func() error { return tel.Shutdown(context.Background()) })
	return nil
}

func (c *Container) initTracking(ctx context.Context) error {
	store, err := sqlstore.Open(ctx, c.Config.Tracking.Driver, c.Config.Tracking.DSN, c.Logger)
	if err != nil {
		return err
	}
	c.Store = store
	c.Runs = store
	c.closers = append(c.closers, store.Close)
	return nil
}

func (c *Container) initRegistry(ctx context.Context) error {
	switch c.Config.Registry.Backend {
	case "redis":
		reg, err := redisregistry.Dial(ctx, c.Config.Registry.RedisAddr, c.Config.Registry.RedisDB, c.Logger)
		if err != nil {
			return err
		}
		c.Registry = reg
		c.closers = append(c.closers, reg.Close)
	default:
		c.Registry = c.Store
	}
	return nil
}

func (c *Container) initArtifacts() error {
	store, err := artifacts.NewFileStore(c.Config.Tracking.ArtifactRoot, c.Logger)
	if err != nil {
		return err
	}
	c.Artifacts = store
	return nil
}

// TuningService assembles the search engine for one experiment config. The
// registered name comes from the experiment file, falling back to the
// process config.
func (c *Container) TuningService(cfg search.Config) *app.TuningService {
	name := cfg.RegisteredModelName
	if name == "" {
		name = c.Config.Registry.ModelName
	}
	tracker := app.NewRunTracker(c.Factory, c.Artifacts, c.Runs, c.Logger)
	selector := app.NewSelector(c.Registry, name, c.Logger)
	return app.NewTuningService(c.Factory, tracker, selector, c.Logger)
}

// ServingServer builds the prediction API for the configured registered name.
func (c *Container) ServingServer() *serving.Server {
	loader := serving.NewLoader(c.Registry, c.Artifacts, c.Factory, c.Config.Registry.ModelName)
	return serving.NewServer(loader, c.Logger, serving.WithMetricsHandler(c.Telemetry.MetricsHandler()))
}

// TrackingAPI builds the read-only tracking browser.
func (c *Container) TrackingAPI() *api.TrackingAPI {
	return api.NewTrackingAPI(c.Runs, c.Registry, c.Config.Registry.ModelName, c.Logger)
}

// Shutdown closes stores in reverse order of opening
func (c *Container) Shutdown(ctx context.Context) error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	c.Logger.Sync()
	return first
}
