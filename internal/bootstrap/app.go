// Package bootstrap wires the client: configuration, session store, gateway,
// API clients, the ingestion orchestrator and the recommendation aggregator.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"saintplus-client/internal/account"
	"saintplus-client/internal/courses"
	"saintplus-client/internal/events"
	"saintplus-client/internal/gateway"
	"saintplus-client/internal/ingestion"
	"saintplus-client/internal/recommendations"
	"saintplus-client/internal/session"
	"saintplus-client/internal/shared/config"
	"saintplus-client/internal/shared/telemetry"
	"saintplus-client/internal/transcripts"
	"saintplus-client/internal/uploads"
)

// App holds the wired client.
type App struct {
	Config          config.Config
	Bus             *events.Bus
	Session         *session.State
	Gateway         *gateway.Gateway
	Account         *account.Client
	Courses         *courses.Client
	Transcripts     *transcripts.Client
	Ingestion       *ingestion.Orchestrator
	Recommendations *recommendations.Aggregator

	redis          *redis.Client
	shutdownTracer func(context.Context) error
}

// Option overrides parts of the wiring, mainly for tests.
type Option func(*buildOptions)

type buildOptions struct {
	httpClient *http.Client
	store      session.Store
}

// WithHTTPClient replaces the client used for both backend calls and storage transfers.
func WithHTTPClient(c *http.Client) Option {
	return func(o *buildOptions) { o.httpClient = c }
}

// WithSessionStore replaces the configured session store.
func WithSessionStore(s session.Store) Option {
	return func(o *buildOptions) { o.store = s }
}

// Build wires the client and restores a persisted session if one is still valid.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	app := &App{Config: cfg, Bus: events.NewBus()}

	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracingOptions{
		Enabled:  cfg.OTelEnabled,
		Endpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	app.shutdownTracer = shutdown

	store := o.store
	if store == nil {
		store, err = app.buildSessionStore(cfg)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	app.Session = session.NewState(store)
	restored, err := app.Session.Restore(ctx)
	if err != nil {
		// A broken store should not stop the client; the user signs in again.
		telemetry.Warn("bootstrap.session_restore_failed", map[string]any{"store": cfg.SessionStore, "err": err})
	}

	app.Gateway = gateway.New(cfg.APIBaseURL, app.Session,
		gateway.WithHTTPClient(o.httpClient),
		gateway.WithBus(app.Bus),
	)
	app.Account = account.NewClient(app.Gateway)
	app.Courses = courses.NewClient(app.Gateway)
	app.Transcripts = transcripts.NewClient(app.Gateway)
	app.Ingestion = ingestion.NewOrchestrator(app.Transcripts, uploads.NewTransfer(o.httpClient), ingestion.WithBus(app.Bus))
	app.Recommendations = recommendations.NewAggregator(recommendations.NewClient(app.Gateway), recommendations.WithBus(app.Bus))

	telemetry.Info("bootstrap.ready", map[string]any{
		"api_url":          cfg.APIBaseURL,
		"session_store":    cfg.SessionStore,
		"session_restored": restored,
	})
	return app, nil
}

func (a *App) buildSessionStore(cfg config.Config) (session.Store, error) {
	switch cfg.SessionStore {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("SAINTPLUS_SESSION_STORE=redis requires REDIS_URL")
		}
		a.redis = session.NewRedisClient(cfg.RedisURL)
		return session.NewRedisStore(a.redis, cfg.SessionKey), nil
	case "file", "":
		if cfg.SessionFile == "" {
			return nil, fmt.Errorf("SAINTPLUS_SESSION_FILE is required for the file session store")
		}
		return session.NewFileStore(cfg.SessionFile), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// Close flushes traces and releases the bus and any redis connection.
func (a *App) Close() error {
	var errs []error
	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.shutdownTracer(ctx))
		cancel()
	}
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
