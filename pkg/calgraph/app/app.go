// Package app assembles a calgraph server from Settings: the event store,
// the notification broker and hub, the create pipeline, and the HTTP
// surface (GraphQL, iCalendar feed, health check).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/randalmurphal/calgraph/pkg/calgraph/auth"
	"github.com/randalmurphal/calgraph/pkg/calgraph/config"
	"github.com/randalmurphal/calgraph/pkg/calgraph/feed"
	"github.com/randalmurphal/calgraph/pkg/calgraph/graph"
	"github.com/randalmurphal/calgraph/pkg/calgraph/loader"
	"github.com/randalmurphal/calgraph/pkg/calgraph/observability"
	"github.com/randalmurphal/calgraph/pkg/calgraph/pipeline"
	"github.com/randalmurphal/calgraph/pkg/calgraph/relay"
	"github.com/randalmurphal/calgraph/pkg/calgraph/store"
)

// Route paths.
const (
	PathGraphQL  = "/graphql"
	PathCalendar = "/calendar.ics"
	PathHealth   = "/healthz"
)

// App owns every long-lived component of a running server.
type App struct {
	settings config.Settings
	logger   *slog.Logger

	store     *store.SQLStore
	broker    relay.Broker
	hub       *relay.Hub
	publisher *relay.Publisher
	creator   *pipeline.Creator
	schema    *graphql.Schema
	handler   http.Handler

	closeOnce sync.Once
	closeErr  error
}

// Option configures an App.
type Option func(*App)

// WithBroker replaces the broker selected by Settings. The App takes
// ownership and closes it.
func WithBroker(b relay.Broker) Option {
	return func(a *App) {
		a.broker = b
	}
}

// New opens the store, applies migrations and wires every component.
// Nothing consumes or listens until Start or Run.
func New(ctx context.Context, s config.Settings, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{settings: s, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	st, err := store.OpenURL(s.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	a.store = st

	if a.broker == nil {
		if a.broker, err = newBroker(s); err != nil {
			st.Close()
			return nil, err
		}
	}

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if s.Metrics {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if s.Tracing {
		spans = observability.NewSpanManager()
	}

	a.hub = relay.NewHub(a.broker, relay.HubConfig{
		Topic:      s.Topic,
		BufferSize: s.SubscriberBuf,
		Logger:     logger,
		Metrics:    metrics,
	})
	a.publisher = relay.NewPublisher(a.broker, s.Topic,
		relay.WithPublisherLogger(logger),
		relay.WithPublisherMetrics(metrics),
		relay.WithPublisherSpans(spans),
	)
	a.creator = pipeline.NewCreator(st,
		pipeline.WithNotifier(a.publisher),
		pipeline.WithPublishTimeout(s.PublishTimeout),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithSpans(spans),
	)

	if s.AuthDisabled {
		logger.Warn("authorization disabled: every caller may create events")
	}
	resolver := graph.NewResolver(graph.Config{
		Store:      st,
		Creator:    a.creator,
		Subscriber: a.hub,
		Policy:     auth.PolicyFor(s.AuthDisabled),
		Logger:     logger,
	})
	if a.schema, err = graph.NewSchema(resolver); err != nil {
		a.Close()
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	loaderOpts := []loader.Option{
		loader.WithWait(s.LoaderWait),
		loader.WithLogger(logger),
		loader.WithMetrics(metrics),
		loader.WithSpans(spans),
	}
	withLoaders := loader.Middleware(st, loaderOpts...)

	mux := http.NewServeMux()
	mux.Handle(PathGraphQL, auth.Middleware([]byte(s.JWTSecret), logger)(
		withLoaders(graph.Handler(a.schema, st, loaderOpts...))))
	mux.Handle(PathCalendar, withLoaders(feed.NewHandler(st, s.FeedDomain, logger)))
	mux.HandleFunc(PathHealth, a.health)
	a.handler = mux

	return a, nil
}

func newBroker(s config.Settings) (relay.Broker, error) {
	switch s.Broker {
	case config.BrokerKafka:
		return relay.NewKafkaBroker(relay.KafkaConfig{Brokers: s.KafkaBrokers})
	case config.BrokerMemory, "":
		return relay.NewMemoryBroker(), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", s.Broker)
	}
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("health check failed", slog.String("error", err.Error()))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// Handler returns the HTTP surface.
func (a *App) Handler() http.Handler { return a.handler }

// Schema returns the executable GraphQL schema.
func (a *App) Schema() *graphql.Schema { return a.schema }

// Creator returns the create pipeline.
func (a *App) Creator() *pipeline.Creator { return a.creator }

// Hub returns the notification hub feeding subscriptions.
func (a *App) Hub() *relay.Hub { return a.hub }

// Store returns the event store.
func (a *App) Store() *store.SQLStore { return a.store }

// Start joins the notification topic. Subscriptions receive nothing until
// Start has returned.
func (a *App) Start(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}
	a.logger.Info("notification hub started",
		slog.String("topic", a.publisher.Topic()),
		slog.String("group_id", a.hub.GroupID()),
	)
	return nil
}

// Run starts the hub and serves HTTP on the configured address until ctx is
// done, then shuts down gracefully and closes the App.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.settings.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.settings.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops the hub and closes the broker and store. Safe to call twice.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.hub != nil {
			errs = append(errs, a.hub.Close())
		}
		if a.broker != nil {
			errs = append(errs, a.broker.Close())
		}
		if a.store != nil {
			errs = append(errs, a.store.Close())
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
