// Package graph is the GraphQL surface of calgraph: schema, resolvers and
// the HTTP/websocket handler.
package graph

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/randalmurphal/calgraph/pkg/calgraph/auth"
	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/loader"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/store"
)

// Schema is the SDL of the calendar API.
//
//go:embed schema.graphql
var Schema string

// Creator creates events. pipeline.Creator satisfies it.
type Creator interface {
	Create(ctx context.Context, in model.NewEvent) (model.Event, error)
}

// Subscriber streams newly created events. relay.Hub satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan model.Event, func(), error)
}

// Resolver is the root Query, Mutation and Subscription resolver.
type Resolver struct {
	store      store.Reader
	creator    Creator
	subscriber Subscriber
	policy     auth.Policy
	logger     *slog.Logger
}

// Config holds the collaborators of a Resolver.
type Config struct {
	Store      store.Reader
	Creator    Creator
	Subscriber Subscriber

	// Policy guards createEvent. Default: auth.RolePolicy{}
	Policy auth.Policy

	Logger *slog.Logger
}

// NewResolver creates the root resolver.
func NewResolver(cfg Config) *Resolver {
	if cfg.Policy == nil {
		cfg.Policy = auth.RolePolicy{}
	}
	return &Resolver{
		store:      cfg.Store,
		creator:    cfg.Creator,
		subscriber: cfg.Subscriber,
		policy:     cfg.Policy,
		logger:     cfg.Logger,
	}
}

// NewSchema parses the embedded schema against r.
func NewSchema(r *Resolver, opts ...graphql.SchemaOpt) (*graphql.Schema, error) {
	return graphql.ParseSchema(Schema, r, opts...)
}

// loaders returns the request's loaders. Outside a request (no middleware),
// an uncached set is built for this call only.
func (r *Resolver) loaders(ctx context.Context) *loader.Loaders {
	if l := loader.For(ctx); l != nil {
		return l
	}
	return loader.New(r.store, loader.WithoutCache(), loader.WithLogger(r.logger))
}

// GetEvents resolves Query.getEvents.
func (r *Resolver) GetEvents(ctx context.Context) ([]*EventResolver, error) {
	events, err := r.store.ListEvents(ctx)
	if err != nil {
		return nil, err
	}

	l := r.loaders(ctx)
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	l.Prefetch(ctx, ids)

	out := make([]*EventResolver, len(events))
	for i, e := range events {
		out[i] = &EventResolver{e: e, loaders: l}
	}
	return out, nil
}

type idArgs struct {
	ID graphql.ID
}

// GetEvent resolves Query.getEvent. A missing event is null, not an error.
func (r *Resolver) GetEvent(ctx context.Context, args idArgs) (*EventResolver, error) {
	id, err := parseID("id", args.ID)
	if err != nil {
		return nil, err
	}

	e, err := r.store.GetEvent(ctx, id)
	if errors.Is(err, cerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &EventResolver{e: e, loaders: r.loaders(ctx)}, nil
}

// FindEventByID resolves Query.findEventById, the entity lookup used when
// composing services. It behaves exactly like GetEvent.
func (r *Resolver) FindEventByID(ctx context.Context, args idArgs) (*EventResolver, error) {
	return r.GetEvent(ctx, args)
}

type createArgs struct {
	Event EventInput
}

// CreateEvent resolves Mutation.createEvent.
func (r *Resolver) CreateEvent(ctx context.Context, args createArgs) (*EventResolver, error) {
	if err := r.policy.Require(ctx, auth.RoleAdmin); err != nil {
		return nil, err
	}

	in, err := args.Event.toModel()
	if err != nil {
		return nil, err
	}
	e, err := r.creator.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return &EventResolver{e: e, loaders: r.loaders(ctx)}, nil
}

// LatestEvent resolves Subscription.latestEvent. The stream ends when the
// subscription context is done.
func (r *Resolver) LatestEvent(ctx context.Context) (<-chan *EventResolver, error) {
	events, unsubscribe, err := r.subscriber.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *EventResolver)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				select {
				case out <- &EventResolver{e: e, loaders: r.loaders(ctx)}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func parseID(field string, id graphql.ID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, cerrors.Invalid(field, "%q is not a numeric id", string(id))
	}
	return n, nil
}
