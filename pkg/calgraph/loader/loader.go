// Package loader batches satellite lookups keyed by event id.
//
// A Loaders value belongs to exactly one inbound request. It is built by
// Middleware (or New) and carried in the request context; it is never shared
// between requests, so its cache never outlives the request.
package loader

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/observability"
)

// Entity names used in NotFound errors, metrics and spans.
const (
	EntityAttendee   = "attendee"
	EntityEnd        = "end"
	EntityOverride   = "override"
	EntityRecurrence = "recurrence"
	EntityReminder   = "reminder"
	EntityStart      = "start"
)

// DefaultWait is how long a loader collects keys before issuing its query.
const DefaultWait = 2 * time.Millisecond

// Source is the storage the loaders batch against. store.SQLStore satisfies it.
type Source interface {
	AttendeesByEvent(ctx context.Context, eventIDs []int64) ([]model.Attendee, error)
	EndsByEvent(ctx context.Context, eventIDs []int64) ([]model.End, error)
	OverridesByEvent(ctx context.Context, eventIDs []int64) ([]model.Override, error)
	RecurrencesByEvent(ctx context.Context, eventIDs []int64) ([]model.Recurrence, error)
	RemindersByEvent(ctx context.Context, eventIDs []int64) ([]model.Reminder, error)
	StartsByEvent(ctx context.Context, eventIDs []int64) ([]model.Start, error)
}

// Loaders holds the six independent satellite loaders of one request.
type Loaders struct {
	attendees   *dataloader.Loader[int64, model.Attendee]
	ends        *dataloader.Loader[int64, model.End]
	overrides   *dataloader.Loader[int64, model.Override]
	recurrences *dataloader.Loader[int64, model.Recurrence]
	reminders   *dataloader.Loader[int64, model.Reminder]
	starts      *dataloader.Loader[int64, model.Start]

	cached bool
}

// Option configures a Loaders.
type Option func(*options)

type options struct {
	wait    time.Duration
	cache   bool
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// WithWait sets the batch collection window.
func WithWait(d time.Duration) Option {
	return func(o *options) {
		o.wait = d
	}
}

// WithoutCache disables per-key memoization. Use it for long-lived contexts
// such as subscriptions, where each delivery must read fresh rows.
func WithoutCache() Option {
	return func(o *options) {
		o.cache = false
	}
}

// WithLogger sets the logger used for batch debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records batch sizes.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSpans wraps each batch query in a span.
func WithSpans(s observability.SpanManager) Option {
	return func(o *options) {
		o.spans = s
	}
}

// New builds a fresh set of loaders over src.
func New(src Source, opts ...Option) *Loaders {
	o := &options{
		wait:    DefaultWait,
		cache:   true,
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Loaders{
		attendees: newLoader(o, batch(o, EntityAttendee, src.AttendeesByEvent,
			func(a model.Attendee) int64 { return a.EventID })),
		ends: newLoader(o, batch(o, EntityEnd, src.EndsByEvent,
			func(e model.End) int64 { return e.EventID })),
		overrides: newLoader(o, batch(o, EntityOverride, src.OverridesByEvent,
			func(v model.Override) int64 { return v.EventID })),
		recurrences: newLoader(o, batch(o, EntityRecurrence, src.RecurrencesByEvent,
			func(r model.Recurrence) int64 { return r.EventID })),
		reminders: newLoader(o, batch(o, EntityReminder, src.RemindersByEvent,
			func(r model.Reminder) int64 { return r.EventID })),
		starts: newLoader(o, batch(o, EntityStart, src.StartsByEvent,
			func(s model.Start) int64 { return s.EventID })),
		cached: o.cache,
	}
}

func newLoader[V any](o *options, fn dataloader.BatchFunc[int64, V]) *dataloader.Loader[int64, V] {
	opts := []dataloader.Option[int64, V]{dataloader.WithWait[int64, V](o.wait)}
	if !o.cache {
		opts = append(opts, dataloader.WithCache[int64, V](&dataloader.NoCache[int64, V]{}))
	}
	return dataloader.NewBatchedLoader(fn, opts...)
}

// batch turns one "select where idevent in (ids)" into a dataloader batch
// function. The result slice always matches keys position for position.
// A key with no row gets a NotFound error; a failed query fails every key.
func batch[V any](
	o *options,
	entity string,
	fetch func(context.Context, []int64) ([]V, error),
	eventID func(V) int64,
) dataloader.BatchFunc[int64, V] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[V] {
		unique := dedupe(keys)
		observability.LogBatch(o.logger, entity, len(keys), len(unique))
		o.metrics.RecordBatch(ctx, entity, len(unique))

		ctx, span := o.spans.StartBatchSpan(ctx, entity, len(unique))
		rows, err := fetch(ctx, unique)
		o.spans.EndSpanWithError(span, err)

		results := make([]*dataloader.Result[V], len(keys))
		if err != nil {
			for i := range keys {
				results[i] = &dataloader.Result[V]{Error: err}
			}
			return results
		}

		// Rows arrive ordered by id; the first row per event wins.
		byEvent := make(map[int64]V, len(rows))
		for _, row := range rows {
			id := eventID(row)
			if _, ok := byEvent[id]; !ok {
				byEvent[id] = row
			}
		}
		for i, key := range keys {
			if row, ok := byEvent[key]; ok {
				results[i] = &dataloader.Result[V]{Data: row}
			} else {
				results[i] = &dataloader.Result[V]{Error: cerrors.NotFound(entity, key)}
			}
		}
		return results
	}
}

func dedupe(keys []int64) []int64 {
	seen := make(map[int64]struct{}, len(keys))
	out := make([]int64, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Prefetch queues eventIDs on all six loaders so that the satellites of a
// whole result list load in one batch per entity. Later Load calls for the
// same ids are served from the request cache. It does not block.
func (l *Loaders) Prefetch(ctx context.Context, eventIDs []int64) {
	if !l.cached || len(eventIDs) == 0 {
		return
	}
	l.attendees.LoadMany(ctx, eventIDs)
	l.ends.LoadMany(ctx, eventIDs)
	l.overrides.LoadMany(ctx, eventIDs)
	l.recurrences.LoadMany(ctx, eventIDs)
	l.reminders.LoadMany(ctx, eventIDs)
	l.starts.LoadMany(ctx, eventIDs)
}

// LoadAttendee returns the attendee of eventID.
func (l *Loaders) LoadAttendee(ctx context.Context, eventID int64) (model.Attendee, error) {
	return l.attendees.Load(ctx, eventID)()
}

// LoadEnd returns the end of eventID.
func (l *Loaders) LoadEnd(ctx context.Context, eventID int64) (model.End, error) {
	return l.ends.Load(ctx, eventID)()
}

// LoadOverride returns the reminder override of eventID.
func (l *Loaders) LoadOverride(ctx context.Context, eventID int64) (model.Override, error) {
	return l.overrides.Load(ctx, eventID)()
}

// LoadRecurrence returns the recurrence of eventID.
func (l *Loaders) LoadRecurrence(ctx context.Context, eventID int64) (model.Recurrence, error) {
	return l.recurrences.Load(ctx, eventID)()
}

// LoadReminder returns the reminder settings of eventID.
func (l *Loaders) LoadReminder(ctx context.Context, eventID int64) (model.Reminder, error) {
	return l.reminders.Load(ctx, eventID)()
}

// LoadStart returns the start of eventID.
func (l *Loaders) LoadStart(ctx context.Context, eventID int64) (model.Start, error) {
	return l.starts.Load(ctx, eventID)()
}

type contextKey struct{}

// Attach returns a copy of ctx carrying l.
func Attach(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// For returns the loaders carried by ctx, or nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(contextKey{}).(*Loaders)
	return l
}

// Middleware attaches a fresh Loaders to every request.
func Middleware(src Source, opts ...Option) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Attach(r.Context(), New(src, opts...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
