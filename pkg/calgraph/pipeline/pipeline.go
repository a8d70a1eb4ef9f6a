// Package pipeline creates events: one parent row and six satellite rows in a
// single transaction, followed by a best-effort notification.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/observability"
	"github.com/randalmurphal/calgraph/pkg/calgraph/store"
)

// DefaultPublishTimeout bounds the post-commit publish step.
const DefaultPublishTimeout = 5 * time.Second

// Store runs a unit of work. store.SQLStore satisfies it.
type Store interface {
	InTx(ctx context.Context, fn func(store.Tx) error) error
}

// Notifier announces a committed event. relay.Publisher satisfies it.
type Notifier interface {
	Notify(ctx context.Context, e model.Event) error
}

// Creator runs the event creation pipeline.
type Creator struct {
	store          Store
	notifier       Notifier
	publishTimeout time.Duration
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
}

// Option configures a Creator.
type Option func(*Creator)

// WithNotifier sets the post-commit notifier. Without one, nothing is published.
func WithNotifier(n Notifier) Option {
	return func(c *Creator) {
		c.notifier = n
	}
}

// WithPublishTimeout bounds how long the publish step may take.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Creator) {
		if d > 0 {
			c.publishTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Creator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Creator) {
		c.metrics = m
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(c *Creator) {
		c.spans = s
	}
}

// NewCreator returns a Creator writing to s.
func NewCreator(s Store, opts ...Option) *Creator {
	c := &Creator{
		store:          s,
		publishTimeout: DefaultPublishTimeout,
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create validates in, writes the event and its six satellites atomically and
// returns the stored event. Insert order is fixed: event, attendee, end,
// override, recurrence, reminder, start. Any failure, including cancellation
// of ctx before commit, rolls back every row.
//
// After commit the event is published. Publish failures are logged and never
// change the result; the publish step runs on a context detached from ctx's
// cancellation, bounded by the publish timeout.
func (c *Creator) Create(ctx context.Context, in model.NewEvent) (model.Event, error) {
	done := observability.TimedOperation()
	start := time.Now()

	ctx, span := c.spans.StartCreateSpan(ctx)
	created, err := c.create(ctx, in)
	c.spans.EndSpanWithError(span, err)
	c.metrics.RecordCreate(ctx, time.Since(start), err)

	if err != nil {
		observability.LogCreateError(c.logger, err, done())
		return model.Event{}, err
	}
	observability.LogEventCreated(c.logger, created.ID, done())

	c.publish(ctx, created)
	return created, nil
}

func (c *Creator) create(ctx context.Context, in model.NewEvent) (model.Event, error) {
	if err := Validate(in); err != nil {
		return model.Event{}, err
	}

	e := in.Fields()
	err := c.store.InTx(ctx, func(tx store.Tx) error {
		id, err := tx.InsertEvent(ctx, e)
		if err != nil {
			return err
		}
		e.ID = id
		observability.AddSpanEvent(ctx, "event inserted", attribute.Int64("event.id", id))

		steps := []func() error{
			func() error {
				a := in.Attendee
				a.EventID = id
				return tx.InsertAttendee(ctx, a)
			},
			func() error {
				v := in.End
				v.EventID = id
				return tx.InsertEnd(ctx, v)
			},
			func() error {
				o := in.Override
				o.EventID = id
				return tx.InsertOverride(ctx, o)
			},
			func() error {
				r := in.Recurrence
				r.EventID = id
				return tx.InsertRecurrence(ctx, r)
			},
			func() error {
				r := in.Reminder
				r.EventID = id
				return tx.InsertReminder(ctx, r)
			},
			func() error {
				s := in.Start
				s.EventID = id
				return tx.InsertStart(ctx, s)
			},
		}
		for _, step := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	return e, nil
}

func (c *Creator) publish(ctx context.Context, e model.Event) {
	if c.notifier == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.publishTimeout)
	defer cancel()

	if err := c.notifier.Notify(pubCtx, e); err != nil && c.logger != nil {
		// The publisher logs the failure itself; this only ties it to the create.
		c.logger.Debug("event committed without notification",
			slog.Int64("event_id", e.ID),
			slog.String("error", err.Error()))
	}
}
