package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/observability"
)

// Publisher sends one notification per created event.
type Publisher struct {
	broker  Broker
	topic   string
	retry   cerrors.RetryConfig
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithRetry overrides the publish retry policy.
func WithRetry(cfg cerrors.RetryConfig) PublisherOption {
	return func(p *Publisher) {
		p.retry = cfg
	}
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithPublisherMetrics sets the metrics recorder.
func WithPublisherMetrics(m observability.MetricsRecorder) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithPublisherSpans sets the span manager.
func WithPublisherSpans(s observability.SpanManager) PublisherOption {
	return func(p *Publisher) {
		p.spans = s
	}
}

// NewPublisher creates a publisher for topic. An empty topic means DefaultTopic.
func NewPublisher(b Broker, topic string, opts ...PublisherOption) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &Publisher{
		broker:  b,
		topic:   topic,
		retry:   cerrors.PublishRetry,
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Topic returns the topic notifications are published on.
func (p *Publisher) Topic() string {
	return p.topic
}

// Notify publishes e. Broker failures are retried with backoff until the
// retry policy or ctx gives up; a closed broker is not retried.
func (p *Publisher) Notify(ctx context.Context, e model.Event) error {
	ctx, span := p.spans.StartPublishSpan(ctx, p.topic, e.ID)

	err := p.notify(ctx, e)
	p.spans.EndSpanWithError(span, err)
	p.metrics.RecordPublish(ctx, p.topic, err)
	return err
}

func (p *Publisher) notify(ctx context.Context, e model.Event) error {
	value, err := Encode(e)
	if err != nil {
		return err
	}
	msg := Message{
		Key:   []byte(e.Key()),
		Value: value,
		Headers: map[string]string{
			HeaderMessageID:   uuid.NewString(),
			HeaderContentType: ContentTypeJSON,
		},
	}

	res := cerrors.WithRetryContext(ctx, p.retry, func(ctx context.Context) (struct{}, error) {
		err := p.broker.Publish(ctx, p.topic, msg)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrBrokerClosed):
			return struct{}{}, cerrors.Permanent(err, "publish "+p.topic)
		default:
			return struct{}{}, cerrors.Transient(err, "publish "+p.topic)
		}
	})
	if res.Err != nil {
		observability.LogPublishError(p.logger, e.ID, res.Attempts, res.Err)
		return res.Err
	}
	return nil
}
