package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/randalmurphal/calgraph/pkg/calgraph/errors"
	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

var fastRetry = cerrors.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     5 * time.Millisecond,
	BackoffFactor:  2,
}

// flakyBroker fails the first failures publishes, then records messages.
type flakyBroker struct {
	mu       sync.Mutex
	failures int
	failWith error
	attempts int
	sent     []Message
	topics   []string
}

func (b *flakyBroker) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.attempts <= b.failures {
		return b.failWith
	}
	b.sent = append(b.sent, msg)
	b.topics = append(b.topics, topic)
	return nil
}

func (b *flakyBroker) Consumer(string, string) (Consumer, error) {
	return nil, errors.New("not supported")
}

func (b *flakyBroker) Close() error { return nil }

func TestPublisher_Notify(t *testing.T) {
	b := &flakyBroker{}
	p := NewPublisher(b, "", WithRetry(fastRetry))
	assert.Equal(t, DefaultTopic, p.Topic())

	e := model.Event{ID: 5, Summary: "Standup", Description: "Daily sync"}
	require.NoError(t, p.Notify(context.Background(), e))

	require.Len(t, b.sent, 1)
	assert.Equal(t, []string{DefaultTopic}, b.topics)

	msg := b.sent[0]
	assert.Equal(t, []byte("5"), msg.Key)
	assert.Equal(t, ContentTypeJSON, msg.Headers[HeaderContentType])
	_, err := uuid.Parse(msg.Headers[HeaderMessageID])
	assert.NoError(t, err)

	decoded, err := Decode(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestPublisher_RetriesBrokerFailures(t *testing.T) {
	b := &flakyBroker{failures: 2, failWith: errors.New("leader not available")}
	p := NewPublisher(b, "events", WithRetry(fastRetry))

	require.NoError(t, p.Notify(context.Background(), model.Event{ID: 1}))
	assert.Equal(t, 3, b.attempts)
	assert.Len(t, b.sent, 1)
}

func TestPublisher_GivesUpAfterMaxAttempts(t *testing.T) {
	b := &flakyBroker{failures: 10, failWith: errors.New("leader not available")}
	p := NewPublisher(b, "events", WithRetry(fastRetry))

	err := p.Notify(context.Background(), model.Event{ID: 1})
	require.Error(t, err)
	assert.Equal(t, 3, b.attempts)
	assert.Empty(t, b.sent)
}

func TestPublisher_ClosedBrokerNotRetried(t *testing.T) {
	b := &flakyBroker{failures: 10, failWith: ErrBrokerClosed}
	p := NewPublisher(b, "events", WithRetry(fastRetry))

	err := p.Notify(context.Background(), model.Event{ID: 1})
	assert.ErrorIs(t, err, ErrBrokerClosed)
	assert.Equal(t, 1, b.attempts)
}
