package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextWithin(t *testing.T, c Consumer, d time.Duration) (Message, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.Next(ctx)
}

func TestMemoryBroker_EveryGroupGetsACopy(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	a, err := b.Consumer("events", "a")
	require.NoError(t, err)
	c, err := b.Consumer("events", "b")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "events", Message{Value: []byte("1")}))

	for _, consumer := range []Consumer{a, c} {
		msg, err := nextWithin(t, consumer, time.Second)
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), msg.Value)
	}
}

func TestMemoryBroker_GroupMembersShare(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	first, err := b.Consumer("events", "g")
	require.NoError(t, err)
	second, err := b.Consumer("events", "g")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "events", Message{Value: []byte("only")}))

	_, err = nextWithin(t, first, time.Second)
	require.NoError(t, err)
	_, err = nextWithin(t, second, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBroker_NoReplay(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	require.NoError(t, b.Publish(context.Background(), "events", Message{Value: []byte("early")}))

	c, err := b.Consumer("events", "late")
	require.NoError(t, err)
	_, err = nextWithin(t, c, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBroker_TopicsAreSeparate(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	c, err := b.Consumer("other", "g")
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "events", Message{Value: []byte("x")}))

	_, err = nextWithin(t, c, 20*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBroker_Close(t *testing.T) {
	b := NewMemoryBroker()
	c, err := b.Consumer("events", "g")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err = c.Next(context.Background())
	assert.ErrorIs(t, err, ErrBrokerClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), "events", Message{}), ErrBrokerClosed)
	_, err = b.Consumer("events", "g2")
	assert.ErrorIs(t, err, ErrBrokerClosed)
}

func TestMemoryBroker_ConsumerCloseLeavesGroup(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	c, err := b.Consumer("events", "g")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Next(context.Background())
	assert.ErrorIs(t, err, ErrBrokerClosed)

	b.mu.RLock()
	_, ok := b.topics["events"]["g"]
	b.mu.RUnlock()
	assert.False(t, ok)
}

func TestMemoryBroker_PublishRespectsContext(t *testing.T) {
	b := NewMemoryBrokerSize(1)
	defer b.Close()

	_, err := b.Consumer("events", "slow")
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "events", Message{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Publish(ctx, "events", Message{}), context.DeadlineExceeded)
}
