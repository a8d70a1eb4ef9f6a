package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
)

func startHub(t *testing.T, b Broker, config HubConfig) *Hub {
	t.Helper()
	h := NewHub(b, config)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Close() })
	return h
}

func receive(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return model.Event{}
	}
}

func assertNothing(t *testing.T, ch <-chan model.Event) {
	t.Helper()
	select {
	case e, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func publishRaw(t *testing.T, b Broker, value string, id string) {
	t.Helper()
	msg := Message{Value: []byte(value)}
	if id != "" {
		msg.Headers = map[string]string{HeaderMessageID: id}
	}
	require.NoError(t, b.Publish(context.Background(), DefaultTopic, msg))
}

func TestHub_RoundTripFromPublisher(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	h := startHub(t, b, HubConfig{})

	events, unsubscribe, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	e := model.Event{ID: 42, Summary: "Standup", Description: "Daily sync"}
	require.NoError(t, NewPublisher(b, "").Notify(context.Background(), e))

	assert.Equal(t, e, receive(t, events))
	assertNothing(t, events)
}

func TestHub_FanOut(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	h := startHub(t, b, HubConfig{})

	var subs []<-chan model.Event
	for i := 0; i < 3; i++ {
		ch, unsubscribe, err := h.Subscribe(context.Background())
		require.NoError(t, err)
		defer unsubscribe()
		subs = append(subs, ch)
	}
	assert.Equal(t, 3, h.Subscribers())

	pub := NewPublisher(b, "")
	for id := int64(1); id <= 2; id++ {
		require.NoError(t, pub.Notify(context.Background(), model.Event{ID: id}))
	}

	for _, ch := range subs {
		assert.Equal(t, int64(1), receive(t, ch).ID)
		assert.Equal(t, int64(2), receive(t, ch).ID)
	}
}

func TestHub_SkipsUndecodable(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	h := startHub(t, b, HubConfig{})

	events, unsubscribe, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	publishRaw(t, b, `{"id":"not-a-number"}`, "")
	publishRaw(t, b, `garbage`, "")
	publishRaw(t, b, `{"id":"7","summary":"after"}`, "")

	got := receive(t, events)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "after", got.Summary)
}

func TestHub_DeduplicatesMessageIDs(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	h := startHub(t, b, HubConfig{})

	events, unsubscribe, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	publishRaw(t, b, `{"id":"1"}`, "m-1")
	publishRaw(t, b, `{"id":"1"}`, "m-1")
	publishRaw(t, b, `{"id":"2"}`, "m-2")

	assert.Equal(t, int64(1), receive(t, events).ID)
	assert.Equal(t, int64(2), receive(t, events).ID)
	assertNothing(t, events)
}

func TestHub_DropsForSlowSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	var mu sync.Mutex
	var dropped []int64
	h := startHub(t, b, HubConfig{
		BufferSize: 1,
		OnDrop: func(e model.Event, _ string) {
			mu.Lock()
			dropped = append(dropped, e.ID)
			mu.Unlock()
		},
	})

	slow, unsubscribe, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribe()
	fast, unsubscribeFast, err := h.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsubscribeFast()

	pub := NewPublisher(b, "")
	for id := int64(1); id <= 3; id++ {
		require.NoError(t, pub.Notify(context.Background(), model.Event{ID: id}))
		assert.Equal(t, id, receive(t, fast).ID)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(dropped) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), receive(t, slow).ID)
}

func TestHub_SubscriptionEndsWithContext(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	h := startHub(t, b, HubConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	events, _, err := h.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, h.Subscribers())
}

func TestHub_Close(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	h := NewHub(b, HubConfig{})
	require.NoError(t, h.Start(context.Background()))

	events, unsubscribe, err := h.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)

	_, _, err = h.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.ErrorIs(t, h.Start(context.Background()), ErrHubClosed)
}

func TestHub_ProcessesGetDistinctGroups(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	first := startHub(t, b, HubConfig{})
	second := startHub(t, b, HubConfig{})
	assert.NotEqual(t, first.GroupID(), second.GroupID())

	a, ua, err := first.Subscribe(context.Background())
	require.NoError(t, err)
	defer ua()
	c, uc, err := second.Subscribe(context.Background())
	require.NoError(t, err)
	defer uc()

	require.NoError(t, NewPublisher(b, "").Notify(context.Background(), model.Event{ID: 9}))
	assert.Equal(t, int64(9), receive(t, a).ID)
	assert.Equal(t, int64(9), receive(t, c).ID)
}
