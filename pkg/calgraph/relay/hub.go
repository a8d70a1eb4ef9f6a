package relay

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/calgraph/pkg/calgraph/model"
	"github.com/randalmurphal/calgraph/pkg/calgraph/observability"
)

// HubConfig configures a Hub.
type HubConfig struct {
	// Topic is the notification topic.
	// Default: DefaultTopic
	Topic string

	// GroupID is the upstream consumer group. Each process must use its own
	// group so that every process sees every notification.
	// Default: "calgraph-" + a random uuid
	GroupID string

	// BufferSize is the channel buffer per subscriber.
	// Default: 64
	BufferSize int

	// DeduplicateTTL is how long message ids are remembered to drop
	// redelivered messages. Messages without an id are never deduplicated.
	// Default: 1m. Negative disables deduplication.
	DeduplicateTTL time.Duration

	// RetryDelay is the pause after a failed fetch.
	// Default: 500ms
	RetryDelay time.Duration

	// OnDrop is called when a subscriber's buffer is full and e is dropped for it.
	OnDrop func(e model.Event, subscriberID string)

	Logger  *slog.Logger
	Metrics observability.MetricsRecorder
}

// DefaultHubConfig provides reasonable defaults.
var DefaultHubConfig = HubConfig{
	Topic:          DefaultTopic,
	BufferSize:     64,
	DeduplicateTTL: time.Minute,
	RetryDelay:     500 * time.Millisecond,
}

// ErrHubClosed is returned by Subscribe and Start after Close.
var ErrHubClosed = errors.New("hub closed")

// Hub multiplexes one upstream consumer to any number of in-process
// subscribers. Every subscriber receives every event decoded after it
// subscribed. Delivery never blocks on a slow subscriber.
type Hub struct {
	broker Broker
	config HubConfig

	mu          sync.RWMutex
	subscribers map[string]*hubSubscriber

	dedupeMu    sync.Mutex
	dedupeCache map[string]time.Time

	nextID  atomic.Int64
	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type hubSubscriber struct {
	id     string
	events chan model.Event
	once   sync.Once
}

// NewHub creates a hub reading from b. Call Start to begin consuming.
func NewHub(b Broker, config HubConfig) *Hub {
	if config.Topic == "" {
		config.Topic = DefaultHubConfig.Topic
	}
	if config.GroupID == "" {
		config.GroupID = "calgraph-" + uuid.NewString()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig.BufferSize
	}
	if config.DeduplicateTTL == 0 {
		config.DeduplicateTTL = DefaultHubConfig.DeduplicateTTL
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultHubConfig.RetryDelay
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}

	h := &Hub{
		broker:      b,
		config:      config,
		subscribers: make(map[string]*hubSubscriber),
		done:        make(chan struct{}),
	}
	if config.DeduplicateTTL > 0 {
		h.dedupeCache = make(map[string]time.Time)
	}
	return h
}

// GroupID returns the upstream consumer group of this hub.
func (h *Hub) GroupID() string {
	return h.config.GroupID
}

// Start joins the consumer group and begins dispatching. It returns once the
// consumer exists; consumption stops when ctx is done or Close is called.
func (h *Hub) Start(ctx context.Context) error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	if !h.started.CompareAndSwap(false, true) {
		return errors.New("hub already started")
	}

	consumer, err := h.broker.Consumer(h.config.Topic, h.config.GroupID)
	if err != nil {
		h.started.Store(false)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go h.run(runCtx, consumer)
	return nil
}

// Subscribe registers a subscriber. The returned channel is closed when ctx
// is done, unsubscribe is called, or the hub closes.
func (h *Hub) Subscribe(ctx context.Context) (<-chan model.Event, func(), error) {
	if h.closed.Load() {
		return nil, nil, ErrHubClosed
	}

	sub := &hubSubscriber{
		id:     strconv.FormatInt(h.nextID.Add(1), 10),
		events: make(chan model.Event, h.config.BufferSize),
	}

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil, nil, ErrHubClosed
	}
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	unsubscribe := func() { h.remove(sub) }
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-h.done:
		}
	}()

	return sub.events, unsubscribe, nil
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close stops consuming and closes every subscriber channel.
func (h *Hub) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if h.cancel != nil {
		h.cancel()
		<-h.done
	} else {
		close(h.done)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		sub.close()
		delete(h.subscribers, id)
	}
	return nil
}

func (h *Hub) remove(sub *hubSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sub.id)
	sub.close()
}

func (s *hubSubscriber) close() {
	s.once.Do(func() { close(s.events) })
}

func (h *Hub) run(ctx context.Context, consumer Consumer) {
	defer close(h.done)
	defer consumer.Close()

	var cleanup <-chan time.Time
	if h.dedupeCache != nil {
		ticker := time.NewTicker(h.config.DeduplicateTTL / 2)
		defer ticker.Stop()
		cleanup = ticker.C
	}

	for {
		select {
		case <-cleanup:
			h.expireDedupe()
		default:
		}

		msg, err := consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrBrokerClosed) {
				return
			}
			if h.config.Logger != nil {
				h.config.Logger.Warn("notification fetch failed",
					slog.String("topic", h.config.Topic),
					slog.String("error", err.Error()))
			}
			select {
			case <-time.After(h.config.RetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		h.dispatch(ctx, msg)
	}
}

// dispatch decodes msg and offers it to every subscriber without blocking.
// Undecodable messages are logged and skipped.
func (h *Hub) dispatch(ctx context.Context, msg Message) {
	if h.isDuplicate(msg.Headers[HeaderMessageID]) {
		return
	}

	e, err := Decode(msg.Value)
	if err != nil {
		observability.LogDecodeError(h.config.Logger, h.config.Topic, err)
		h.config.Metrics.RecordDecodeError(ctx, h.config.Topic)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub.events <- e:
		default:
			observability.LogSubscriberDropped(h.config.Logger, sub.id, e.ID)
			h.config.Metrics.RecordDrop(ctx, sub.id)
			if h.config.OnDrop != nil {
				h.config.OnDrop(e, sub.id)
			}
		}
	}
}

// isDuplicate reports whether id was seen within the TTL, recording it if not.
func (h *Hub) isDuplicate(id string) bool {
	if h.dedupeCache == nil || id == "" {
		return false
	}
	h.dedupeMu.Lock()
	defer h.dedupeMu.Unlock()

	if seen, ok := h.dedupeCache[id]; ok && time.Since(seen) < h.config.DeduplicateTTL {
		return true
	}
	h.dedupeCache[id] = time.Now()
	return false
}

func (h *Hub) expireDedupe() {
	h.dedupeMu.Lock()
	defer h.dedupeMu.Unlock()

	cutoff := time.Now().Add(-h.config.DeduplicateTTL)
	for id, ts := range h.dedupeCache {
		if ts.Before(cutoff) {
			delete(h.dedupeCache, id)
		}
	}
}
