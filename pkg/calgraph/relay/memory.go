package relay

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultGroupBuffer is the per-group queue length of a MemoryBroker.
const DefaultGroupBuffer = 1024

// MemoryBroker is an in-process Broker for single-node deployments and tests.
// Publish blocks while a group's queue is full.
type MemoryBroker struct {
	buffer int

	mu     sync.RWMutex
	topics map[string]map[string]*memoryGroup // topic -> group -> queue

	closed  atomic.Bool
	closeCh chan struct{}
}

type memoryGroup struct {
	queue   chan Message
	members int
}

// NewMemoryBroker creates an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return NewMemoryBrokerSize(DefaultGroupBuffer)
}

// NewMemoryBrokerSize creates a broker whose group queues hold buffer messages.
func NewMemoryBrokerSize(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = DefaultGroupBuffer
	}
	return &MemoryBroker{
		buffer:  buffer,
		topics:  make(map[string]map[string]*memoryGroup),
		closeCh: make(chan struct{}),
	}
}

// Publish enqueues one copy of msg for every group consuming topic.
// With no groups the message is discarded.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, msg Message) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}

	b.mu.RLock()
	groups := make([]*memoryGroup, 0, len(b.topics[topic]))
	for _, g := range b.topics[topic] {
		groups = append(groups, g)
	}
	b.mu.RUnlock()

	for _, g := range groups {
		select {
		case g.queue <- msg:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.closeCh:
			return ErrBrokerClosed
		}
	}
	return nil
}

// Consumer joins group on topic. Messages published before the first member
// of a group joins are not delivered to it.
func (b *MemoryBroker) Consumer(topic, group string) (Consumer, error) {
	if b.closed.Load() {
		return nil, ErrBrokerClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	groups := b.topics[topic]
	if groups == nil {
		groups = make(map[string]*memoryGroup)
		b.topics[topic] = groups
	}
	g := groups[group]
	if g == nil {
		g = &memoryGroup{queue: make(chan Message, b.buffer)}
		groups[group] = g
	}
	g.members++

	return &memoryConsumer{broker: b, topic: topic, group: group, g: g, done: make(chan struct{})}, nil
}

// Close stops all consumers and rejects further publishes.
func (b *MemoryBroker) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.closeCh)
	return nil
}

func (b *MemoryBroker) leave(topic, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g := b.topics[topic][group]
	if g == nil {
		return
	}
	g.members--
	if g.members <= 0 {
		delete(b.topics[topic], group)
	}
}

type memoryConsumer struct {
	broker *MemoryBroker
	topic  string
	group  string
	g      *memoryGroup

	once sync.Once
	done chan struct{}
}

func (c *memoryConsumer) Next(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.g.queue:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.done:
		return Message{}, ErrBrokerClosed
	case <-c.broker.closeCh:
		return Message{}, ErrBrokerClosed
	}
}

func (c *memoryConsumer) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.broker.leave(c.topic, c.group)
	})
	return nil
}
