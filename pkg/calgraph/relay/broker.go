package relay

import (
	"context"
	"errors"
)

// DefaultTopic is the topic event notifications are published on.
const DefaultTopic = "events"

// Header names set on every published message.
const (
	HeaderMessageID   = "message-id"
	HeaderContentType = "content-type"
)

// ContentTypeJSON is the content type of encoded events.
const ContentTypeJSON = "application/json"

// ErrBrokerClosed is returned by brokers and consumers after Close.
var ErrBrokerClosed = errors.New("broker closed")

// Message is one broker record.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Broker publishes to and consumes from named topics.
//
// Every consumer group on a topic receives every message published after
// the group started consuming; within a group each message is delivered to
// one consumer.
type Broker interface {
	// Publish writes msg to topic.
	Publish(ctx context.Context, topic string, msg Message) error

	// Consumer joins group on topic.
	Consumer(topic, group string) (Consumer, error)

	// Close releases the broker's connections.
	Close() error
}

// Consumer reads messages for one consumer group.
type Consumer interface {
	// Next blocks until a message arrives, ctx is done, or the consumer is closed.
	Next(ctx context.Context) (Message, error)

	// Close leaves the group.
	Close() error
}
