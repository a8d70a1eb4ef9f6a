package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures a KafkaBroker.
type KafkaConfig struct {
	// Brokers are the bootstrap addresses, e.g. "localhost:9092".
	Brokers []string

	// WriteTimeout bounds a single produce request.
	// Default: 10s
	WriteTimeout time.Duration

	// MaxWait bounds how long a fetch waits for new data.
	// Default: 500ms
	MaxWait time.Duration
}

// KafkaBroker is a Broker backed by Apache Kafka.
type KafkaBroker struct {
	config KafkaConfig
	writer *kafka.Writer
}

// NewKafkaBroker creates a broker. No connection is made until the first
// publish or fetch.
func NewKafkaBroker(config KafkaConfig) (*KafkaBroker, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker address is required")
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 500 * time.Millisecond
	}

	return &KafkaBroker{
		config: config,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           config.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Publish writes msg to topic and waits for acknowledgement.
func (b *KafkaBroker) Publish(ctx context.Context, topic string, msg Message) error {
	km := toKafka(msg)
	km.Topic = topic
	if err := b.writer.WriteMessages(ctx, km); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrBrokerClosed
		}
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Consumer joins group on topic. A new group starts at the newest offset,
// so it only sees messages produced after it joined.
func (b *KafkaBroker) Consumer(topic, group string) (Consumer, error) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.config.Brokers,
		GroupID:     group,
		Topic:       topic,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     b.config.MaxWait,
	})
	return &kafkaConsumer{reader: r}, nil
}

// Close flushes pending writes and closes the writer.
func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}

type kafkaConsumer struct {
	reader *kafka.Reader
}

// Next reads and commits the next message for the group.
func (c *kafkaConsumer) Next(ctx context.Context) (Message, error) {
	km, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, ErrBrokerClosed
		}
		return Message{}, err
	}
	return fromKafka(km), nil
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}

func toKafka(msg Message) kafka.Message {
	km := kafka.Message{Key: msg.Key, Value: msg.Value}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return km
}

func fromKafka(km kafka.Message) Message {
	msg := Message{Key: km.Key, Value: km.Value}
	if len(km.Headers) > 0 {
		msg.Headers = make(map[string]string, len(km.Headers))
		for _, h := range km.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
