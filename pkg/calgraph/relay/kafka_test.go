package relay

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaBroker_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaBroker(KafkaConfig{})
	assert.Error(t, err)
}

func TestNewKafkaBroker_Defaults(t *testing.T) {
	b, err := NewKafkaBroker(KafkaConfig{Brokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	defer b.Close()

	assert.NotZero(t, b.config.WriteTimeout)
	assert.NotZero(t, b.config.MaxWait)
	assert.Equal(t, kafka.RequireAll, b.writer.RequiredAcks)
}

func TestKafkaMessageConversion(t *testing.T) {
	msg := Message{
		Key:   []byte("12"),
		Value: []byte(`{"id":"12"}`),
		Headers: map[string]string{
			HeaderMessageID:   "m-1",
			HeaderContentType: ContentTypeJSON,
		},
	}

	km := toKafka(msg)
	assert.Equal(t, msg.Key, km.Key)
	assert.Len(t, km.Headers, 2)

	assert.Equal(t, msg, fromKafka(km))
}

func TestFromKafka_NoHeaders(t *testing.T) {
	got := fromKafka(kafka.Message{Value: []byte("x")})
	assert.Nil(t, got.Headers)
	assert.Equal(t, []byte("x"), got.Value)
}
