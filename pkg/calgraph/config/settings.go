package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Broker kinds.
const (
	BrokerMemory = "memory"
	BrokerKafka  = "kafka"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// envBindings maps environment variables onto config paths.
var envBindings = map[string]string{
	"DATABASE_URL":           "database.url",
	"HTTP_ADDR":              "http.addr",
	"LOG_LEVEL":              "log.level",
	"LOG_FORMAT":             "log.format",
	"KAFKA_BROKERS":          "broker.kafka.brokers",
	"CALGRAPH_BROKER":        "broker.kind",
	"CALGRAPH_TOPIC":         "broker.topic",
	"CALGRAPH_AUTH_DISABLED": "auth.disabled",
	"JWT_SECRET":             "auth.jwt_secret",
	"CALGRAPH_METRICS":       "observability.metrics",
	"CALGRAPH_TRACING":       "observability.tracing",
}

// Settings is the typed application configuration.
type Settings struct {
	DatabaseURL string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	Broker         string
	KafkaBrokers   []string
	Topic          string
	PublishTimeout time.Duration
	SubscriberBuf  int

	// AuthDisabled selects the allow-all policy. Never enable in production.
	AuthDisabled bool
	JWTSecret    string

	LoaderWait time.Duration
	FeedDomain string

	Metrics bool
	Tracing bool
}

// FromConfig reads Settings out of c, applying defaults.
func FromConfig(c Config) Settings {
	db := c.Section("database")
	httpc := c.Section("http")
	logc := c.Section("log")
	broker := c.Section("broker")
	authc := c.Section("auth")
	obs := c.Section("observability")

	s := Settings{
		DatabaseURL:     db.String("url", "calgraph.db"),
		HTTPAddr:        httpc.String("addr", ":8080"),
		ShutdownTimeout: httpc.Duration("shutdown_timeout", 10*time.Second),
		LogLevel:        logc.String("level", "info"),
		LogFormat:       logc.String("format", LogText),
		KafkaBrokers:    broker.Section("kafka").StringSlice("brokers", nil),
		Topic:           broker.String("topic", "events"),
		PublishTimeout:  broker.Duration("publish_timeout", 5*time.Second),
		SubscriberBuf:   broker.Int("subscriber_buffer", 64),
		AuthDisabled:    authc.Bool("disabled", false),
		JWTSecret:       authc.String("jwt_secret", ""),
		LoaderWait:      c.Section("loader").Duration("wait", 2*time.Millisecond),
		FeedDomain:      c.Section("feed").String("domain", "calgraph"),
		Metrics:         obs.Bool("metrics", false),
		Tracing:         obs.Bool("tracing", false),
	}

	defaultBroker := BrokerMemory
	if len(s.KafkaBrokers) > 0 {
		defaultBroker = BrokerKafka
	}
	s.Broker = broker.String("kind", defaultBroker)
	return s
}

// Validate reports settings that cannot work together.
func (s Settings) Validate() error {
	switch s.Broker {
	case BrokerMemory:
	case BrokerKafka:
		if len(s.KafkaBrokers) == 0 {
			return errors.New("config: kafka broker selected but no broker addresses set (KAFKA_BROKERS)")
		}
	default:
		return fmt.Errorf("config: unknown broker kind %q", s.Broker)
	}
	if !s.AuthDisabled && s.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required unless auth is disabled")
	}
	if s.LogFormat != LogText && s.LogFormat != LogJSON {
		return fmt.Errorf("config: unknown log format %q", s.LogFormat)
	}
	return nil
}

// Load reads Settings like Read and validates them.
func Load(path string, envFiles ...string) (Settings, error) {
	s, err := Read(path, envFiles...)
	if err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

// Read builds Settings from path (optional, "" to skip), then the given .env
// files (default ".env", missing files ignored), then the environment.
// Variables already set in the environment win over .env values.
func Read(path string, envFiles ...string) (Settings, error) {
	c := New(nil)
	if path != "" {
		var err error
		if c, err = FromFile(path); err != nil {
			return Settings{}, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	for env, key := range envBindings {
		if v, ok := os.LookupEnv(env); ok {
			c.Set(key, v)
		}
	}

	return FromConfig(c), nil
}
