package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/calgraph/pkg/calgraph/config"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "KAFKA_BROKERS",
		"CALGRAPH_BROKER", "CALGRAPH_TOPIC", "CALGRAPH_AUTH_DISABLED", "JWT_SECRET",
		"CALGRAPH_METRICS", "CALGRAPH_TRACING",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromConfig_Defaults(t *testing.T) {
	s := config.FromConfig(config.New(nil))

	assert.Equal(t, "calgraph.db", s.DatabaseURL)
	assert.Equal(t, ":8080", s.HTTPAddr)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, config.LogText, s.LogFormat)
	assert.Equal(t, config.BrokerMemory, s.Broker)
	assert.Equal(t, "events", s.Topic)
	assert.Equal(t, 5*time.Second, s.PublishTimeout)
	assert.Equal(t, 10*time.Second, s.ShutdownTimeout)
	assert.Equal(t, 2*time.Millisecond, s.LoaderWait)
	assert.Equal(t, 64, s.SubscriberBuf)
	assert.False(t, s.AuthDisabled)
}

func TestFromConfig_KafkaImpliedByBrokers(t *testing.T) {
	cfg := config.New(nil)
	cfg.Set("broker.kafka.brokers", []any{"k1:9092"})

	s := config.FromConfig(cfg)
	assert.Equal(t, config.BrokerKafka, s.Broker)
	assert.Equal(t, []string{"k1:9092"}, s.KafkaBrokers)
}

func TestSettings_Validate(t *testing.T) {
	valid := config.FromConfig(config.New(nil))
	valid.JWTSecret = "secret"

	tests := []struct {
		name    string
		mutate  func(*config.Settings)
		wantErr bool
	}{
		{"valid", func(*config.Settings) {}, false},
		{"auth disabled without secret", func(s *config.Settings) { s.JWTSecret = ""; s.AuthDisabled = true }, false},
		{"missing secret", func(s *config.Settings) { s.JWTSecret = "" }, true},
		{"kafka without brokers", func(s *config.Settings) { s.Broker = config.BrokerKafka }, true},
		{"kafka with brokers", func(s *config.Settings) {
			s.Broker = config.BrokerKafka
			s.KafkaBrokers = []string{"k1:9092"}
		}, false},
		{"unknown broker", func(s *config.Settings) { s.Broker = "nats" }, true},
		{"unknown log format", func(s *config.Settings) { s.LogFormat = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "calgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"http:\n  addr: \":9000\"\nbroker:\n  topic: from-file\nauth:\n  jwt_secret: file-secret\n"), 0o600))

	t.Setenv("CALGRAPH_TOPIC", "from-env")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	s, err := config.Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9000", s.HTTPAddr)
	assert.Equal(t, "from-env", s.Topic)
	assert.Equal(t, "file-secret", s.JWTSecret)
	assert.Equal(t, config.BrokerKafka, s.Broker)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, s.KafkaBrokers)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte(
		"CALGRAPH_AUTH_DISABLED=true\nDATABASE_URL=postgres://localhost/calendar\n"), 0o600))
	// godotenv writes straight into the process environment.
	t.Cleanup(func() {
		os.Unsetenv("CALGRAPH_AUTH_DISABLED")
		os.Unsetenv("DATABASE_URL")
	})

	s, err := config.Load("", envPath)
	require.NoError(t, err)

	assert.True(t, s.AuthDisabled)
	assert.Equal(t, "postgres://localhost/calendar", s.DatabaseURL)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing config file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := config.Load("", filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err, "no JWT secret and auth enabled")
	})
}

func TestRead_SkipsValidation(t *testing.T) {
	clearEnv(t)

	s, err := config.Read("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, s.JWTSecret)
	assert.Error(t, s.Validate())
}
