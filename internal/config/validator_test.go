package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info"},
		Input: InputConfig{
			Type:          "file",
			Files:         []string{"/var/log/app.log"},
			PollInterval:  500 * time.Millisecond,
			StartPolicy:   "end",
			BufferSize:    4096,
			QueueCapacity: 500,
		},
		Processing: ProcessingConfig{
			Repetition: RepetitionConfig{Enabled: true, Window: 2 * time.Minute, Field: "body"},
			Throttle:   ThrottleConfig{Enabled: true, Cycle: time.Minute, Limit: 100, Field: "host"},
		},
		Output: OutputConfig{
			MongoDB:            MongoDBConfig{URI: "mongodb://localhost:27017", Database: "logalike"},
			FlushInterval:      time.Minute,
			MaxActions:         1000,
			MaxConcurrent:      4,
			DefaultDestination: DestinationConfig{Prefix: "logalike", Frequency: "daily"},
			DocumentType:       "logalike",
			TypePolicy:         "accept",
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsBadConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "no files", mutate: func(c *Config) { c.Input.Files = nil }},
		{name: "unknown input type", mutate: func(c *Config) { c.Input.Type = "socket" }},
		{name: "non-positive poll interval", mutate: func(c *Config) { c.Input.PollInterval = 0 }},
		{name: "zero buffer size", mutate: func(c *Config) { c.Input.BufferSize = 0 }},
		{name: "zero queue capacity", mutate: func(c *Config) { c.Input.QueueCapacity = 0 }},
		{name: "unknown start policy", mutate: func(c *Config) { c.Input.StartPolicy = "middle" }},
		{name: "negative explicit offset", mutate: func(c *Config) {
			c.Input.StartPolicy = "explicit"
			c.Input.StartOffset = -1
		}},
		{name: "kafka without brokers", mutate: func(c *Config) {
			c.Input.Type = "kafka"
			c.Input.Kafka = KafkaConfig{Topic: "lines"}
		}},
		{name: "kafka without topic", mutate: func(c *Config) {
			c.Input.Type = "kafka"
			c.Input.Kafka = KafkaConfig{Brokers: []string{"localhost:9092"}}
		}},
		{name: "repetition without window", mutate: func(c *Config) { c.Processing.Repetition.Window = 0 }},
		{name: "repetition without field", mutate: func(c *Config) { c.Processing.Repetition.Field = "" }},
		{name: "throttle without cycle", mutate: func(c *Config) { c.Processing.Throttle.Cycle = 0 }},
		{name: "throttle negative limit", mutate: func(c *Config) { c.Processing.Throttle.Limit = -1 }},
		{name: "missing mongodb uri", mutate: func(c *Config) { c.Output.MongoDB.URI = "" }},
		{name: "missing database", mutate: func(c *Config) { c.Output.MongoDB.Database = "" }},
		{name: "non-positive flush interval", mutate: func(c *Config) { c.Output.FlushInterval = 0 }},
		{name: "zero max actions", mutate: func(c *Config) { c.Output.MaxActions = 0 }},
		{name: "zero max concurrent", mutate: func(c *Config) { c.Output.MaxConcurrent = 0 }},
		{name: "empty destination prefix", mutate: func(c *Config) { c.Output.DefaultDestination.Prefix = "" }},
		{name: "unknown frequency", mutate: func(c *Config) { c.Output.DefaultDestination.Frequency = "weekly" }},
		{name: "empty document type", mutate: func(c *Config) { c.Output.DocumentType = "" }},
		{name: "unknown type policy", mutate: func(c *Config) { c.Output.TypePolicy = "lenient" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	err := &ValidationError{Field: "output.max_actions", Message: "must be positive"}
	assert.Contains(t, err.Error(), "output.max_actions")
}
