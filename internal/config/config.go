package config

import (
	"time"
)

// Config is the full configuration of the logalike daemon.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Input      InputConfig
	Processing ProcessingConfig
	Output     OutputConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type InputConfig struct {
	Type           string        `mapstructure:"type"`
	Files          []string      `mapstructure:"files"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	StartPolicy    string        `mapstructure:"start_policy"`
	StartOffset    int64         `mapstructure:"start_offset"`
	BufferSize     int           `mapstructure:"buffer_size"`
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	ReopenEachPoll bool          `mapstructure:"reopen_each_poll"`
	StoreDirectory string        `mapstructure:"store_directory"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProcessingConfig struct {
	Filters    []string         `mapstructure:"filters"`
	KeyValue   KeyValueConfig   `mapstructure:"keyvalue"`
	Repetition RepetitionConfig `mapstructure:"repetition"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
}

type KeyValueConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Field         string `mapstructure:"field"`
	PairDelimiter string `mapstructure:"pair_delimiter"`
	KVDelimiter   string `mapstructure:"kv_delimiter"`
}

type RepetitionConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Window  time.Duration `mapstructure:"window"`
	Field   string        `mapstructure:"field"`
}

type ThrottleConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Cycle   time.Duration `mapstructure:"cycle"`
	Limit   int64         `mapstructure:"limit"`
	Field   string        `mapstructure:"field"`
}

type OutputConfig struct {
	MongoDB            MongoDBConfig     `mapstructure:"mongodb"`
	FlushInterval      time.Duration     `mapstructure:"flush_interval"`
	MaxActions         int               `mapstructure:"max_actions"`
	MaxConcurrent      int               `mapstructure:"max_concurrent"`
	DefaultDestination DestinationConfig `mapstructure:"default_destination"`
	DocumentType       string            `mapstructure:"document_type"`
	TypePolicy         string            `mapstructure:"type_policy"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type DestinationConfig struct {
	Prefix    string `mapstructure:"prefix"`
	Frequency string `mapstructure:"frequency"`
}
