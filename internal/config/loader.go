package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"logalike/internal/constants"
)

// Load reads, defaults, unmarshals and validates the configuration file.
func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("input.type", "file")
	viper.SetDefault("input.poll_interval", constants.DefaultPollInterval)
	viper.SetDefault("input.start_policy", "end")
	viper.SetDefault("input.buffer_size", constants.DefaultBufferSize)
	viper.SetDefault("input.queue_capacity", constants.DefaultQueueCapacity)
	viper.SetDefault("input.reopen_each_poll", false)

	viper.SetDefault("processing.repetition.window", constants.DefaultRepetitionWindow)

	viper.SetDefault("output.flush_interval", constants.DefaultFlushInterval)
	viper.SetDefault("output.max_actions", constants.DefaultMaxActions)
	viper.SetDefault("output.max_concurrent", constants.DefaultMaxConcurrent)
	viper.SetDefault("output.default_destination.prefix", constants.DefaultDestination)
	viper.SetDefault("output.default_destination.frequency", "daily")
	viper.SetDefault("output.document_type", constants.DefaultDocumentType)
	viper.SetDefault("output.type_policy", "accept")
}

func bindEnvVariables() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("logging.level", "LOGGING_LEVEL")

	viper.BindEnv("input.type", "INPUT_TYPE")
	viper.BindEnv("input.store_directory", "INPUT_STORE_DIRECTORY")
	viper.BindEnv("input.kafka.brokers", "INPUT_KAFKA_BROKERS")
	viper.BindEnv("input.kafka.topic", "INPUT_KAFKA_TOPIC")
	viper.BindEnv("input.kafka.group_id", "INPUT_KAFKA_GROUP_ID")

	viper.BindEnv("output.mongodb.uri", "OUTPUT_MONGODB_URI")
	viper.BindEnv("output.mongodb.database", "OUTPUT_MONGODB_DATABASE")
}
