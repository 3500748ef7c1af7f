package config

import (
	"fmt"

	"logalike/internal/input/file"
	"logalike/pkg/message"
)

// ValidationError pins a configuration problem to the field that caused
// it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Validate checks the static configuration rules. It fails startup on
// non-positive durations, empty destination prefixes and the other
// bad-configuration cases.
func Validate(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}
	if err := validateInput(cfg.Input); err != nil {
		errors = append(errors, err)
	}
	if err := validateProcessing(cfg.Processing); err != nil {
		errors = append(errors, err)
	}
	if err := validateOutput(cfg.Output); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	return nil
}

func validateInput(cfg InputConfig) error {
	switch cfg.Type {
	case "file":
		if len(cfg.Files) == 0 {
			return &ValidationError{
				Field:   "input.files",
				Message: "at least one file must be configured",
			}
		}
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "input.kafka.brokers",
				Message: "at least one broker must be configured",
			}
		}
		if cfg.Kafka.Topic == "" {
			return &ValidationError{
				Field:   "input.kafka.topic",
				Message: "topic must be set",
			}
		}
	default:
		return &ValidationError{
			Field:   "input.type",
			Message: fmt.Sprintf("must be 'file' or 'kafka', got %q", cfg.Type),
		}
	}

	if cfg.PollInterval <= 0 {
		return &ValidationError{
			Field:   "input.poll_interval",
			Message: "poll interval must be positive",
		}
	}
	if cfg.BufferSize < 1 {
		return &ValidationError{
			Field:   "input.buffer_size",
			Message: fmt.Sprintf("buffer size must be at least 1, got %d", cfg.BufferSize),
		}
	}
	if cfg.QueueCapacity < 1 {
		return &ValidationError{
			Field:   "input.queue_capacity",
			Message: fmt.Sprintf("queue capacity must be at least 1, got %d", cfg.QueueCapacity),
		}
	}
	if _, err := file.ParseStartPolicy(cfg.StartPolicy); err != nil {
		return &ValidationError{
			Field:   "input.start_policy",
			Message: err.Error(),
		}
	}
	if cfg.StartPolicy == "explicit" && cfg.StartOffset < 0 {
		return &ValidationError{
			Field:   "input.start_offset",
			Message: fmt.Sprintf("start offset cannot be negative, got %d", cfg.StartOffset),
		}
	}
	return nil
}

func validateProcessing(cfg ProcessingConfig) error {
	if cfg.Repetition.Enabled {
		if cfg.Repetition.Window <= 0 {
			return &ValidationError{
				Field:   "processing.repetition.window",
				Message: "window duration must be positive",
			}
		}
		if cfg.Repetition.Field == "" {
			return &ValidationError{
				Field:   "processing.repetition.field",
				Message: "fingerprint field must be set",
			}
		}
	}
	if cfg.Throttle.Enabled {
		if cfg.Throttle.Cycle <= 0 {
			return &ValidationError{
				Field:   "processing.throttle.cycle",
				Message: "cycle duration must be positive",
			}
		}
		if cfg.Throttle.Limit < 0 {
			return &ValidationError{
				Field:   "processing.throttle.limit",
				Message: fmt.Sprintf("limit cannot be negative, got %d", cfg.Throttle.Limit),
			}
		}
		if cfg.Throttle.Field == "" {
			return &ValidationError{
				Field:   "processing.throttle.field",
				Message: "fingerprint field must be set",
			}
		}
	}
	if cfg.KeyValue.Enabled && cfg.KeyValue.Field == "" {
		return &ValidationError{
			Field:   "processing.keyvalue.field",
			Message: "field must be set",
		}
	}
	return nil
}

func validateOutput(cfg OutputConfig) error {
	if cfg.MongoDB.URI == "" {
		return &ValidationError{
			Field:   "output.mongodb.uri",
			Message: "document store URI must be set",
		}
	}
	if cfg.MongoDB.Database == "" {
		return &ValidationError{
			Field:   "output.mongodb.database",
			Message: "database must be set",
		}
	}
	if cfg.FlushInterval <= 0 {
		return &ValidationError{
			Field:   "output.flush_interval",
			Message: "flush interval must be positive",
		}
	}
	if cfg.MaxActions < 1 {
		return &ValidationError{
			Field:   "output.max_actions",
			Message: fmt.Sprintf("max actions must be at least 1, got %d", cfg.MaxActions),
		}
	}
	if cfg.MaxConcurrent < 1 {
		return &ValidationError{
			Field:   "output.max_concurrent",
			Message: fmt.Sprintf("max concurrent must be at least 1, got %d", cfg.MaxConcurrent),
		}
	}
	if cfg.DefaultDestination.Prefix == "" {
		return &ValidationError{
			Field:   "output.default_destination.prefix",
			Message: "destination prefix cannot be empty",
		}
	}
	if _, err := message.ParseFrequency(cfg.DefaultDestination.Frequency); err != nil {
		return &ValidationError{
			Field:   "output.default_destination.frequency",
			Message: err.Error(),
		}
	}
	if cfg.DocumentType == "" {
		return &ValidationError{
			Field:   "output.document_type",
			Message: "document type cannot be empty",
		}
	}
	if _, err := message.ParsePolicy(cfg.TypePolicy); err != nil {
		return &ValidationError{
			Field:   "output.type_policy",
			Message: err.Error(),
		}
	}
	return nil
}
