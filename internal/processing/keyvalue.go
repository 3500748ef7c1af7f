package processing

import (
	"fmt"
	"regexp"

	"logalike/pkg/message"
)

// KeyValueConfig configures a key-value extraction mapper.
type KeyValueConfig struct {
	// Field is the string field holding the key-value pairs. Required.
	Field string
	// PairDelimiter is the regex separating key-value pairs from each
	// other. Defaults to whitespace runs.
	PairDelimiter string
	// KVDelimiter is the regex separating a key from its value. Defaults
	// to "=".
	KVDelimiter string
	// Parser merges one extracted pair into the message. Defaults to
	// putting the value under the key.
	Parser func(m *message.Message, key, value string) *message.Message
}

// NewKeyValueMapper builds a mapper that extracts key-value pairs from one
// field and merges them into the message. Messages without the field pass
// unchanged.
func NewKeyValueMapper(cfg KeyValueConfig) (Mapper, error) {
	if cfg.Field == "" {
		return nil, fmt.Errorf("key-value field must be set")
	}
	if cfg.PairDelimiter == "" {
		cfg.PairDelimiter = `\s+`
	}
	if cfg.KVDelimiter == "" {
		cfg.KVDelimiter = "="
	}
	if cfg.Parser == nil {
		cfg.Parser = func(m *message.Message, key, value string) *message.Message {
			return m.Put(key, value)
		}
	}
	pairDelimiter, err := regexp.Compile(cfg.PairDelimiter)
	if err != nil {
		return nil, fmt.Errorf("compiling pair delimiter %q: %w", cfg.PairDelimiter, err)
	}
	kvDelimiter, err := regexp.Compile(cfg.KVDelimiter)
	if err != nil {
		return nil, fmt.Errorf("compiling key-value delimiter %q: %w", cfg.KVDelimiter, err)
	}

	return func(m *message.Message) *message.Message {
		value, ok := m.OptionalString(cfg.Field)
		if !ok {
			return m
		}
		for _, pair := range pairDelimiter.Split(value, -1) {
			if pair == "" {
				continue
			}
			keyAndValue := kvDelimiter.Split(pair, 2)
			if len(keyAndValue) < 2 {
				continue
			}
			m = cfg.Parser(m, keyAndValue[0], keyAndValue[1])
		}
		return m
	}, nil
}
