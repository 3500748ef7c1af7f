// Package kafka provides an alternative pipeline input that consumes
// messages from a Kafka topic instead of tailed files. Any producer
// honouring the input contract integrates with the pipeline; this is the
// broker-backed one.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"logalike/internal/logger"
	"logalike/pkg/message"
)

// Converter turns one record value into a message. Returning nil skips the
// record.
type Converter func(value []byte) *message.Message

// DefaultConverter decodes a JSON object into message fields, falling back
// to a single "body" field for records that are not JSON objects.
func DefaultConverter(value []byte) *message.Message {
	var fields map[string]interface{}
	if err := json.Unmarshal(value, &fields); err != nil || fields == nil {
		return message.New().
			Put("body", string(value)).
			PutTimestamp(time.Now())
	}
	m := message.New().PutAll(fields)
	if _, ok := m.Timestamp(); !ok {
		m.PutTimestamp(time.Now())
	}
	return m
}

// Config holds the consumer settings.
type Config struct {
	Brokers   []string
	Topic     string
	GroupID   string
	Converter Converter
	Logger    logger.Logger
}

// Input consumes a Kafka topic and exposes it as a lazy message sequence.
type Input struct {
	cfg    Config
	reader *kafka.Reader
	out    chan *message.Message

	ctx       context.Context
	cancel    context.CancelFunc
	getOnce   sync.Once
	closeOnce sync.Once
	started   bool
	done      chan struct{}
}

// NewInput validates the configuration and builds the reader.
func NewInput(cfg Config) (*Input, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers must be set")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic must be set")
	}
	if cfg.Converter == nil {
		cfg.Converter = DefaultConverter
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Input{
		cfg: cfg,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		out:    make(chan *message.Message),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}, nil
}

// Get returns the message stream, starting the consumer on first call.
func (i *Input) Get() <-chan *message.Message {
	i.getOnce.Do(func() {
		i.started = true
		go i.consume()
	})
	return i.out
}

func (i *Input) consume() {
	defer close(i.done)
	defer close(i.out)
	i.cfg.Logger.Infow("Started consuming",
		"topic", i.cfg.Topic,
		"group_id", i.cfg.GroupID,
	)
	for {
		record, err := i.reader.FetchMessage(i.ctx)
		if err != nil {
			if i.ctx.Err() != nil {
				i.cfg.Logger.Infow("Stopped consuming",
					"topic", i.cfg.Topic,
					"reason", "input closed",
				)
				return
			}
			i.cfg.Logger.Errorw("Error fetching kafka message",
				"error", err,
				"topic", i.cfg.Topic,
			)
			time.Sleep(time.Second)
			continue
		}

		if msg := i.cfg.Converter(record.Value); msg != nil {
			select {
			case i.out <- msg:
			case <-i.ctx.Done():
				return
			}
		}
		if err := i.reader.CommitMessages(i.ctx, record); err != nil && i.ctx.Err() == nil {
			i.cfg.Logger.Warnw("Failed to commit kafka offset",
				"error", err,
				"topic", i.cfg.Topic,
			)
		}
	}
}

// Close stops the consumer; the stream ends once the current fetch
// returns.
func (i *Input) Close() error {
	var err error
	i.closeOnce.Do(func() {
		i.cancel()
		err = i.reader.Close()
		if i.started {
			<-i.done
		}
	})
	return err
}
