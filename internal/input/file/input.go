package file

import (
	"fmt"
	"sync"
	"time"

	"logalike/pkg/message"
)

// Converter turns a raw line into a message. Returning nil skips the line.
type Converter func(line string) *message.Message

// DefaultConverter builds an untyped message with the line under "body" and
// the read time under "@timestamp".
func DefaultConverter(line string) *message.Message {
	return message.New().
		Put("body", line).
		PutTimestamp(time.Now())
}

// Input adapts a Factory's line queue to the pipeline input contract: a
// lazy, conceptually infinite message sequence that ends once the factory
// is closed and the queue has drained.
type Input struct {
	factory *Factory
	convert Converter

	once sync.Once
	out  chan *message.Message
}

// NewInput wraps the factory. The converter defaults to DefaultConverter.
func NewInput(factory *Factory, convert Converter) (*Input, error) {
	if factory == nil {
		return nil, fmt.Errorf("factory must be set")
	}
	if convert == nil {
		convert = DefaultConverter
	}
	return &Input{
		factory: factory,
		convert: convert,
		out:     make(chan *message.Message),
	}, nil
}

// Get returns the message stream. The pump starts on first call; later
// calls return the same channel.
func (i *Input) Get() <-chan *message.Message {
	i.once.Do(func() {
		go func() {
			defer close(i.out)
			for line := range i.factory.Lines() {
				if msg := i.convert(line); msg != nil {
					i.out <- msg
				}
			}
		}()
	})
	return i.out
}

// Close shuts the factory down; the stream ends after draining.
func (i *Input) Close() error {
	return i.factory.Close()
}
