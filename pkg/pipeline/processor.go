package pipeline

import (
	"logalike/pkg/message"
)

// Input produces an unbounded stream of messages. The channel returned by
// Get ends when the input is closed and its internal buffers have drained.
type Input interface {
	Get() <-chan *message.Message
	Close() error
}

// Output consumes messages accepted by the pipeline.
type Output interface {
	Accept(*message.Message)
	Close() error
}

// Processor transforms a message stream into another message stream. The
// returned channel must end once the incoming channel has ended and any
// internal work has finished. Processors with background state additionally
// implement io.Closer, which the runtime invokes on teardown.
type Processor interface {
	Apply(<-chan *message.Message) <-chan *message.Message
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(<-chan *message.Message) <-chan *message.Message

// Apply calls the wrapped function.
func (f ProcessorFunc) Apply(in <-chan *message.Message) <-chan *message.Message {
	return f(in)
}

// Identity returns the neutral processor that forwards its input unchanged.
func Identity() Processor {
	return ProcessorFunc(func(in <-chan *message.Message) <-chan *message.Message {
		return in
	})
}

// Chain composes processors left to right: the first processor sees the
// producer stream, the last feeds the consumer. Chain of nothing is the
// identity.
func Chain(processors ...Processor) Processor {
	return ProcessorFunc(func(in <-chan *message.Message) <-chan *message.Message {
		stream := in
		for _, p := range processors {
			stream = p.Apply(stream)
		}
		return stream
	})
}

// Filter lifts a predicate into a processor that forwards only matching
// messages.
func Filter(predicate func(*message.Message) bool) Processor {
	return ProcessorFunc(func(in <-chan *message.Message) <-chan *message.Message {
		out := make(chan *message.Message)
		go func() {
			defer close(out)
			for m := range in {
				if predicate(m) {
					out <- m
				}
			}
		}()
		return out
	})
}

// Mapper lifts a unary operation into a processor applying it to every
// message.
func Mapper(fn func(*message.Message) *message.Message) Processor {
	return ProcessorFunc(func(in <-chan *message.Message) <-chan *message.Message {
		out := make(chan *message.Message)
		go func() {
			defer close(out)
			for m := range in {
				out <- fn(m)
			}
		}()
		return out
	})
}
