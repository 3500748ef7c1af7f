package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logalike/pkg/message"
)

// sliceInput serves a fixed set of messages and ends the stream when the
// input is closed or the messages run out.
type sliceInput struct {
	messages []*message.Message
	out      chan *message.Message
	once     sync.Once
	closed   chan struct{}
}

func newSliceInput(messages ...*message.Message) *sliceInput {
	return &sliceInput{
		messages: messages,
		out:      make(chan *message.Message),
		closed:   make(chan struct{}),
	}
}

func (i *sliceInput) Get() <-chan *message.Message {
	i.once.Do(func() {
		go func() {
			defer close(i.out)
			for _, m := range i.messages {
				select {
				case i.out <- m:
				case <-i.closed:
					return
				}
			}
		}()
	})
	return i.out
}

func (i *sliceInput) Close() error {
	select {
	case <-i.closed:
	default:
		close(i.closed)
	}
	return nil
}

// collectingOutput records accepted messages.
type collectingOutput struct {
	mu       sync.Mutex
	accepted []*message.Message
	closes   int
}

func (o *collectingOutput) Accept(m *message.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted = append(o.accepted, m)
}

func (o *collectingOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return nil
}

func (o *collectingOutput) snapshot() []*message.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*message.Message(nil), o.accepted...)
}

// closingProcessor tracks whether the runtime invoked its close hook.
type closingProcessor struct {
	mu     sync.Mutex
	closed bool
}

func (p *closingProcessor) Apply(in <-chan *message.Message) <-chan *message.Message {
	return in
}

func (p *closingProcessor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *closingProcessor) wasClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func bodyMessage(body string) *message.Message {
	return message.New().Put("body", body)
}

func TestNewValidation(t *testing.T) {
	output := &collectingOutput{}
	_, err := New(Config{}, nil, output, nil)
	assert.Error(t, err)

	_, err = New(Config{}, newSliceInput(), nil, nil)
	assert.Error(t, err)
}

func TestRunDeliversAllMessages(t *testing.T) {
	input := newSliceInput(bodyMessage("a"), bodyMessage("b"), bodyMessage("c"))
	output := &collectingOutput{}

	p, err := New(Config{Workers: 2}, input, output, nil)
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, output.snapshot(), 3)
}

func TestChainAppliesProcessorsInOrder(t *testing.T) {
	input := newSliceInput(bodyMessage("x"))
	output := &collectingOutput{}

	first := Mapper(func(m *message.Message) *message.Message {
		return m.Put("order", "first")
	})
	second := Mapper(func(m *message.Message) *message.Message {
		order, _ := m.OptionalString("order")
		return m.Put("order", order+",second")
	})

	p, err := New(Config{Workers: 1}, input, output, nil, first, second)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	accepted := output.snapshot()
	require.Len(t, accepted, 1)
	order, _ := accepted[0].OptionalString("order")
	assert.Equal(t, "first,second", order)
}

func TestIdentityIsNeutral(t *testing.T) {
	doubler := Mapper(func(m *message.Message) *message.Message {
		count, _ := m.OptionalInt("count")
		return m.Put("count", count*2)
	})

	in := make(chan *message.Message, 1)
	in <- message.New().Put("count", int64(21))
	close(in)

	out := Chain(Identity(), doubler, Identity()).Apply(in)
	m := <-out
	count, _ := m.OptionalInt("count")
	assert.Equal(t, int64(42), count)

	_, open := <-out
	assert.False(t, open)
}

func TestFilterDropsMessages(t *testing.T) {
	input := newSliceInput(bodyMessage("keep"), bodyMessage("drop"), bodyMessage("keep"))
	output := &collectingOutput{}

	keep := Filter(func(m *message.Message) bool {
		body, _ := m.OptionalString("body")
		return body == "keep"
	})

	p, err := New(Config{Workers: 1}, input, output, nil, keep)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Len(t, output.snapshot(), 2)
}

func TestCloseStopsDeliveryAndReleasesResources(t *testing.T) {
	// An input that produces forever until closed.
	infinite := &sliceInput{out: make(chan *message.Message), closed: make(chan struct{})}
	infinite.once.Do(func() {
		go func() {
			defer close(infinite.out)
			for {
				select {
				case infinite.out <- bodyMessage("m"):
				case <-infinite.closed:
					return
				}
			}
		}()
	})

	output := &collectingOutput{}
	processor := &closingProcessor{}

	p, err := New(Config{Workers: 2}, infinite, output, nil, processor)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(output.snapshot()) > 0
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close must be idempotent")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after close")
	}

	assert.True(t, processor.wasClosed())
	output.mu.Lock()
	closes := output.closes
	output.mu.Unlock()
	assert.Equal(t, 1, closes)
}

func TestContextCancellationClosesPipeline(t *testing.T) {
	infinite := &sliceInput{out: make(chan *message.Message), closed: make(chan struct{})}
	infinite.once.Do(func() {
		go func() {
			defer close(infinite.out)
			for {
				select {
				case infinite.out <- bodyMessage("m"):
				case <-infinite.closed:
					return
				}
			}
		}()
	})
	output := &collectingOutput{}

	p, err := New(Config{Workers: 1}, infinite, output, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(output.snapshot()) > 0
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after context cancellation")
	}
}
