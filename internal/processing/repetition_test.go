package processing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logalike/internal/processing/window"
	"logalike/pkg/message"
)

func bodyMessage(body string) *message.Message {
	return message.New().Put("body", body)
}

// collect drains a processor output channel into a slice until it closes.
func collect(out <-chan *message.Message) (*sync.WaitGroup, *[]*message.Message) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var collected []*message.Message
	wg.Add(1)
	go func() {
		defer wg.Done()
		for m := range out {
			mu.Lock()
			collected = append(collected, m)
			mu.Unlock()
		}
	}()
	return &wg, &collected
}

func TestNewRepetitionProcessorValidation(t *testing.T) {
	_, err := NewRepetitionProcessor(RepetitionConfig{})
	assert.Error(t, err)

	_, err = NewRepetitionProcessor(RepetitionConfig{
		Window:      -time.Second,
		Fingerprint: window.ByField("body"),
	})
	assert.Error(t, err)
}

func TestRepetitionTagsClosedWindows(t *testing.T) {
	proc, err := NewRepetitionProcessor(RepetitionConfig{
		Window:      100 * time.Millisecond,
		Fingerprint: window.ByField("body"),
	})
	require.NoError(t, err)

	in := make(chan *message.Message)
	out := proc.Apply(in)
	wg, collected := collect(out)

	in <- bodyMessage("a")
	in <- bodyMessage("a")
	in <- bodyMessage("a")
	in <- bodyMessage("b")
	close(in)

	// Let the tumbling window close before shutting down.
	time.Sleep(250 * time.Millisecond)
	require.NoError(t, proc.Close())
	wg.Wait()

	var passThrough int
	aggregates := make(map[string]struct {
		repeated bool
		count    int64
	})
	for _, m := range *collected {
		if !m.Contains(RepeatCountField) {
			passThrough++
			continue
		}
		body, _ := m.OptionalString("body")
		repeated, _ := m.OptionalBool(RepeatedField)
		count, _ := m.OptionalInt(RepeatCountField)
		aggregates[body] = struct {
			repeated bool
			count    int64
		}{repeated, count}
	}

	assert.Equal(t, 4, passThrough)
	require.Contains(t, aggregates, "a")
	assert.True(t, aggregates["a"].repeated)
	assert.Equal(t, int64(3), aggregates["a"].count)
	require.Contains(t, aggregates, "b")
	assert.False(t, aggregates["b"].repeated)
	assert.Equal(t, int64(1), aggregates["b"].count)
}

func TestRepetitionMappersAreRoutedByCount(t *testing.T) {
	proc, err := NewRepetitionProcessor(RepetitionConfig{
		Window:      time.Hour,
		Fingerprint: window.ByField("body"),
		RepeatingMapper: func(m *message.Message) *message.Message {
			return m.Put("routed", "repeating")
		},
		NonRepeatingMapper: func(m *message.Message) *message.Message {
			return m.Put("routed", "single")
		},
	})
	require.NoError(t, err)

	in := make(chan *message.Message)
	out := proc.Apply(in)
	wg, collected := collect(out)

	in <- bodyMessage("a")
	in <- bodyMessage("a")
	in <- bodyMessage("b")
	close(in)

	require.NoError(t, proc.Close())
	wg.Wait()

	routes := make(map[string]string)
	for _, m := range *collected {
		if !m.Contains(RepeatCountField) {
			continue
		}
		body, _ := m.OptionalString("body")
		routed, _ := m.OptionalString("routed")
		routes[body] = routed
	}
	assert.Equal(t, map[string]string{"a": "repeating", "b": "single"}, routes)
}

func TestRepetitionPassThroughForwardsImmediately(t *testing.T) {
	proc, err := NewRepetitionProcessor(RepetitionConfig{
		Window:      time.Hour,
		Fingerprint: window.ByField("body"),
	})
	require.NoError(t, err)
	defer proc.Close()

	in := make(chan *message.Message)
	out := proc.Apply(in)

	in <- bodyMessage("a")
	select {
	case m := <-out:
		body, _ := m.OptionalString("body")
		assert.Equal(t, "a", body)
	case <-time.After(time.Second):
		t.Fatal("pass-through message was not forwarded")
	}
	close(in)
}
