package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchRecorder captures dispatched batches.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]Action
	block   chan struct{}
}

func (r *batchRecorder) dispatch(ctx context.Context, batch []Action) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *batchRecorder) snapshot() [][]Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]Action(nil), r.batches...)
}

func action(id string) Action {
	return Action{ID: id, Destination: "logs", Document: map[string]interface{}{"id": id}}
}

func TestNewBatcherValidation(t *testing.T) {
	recorder := &batchRecorder{}
	tests := []struct {
		name string
		cfg  BatcherConfig
	}{
		{name: "negative interval", cfg: BatcherConfig{FlushInterval: -time.Second}},
		{name: "negative actions", cfg: BatcherConfig{MaxActions: -1}},
		{name: "negative concurrency", cfg: BatcherConfig{MaxConcurrent: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBatcher(tt.cfg, recorder.dispatch)
			assert.Error(t, err)
		})
	}

	_, err := NewBatcher(BatcherConfig{}, nil)
	assert.Error(t, err, "dispatch function is required")
}

func TestFlushOnSize(t *testing.T) {
	recorder := &batchRecorder{}
	b, err := NewBatcher(BatcherConfig{
		FlushInterval: time.Hour,
		MaxActions:    3,
		MaxConcurrent: 1,
	}, recorder.dispatch)
	require.NoError(t, err)
	defer b.Close()

	b.Submit(action("1"))
	b.Submit(action("2"))
	assert.Equal(t, 2, b.Pending())

	b.Submit(action("3"))

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, recorder.snapshot()[0], 3)
	assert.Equal(t, 0, b.Pending())
}

func TestFlushOnInterval(t *testing.T) {
	recorder := &batchRecorder{}
	b, err := NewBatcher(BatcherConfig{
		FlushInterval: 100 * time.Millisecond,
		MaxActions:    3,
		MaxConcurrent: 1,
	}, recorder.dispatch)
	require.NoError(t, err)
	defer b.Close()

	b.Submit(action("1"))
	b.Submit(action("2"))

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond, "batch must be flushed once the interval elapses")
	assert.Len(t, recorder.snapshot()[0], 2)
}

func TestBatchPreservesSubmissionOrder(t *testing.T) {
	recorder := &batchRecorder{}
	b, err := NewBatcher(BatcherConfig{
		FlushInterval: time.Hour,
		MaxActions:    3,
		MaxConcurrent: 1,
	}, recorder.dispatch)
	require.NoError(t, err)
	defer b.Close()

	b.Submit(action("1"))
	b.Submit(action("2"))
	b.Submit(action("3"))

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	batch := recorder.snapshot()[0]
	ids := []string{batch[0].ID, batch[1].ID, batch[2].ID}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestCloseFlushesPending(t *testing.T) {
	recorder := &batchRecorder{}
	b, err := NewBatcher(BatcherConfig{
		FlushInterval: time.Hour,
		MaxActions:    100,
		MaxConcurrent: 1,
	}, recorder.dispatch)
	require.NoError(t, err)

	b.Submit(action("1"))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close must be idempotent")

	batches := recorder.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "1", batches[0][0].ID)
}

func TestConcurrencyLimitBlocksSubmitters(t *testing.T) {
	recorder := &batchRecorder{block: make(chan struct{})}
	b, err := NewBatcher(BatcherConfig{
		FlushInterval: time.Hour,
		MaxActions:    1,
		MaxConcurrent: 1,
	}, recorder.dispatch)
	require.NoError(t, err)

	// First submission fills the single dispatch slot; the dispatcher is
	// blocked on recorder.block.
	b.Submit(action("1"))

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		b.Submit(action("2"))
	}()

	select {
	case <-secondDone:
		t.Fatal("second submission should block while a dispatch is in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(recorder.block)
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second submission did not unblock")
	}

	require.NoError(t, b.Close())
	assert.Len(t, recorder.snapshot(), 2)
}
