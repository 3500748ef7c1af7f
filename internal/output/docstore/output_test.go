package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logalike/internal/logger"
	"logalike/pkg/message"
)

// newCapturingOutput builds an Output whose batcher hands batches to the
// recorder instead of a document store connection.
func newCapturingOutput(t *testing.T, recorder *batchRecorder, maxActions int) *Output {
	t.Helper()
	o := &Output{
		defaultDestination: message.Daily("logalike"),
		documentType:       "logalike",
		logger:             logger.NopLogger(),
		clock: func() time.Time {
			return time.Date(2015, 9, 30, 12, 31, 21, 0, time.UTC)
		},
	}
	b, err := NewBatcher(BatcherConfig{
		FlushInterval: time.Hour,
		MaxActions:    maxActions,
		MaxConcurrent: 1,
	}, recorder.dispatch)
	require.NoError(t, err)
	o.batcher = b
	return o
}

func TestAcceptUsesDefaultDestination(t *testing.T) {
	recorder := &batchRecorder{}
	o := newCapturingOutput(t, recorder, 1)
	defer o.batcher.Close()

	o.Accept(message.New().Put("body", "hello"))

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	batch := recorder.snapshot()[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "logalike-2015.09.30", batch[0].Destination)
}

func TestAcceptFansOutPerDestination(t *testing.T) {
	recorder := &batchRecorder{}
	o := newCapturingOutput(t, recorder, 3)
	defer o.batcher.Close()

	m := message.New().
		Put("body", "hello").
		AddDestinations(
			message.Daily("apps"),
			message.Monthly("archive"),
			message.Constant("audit"),
		)
	o.Accept(m)

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	batch := recorder.snapshot()[0]
	require.Len(t, batch, 3)
	destinations := []string{batch[0].Destination, batch[1].Destination, batch[2].Destination}
	assert.Equal(t, []string{
		"apps-2015.09.30",
		"archive-2015.09.01",
		"audit",
	}, destinations)
	for _, a := range batch {
		assert.NotEmpty(t, a.ID)
	}
}

func TestAcceptNormalisesTimestampFields(t *testing.T) {
	recorder := &batchRecorder{}
	o := newCapturingOutput(t, recorder, 1)
	defer o.batcher.Close()

	o.Accept(message.New().
		Put("body", "hello").
		PutTimestamp(time.Date(2015, 9, 30, 12, 31, 21, 0, time.UTC)))

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	doc := recorder.snapshot()[0][0].Document
	assert.Equal(t, "2015-09-30T12:31:21.000+0000", doc[message.TimestampField])
}

func TestAcceptSynthesisesMissingTimestamp(t *testing.T) {
	recorder := &batchRecorder{}
	o := newCapturingOutput(t, recorder, 1)
	defer o.batcher.Close()

	o.Accept(message.New().Put("body", "hello"))

	require.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	doc := recorder.snapshot()[0][0].Document
	assert.Equal(t, "2015-09-30T12:31:21.000+0000", doc[message.TimestampField])
	assert.Equal(t, "logalike", doc["_type"])
}
