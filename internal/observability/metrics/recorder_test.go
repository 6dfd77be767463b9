package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	assert.False(t, r.HasRecordedMetrics())

	r.RecordOperation(OpJournalWrite, StatusSuccess)
	r.RecordOperation(OpJournalWrite, StatusSuccess)
	r.RecordOperation(OpJournalWrite, StatusError)
	r.RecordDuration(OpJournalWrite, 0.25)
	r.RecordError(OpJournalWrite, "database")

	assert.Equal(t, 2, r.GetOperationCount(OpJournalWrite, StatusSuccess))
	assert.Equal(t, 1, r.GetOperationCount(OpJournalWrite, StatusError))
	assert.Zero(t, r.GetOperationCount(OpMQTTPublish, StatusSuccess))
	assert.Equal(t, []float64{0.25}, r.GetDurations(OpJournalWrite))
	assert.Nil(t, r.GetDurations("missing"))
	assert.Equal(t, 1, r.GetErrorCount(OpJournalWrite, "database"))

	ops := r.GetAllOperations()
	ops[OpJournalWrite][StatusSuccess] = 99
	assert.Equal(t, 2, r.GetOperationCount(OpJournalWrite, StatusSuccess), "copies are detached")
	assert.Equal(t, map[string]map[string]int{OpJournalWrite: {"database": 1}}, r.GetAllErrors())

	r.Reset()
	assert.False(t, r.HasRecordedMetrics())
}

func TestTestRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			for range 50 {
				r.RecordOperation(OpFrame, StatusSuccess)
				r.RecordDuration(OpFrame, 0.001)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1000, r.GetOperationCount(OpFrame, StatusSuccess))
	assert.Len(t, r.GetDurations(OpFrame), 1000)
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.RecordOperation(OpFrame, StatusSuccess)
		r.RecordDuration(OpFrame, 1)
		r.RecordError(OpFrame, "x")
	})
}
