package timeutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_AfterFunc(t *testing.T) {
	t.Parallel()

	clock := RealClock{}
	done := make(chan struct{})
	timer := clock.AfterFunc(5*time.Millisecond, func() { close(done) })
	defer timer.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestRealClock_StopPreventsCallback(t *testing.T) {
	t.Parallel()

	clock := RealClock{}
	var fired atomic.Bool
	timer := clock.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, timer.Stop())

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestMockClock_AdvanceFiresDueTimers(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	var order []string
	clock.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	clock.AfterFunc(time.Second, func() { order = append(order, "early") })
	clock.AfterFunc(10*time.Second, func() { order = append(order, "never") })

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, order)
	assert.Equal(t, 3, clock.Pending())

	clock.Advance(time.Second + time.Millisecond)
	require.Equal(t, []string{"early", "late"}, order)
	assert.Equal(t, 1, clock.Pending())
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
}

func TestMockClock_StoppedTimerNeverFires(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Unix(0, 0))
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports inactive")

	clock.Advance(time.Minute)
	assert.False(t, fired)
	assert.Zero(t, clock.Pending())
}

func TestMockClock_CallbackMayScheduleTimer(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Unix(0, 0))
	count := 0
	var schedule func()
	schedule = func() {
		count++
		clock.AfterFunc(time.Second, schedule)
	}
	clock.AfterFunc(time.Second, schedule)

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	clock.Advance(time.Second)
	assert.Equal(t, 3, count)
}

func TestMockClock_SinceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Unix(100, 0)
	clock := NewMockClock(start)
	clock.Set(start.Add(5 * time.Second))
	assert.Equal(t, 5*time.Second, clock.Since(start))
}
