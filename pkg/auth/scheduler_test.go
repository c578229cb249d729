package auth

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsAfterDelay(t *testing.T) {
	s := NewRefreshScheduler()
	defer s.Cancel()

	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled task never ran")
	}
}

func TestScheduleCancelsPreviousTask(t *testing.T) {
	s := NewRefreshScheduler()
	defer s.Cancel()

	var first, second atomic.Int32
	s.Schedule(50*time.Millisecond, func() { first.Add(1) })
	s.Schedule(20*time.Millisecond, func() { second.Add(1) })

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "superseded task must not run")
	assert.Equal(t, int32(1), second.Load())
}

func TestCancelIdempotent(t *testing.T) {
	s := NewRefreshScheduler()

	var ran atomic.Int32
	s.Schedule(30*time.Millisecond, func() { ran.Add(1) })
	s.Cancel()
	s.Cancel()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
}

func TestTaskReArmsItself(t *testing.T) {
	s := NewRefreshScheduler()
	defer s.Cancel()

	var runs atomic.Int32
	var task func()
	task = func() {
		if runs.Add(1) < 3 {
			s.Schedule(5*time.Millisecond, task)
		}
	}
	s.Schedule(5*time.Millisecond, task)

	assert.Eventually(t, func() bool { return runs.Load() == 3 },
		time.Second, 5*time.Millisecond)
}

func TestZeroDelayDisablesScheduling(t *testing.T) {
	s := NewRefreshScheduler()

	var ran atomic.Int32
	s.Schedule(0, func() { ran.Add(1) })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
}

func TestArmedTracksTimerState(t *testing.T) {
	s := NewRefreshScheduler()
	assert.False(t, s.Armed())

	s.Schedule(time.Hour, func() {})
	assert.True(t, s.Armed())

	s.Cancel()
	assert.False(t, s.Armed())

	// A non-positive delay never arms.
	s.Schedule(0, func() {})
	assert.False(t, s.Armed())
}

func TestSchedulerConcurrentUse(t *testing.T) {
	t.Parallel()

	s := NewRefreshScheduler()
	defer s.Cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Schedule(10*time.Millisecond, func() {})
		}()
		go func() {
			defer wg.Done()
			s.Cancel()
		}()
	}
	wg.Wait()
}

func TestRefreshInterval(t *testing.T) {
	assert.Equal(t, 230*time.Second, RefreshInterval(240*time.Second, 10*time.Second))
	assert.Equal(t, time.Duration(0), RefreshInterval(10*time.Second, 10*time.Second))
	assert.Equal(t, time.Duration(0), RefreshInterval(5*time.Second, 10*time.Second))
}
