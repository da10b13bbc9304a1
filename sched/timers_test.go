package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimersFireAndDeregister(t *testing.T) {
	timers := NewTimers()
	fired := make(chan struct{})
	timers.Schedule("a", 5*time.Millisecond, func() { close(fired) })
	assert.Equal(t, 1, timers.Pending())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return timers.Pending() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestTimersCancel(t *testing.T) {
	timers := NewTimers()
	timers.Schedule("a", time.Hour, func() { t.Error("cancelled timer fired") })

	assert.True(t, timers.Cancel("a"))
	assert.False(t, timers.Cancel("a"), "second cancel reports nothing pending")
	assert.Equal(t, 0, timers.Pending())
}

func TestTimersStopAll(t *testing.T) {
	timers := NewTimers()
	timers.Schedule("a", time.Hour, func() {})
	timers.Schedule("b", time.Hour, func() {})
	assert.Equal(t, 2, timers.Pending())

	timers.StopAll()
	assert.Equal(t, 0, timers.Pending())
}
