package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual(epoch)
	var fired []string
	m.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	m.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	m.AfterFunc(1*time.Second, func() { fired = append(fired, "b") })
	require.Equal(t, 3, m.Pending())

	m.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	m.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, epoch.Add(time.Second), m.Now())

	m.Advance(time.Hour)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, epoch.Add(time.Hour+time.Second), m.Now())
}

func TestManualStop(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(time.Minute)
	assert.False(t, fired)
}

func TestManualCallbackArmsWithinWindow(t *testing.T) {
	m := NewManual(epoch)
	var at []time.Time
	m.AfterFunc(time.Second, func() {
		at = append(at, m.Now())
		m.AfterFunc(time.Second, func() { at = append(at, m.Now()) })
	})
	m.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second)}, at)
}

func TestRealFires(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
