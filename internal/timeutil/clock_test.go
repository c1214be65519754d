package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(250 * time.Millisecond)
	want := start.Add(250 * time.Millisecond)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}

	if got := c.Since(start); got != 250*time.Millisecond {
		t.Errorf("Since(start) = %v, want 250ms", got)
	}
}

func TestMockClockSleepRecords(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))

	done := make(chan struct{})
	go func() {
		c.Sleep(time.Hour) // must not block
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("MockClock.Sleep blocked")
	}

	sleeps := c.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != time.Hour {
		t.Errorf("Sleeps() = %v, want [1h]", sleeps)
	}
}
