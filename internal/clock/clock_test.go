package clock

import (
	"testing"
	"time"
)

func TestClock_TickTruncatesToMinute(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	c := New(loc, nil)
	c.now = func() time.Time { return time.Date(2025, 3, 4, 9, 41, 37, 0, time.UTC) }
	c.Tick()

	r := c.Now()
	if r.Display != "10:41" {
		t.Fatalf("expected 10:41, got %q", r.Display)
	}
	if r.Day != "2025-03-04" {
		t.Fatalf("expected 2025-03-04, got %q", r.Day)
	}
	if r.Time.Second() != 0 {
		t.Fatalf("expected truncated time, got %v", r.Time)
	}
}

func TestClock_StartStop(t *testing.T) {
	c := New(time.UTC, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op: %v", err)
	}
}
