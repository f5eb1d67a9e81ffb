package clock

import (
	"testing"
	"time"
)

func TestManual(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	c := NewManual(start)

	if !c.Now().Equal(start) {
		t.Errorf("expected %v got %v", start, c.Now())
	}
	if got := c.Advance(15 * time.Second); !got.Equal(start.Add(15 * time.Second)) {
		t.Errorf("expected advance to return the new time, got %v", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("expected set to move the clock back to %v", start)
	}
}
