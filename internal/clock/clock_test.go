package clock

import (
	"testing"
	"time"
)

func TestFake_FiresInDeadlineOrder(t *testing.T) {
	f := NewFake(time.Unix(1700000000, 0).UTC())
	var order []string
	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	f.AfterFunc(1*time.Second, func() { order = append(order, "a") })

	f.Advance(1500 * time.Millisecond)
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("expected only a to fire, got %v", order)
	}
	f.Advance(time.Second)
	if len(order) != 2 || order[1] != "b" {
		t.Fatalf("expected b second, got %v", order)
	}
}

func TestFake_StopPreventsFiring(t *testing.T) {
	f := NewFake(time.Unix(1700000000, 0).UTC())
	fired := false
	tm := f.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatalf("expected stop to report armed timer")
	}
	f.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
	if f.Pending() != 0 {
		t.Fatalf("expected no pending timers")
	}
}

func TestFake_RearmedTimerFiresWithinAdvance(t *testing.T) {
	f := NewFake(time.Unix(1700000000, 0).UTC())
	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		f.AfterFunc(time.Second, tick)
	}
	f.AfterFunc(time.Second, tick)

	f.Advance(3 * time.Second)
	if ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks)
	}
}

func TestDispatch_PostsCallbacks(t *testing.T) {
	f := NewFake(time.Unix(1700000000, 0).UTC())
	var posted []func()
	c := Dispatch(f, func(fn func()) { posted = append(posted, fn) })

	ran := false
	c.AfterFunc(time.Second, func() { ran = true })
	f.Advance(time.Second)
	if ran {
		t.Fatalf("callback should be posted, not run inline")
	}
	if len(posted) != 1 {
		t.Fatalf("expected 1 posted callback, got %d", len(posted))
	}
	posted[0]()
	if !ran {
		t.Fatalf("expected posted callback to run")
	}
}
