package timectrl

import (
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	done := tc.Start(15 * time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
}

func TestTimeControllerNotifiesListeners(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var ticks []time.Time
	tc.AddListener(func(now time.Time) {
		ticks = append(ticks, now)
	})

	<-tc.Start(15 * time.Millisecond)

	if len(ticks) != 3 {
		t.Fatalf("listener fired %d times, want 3", len(ticks))
	}
	for i, tick := range ticks {
		expected := start.Add(time.Duration(i+1) * 5 * time.Millisecond)
		if !tick.Equal(expected) {
			t.Fatalf("tick %d = %v, want %v", i, tick, expected)
		}
	}
}

func TestTimeControllerAfterFiresAtDeadline(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	ch := tc.After(10 * time.Millisecond)
	select {
	case <-ch:
		t.Fatalf("After fired before any tick")
	default:
	}

	<-tc.Start(15 * time.Millisecond)

	select {
	case got := <-ch:
		if got.Before(start.Add(10 * time.Millisecond)) {
			t.Fatalf("After fired at %v, before deadline", got)
		}
	default:
		t.Fatalf("After did not fire by the deadline")
	}
}
