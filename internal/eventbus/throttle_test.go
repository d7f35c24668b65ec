package eventbus

import (
	"testing"
	"time"
)

func TestTokenThrottleFiresEveryN(t *testing.T) {
	th := NewTokenThrottle(10, time.Hour) // interval unreachable, isolate the count path
	for i := 0; i < 9; i++ {
		if th.Tick() {
			t.Fatalf("Tick() fired early at count %d", i+1)
		}
	}
	if !th.Tick() {
		t.Fatal("Tick() should fire on the 10th token")
	}
}

func TestTokenThrottleFiresOnInterval(t *testing.T) {
	th := NewTokenThrottle(1000, 10*time.Millisecond)
	th.Tick()
	time.Sleep(15 * time.Millisecond)
	if !th.Tick() {
		t.Fatal("Tick() should fire once the interval elapses")
	}
}

func TestTokenThrottleResetClearsCount(t *testing.T) {
	th := NewTokenThrottle(2, time.Hour)
	th.Tick()
	th.Reset()
	if th.Tick() {
		t.Fatal("Tick() fired immediately after Reset")
	}
}
