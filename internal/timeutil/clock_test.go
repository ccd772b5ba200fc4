package timeutil

import (
	"testing"
	"time"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	c.Sleep(time.Millisecond)
	if c.Since(start) < time.Millisecond {
		t.Errorf("Since() = %v, want >= 1ms", c.Since(start))
	}
}

func TestMockClock_SleepRecordsAndAdvances(t *testing.T) {
	base := time.Date(2017, time.April, 22, 10, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	c.Sleep(500 * time.Millisecond)
	c.Sleep(time.Second)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 {
		t.Fatalf("len(Sleeps()) = %d, want 2", len(sleeps))
	}
	if sleeps[0] != 500*time.Millisecond || sleeps[1] != time.Second {
		t.Errorf("Sleeps() = %v", sleeps)
	}
	if got := c.TotalSlept(); got != 1500*time.Millisecond {
		t.Errorf("TotalSlept() = %v, want 1.5s", got)
	}
	if got := c.Since(base); got != 1500*time.Millisecond {
		t.Errorf("Since(base) = %v, want 1.5s", got)
	}
}

func TestMockClock_SleepsIsACopy(t *testing.T) {
	c := NewMockClock(time.Time{})
	c.Sleep(time.Second)
	s := c.Sleeps()
	s[0] = 0
	if c.Sleeps()[0] != time.Second {
		t.Error("mutating Sleeps() result changed the clock's record")
	}
}

func TestMockClock_Advance(t *testing.T) {
	base := time.Date(2017, time.April, 22, 10, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	c.Advance(3 * time.Minute)
	if !c.Now().Equal(base.Add(3 * time.Minute)) {
		t.Errorf("Now() = %v", c.Now())
	}
	if len(c.Sleeps()) != 0 {
		t.Error("Advance must not record a sleep")
	}
}
