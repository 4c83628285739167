package cache

import (
	"fmt"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(capacity int64) (*Cache[string], *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c := New[string](capacity, WithGracePeriod(time.Second), WithClock(clk.Now))
	return c, clk
}

func key(i int) []byte { return []byte(fmt.Sprintf("T%d", i)) }

func TestAddGet(t *testing.T) {
	c, _ := newTestCache(100)
	c.Add([]byte("a"), "A", 10, nil)
	v, ok := c.Get([]byte("a"))
	if !ok || v != "A" {
		t.Errorf("Get(a) = %q, %v, want A, true", v, ok)
	}
	if _, ok := c.Get([]byte("b")); ok {
		t.Error("Get(b) should miss")
	}
	if got := c.CurrentSize(); got != 10 {
		t.Errorf("CurrentSize = %d, want 10", got)
	}
	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestAddReplaces(t *testing.T) {
	c, _ := newTestCache(100)
	deleted := 0
	del := func(string) Release { deleted++; return Keep }
	c.Add([]byte("a"), "A1", 10, del)
	c.Add([]byte("a"), "A2", 20, nil)
	if v, _ := c.Get([]byte("a")); v != "A2" {
		t.Errorf("Get(a) = %q, want A2", v)
	}
	if c.Len() != 1 || c.CurrentSize() != 20 {
		t.Errorf("Len = %d, CurrentSize = %d, want 1, 20", c.Len(), c.CurrentSize())
	}
	if deleted != 1 {
		t.Errorf("old delete function called %d times, want 1", deleted)
	}
}

func TestEvictionWithGrace(t *testing.T) {
	c, clk := newTestCache(100)
	var freed []string
	del := func(v string) Release {
		freed = append(freed, v)
		return Free
	}
	// T0..T9 are added in order, so T0 is the least recently used. The
	// cache goes over capacity at T6; those passes only arm grace timers.
	for i := range 10 {
		c.Add(key(i), fmt.Sprintf("T%d", i), 15, del)
	}
	// Touch every entry: all timers are cleared, LRU order is T0..T9.
	for i := range 10 {
		c.Get(key(i))
	}

	c.Add(key(10), "T10", 15, del)
	if got := c.CurrentSize(); got != 165 {
		t.Fatalf("CurrentSize after add = %d, want 165", got)
	}
	if len(freed) != 0 {
		t.Fatalf("freed %v during the first pass, want nothing", freed)
	}

	// Within the grace period nothing happens.
	clk.Advance(500 * time.Millisecond)
	c.Cleanup()
	if len(freed) != 0 {
		t.Fatalf("freed %v before the grace period elapsed", freed)
	}

	clk.Advance(time.Second)
	c.Cleanup()
	want := []string{"T0", "T1", "T2", "T3", "T4"}
	if fmt.Sprint(freed) != fmt.Sprint(want) {
		t.Errorf("freed %v, want %v", freed, want)
	}
	if got := c.CurrentSize(); got != 90 {
		t.Errorf("CurrentSize = %d, want 90", got)
	}
	if got := c.Stats().Evictions; got != 5 {
		t.Errorf("Evictions = %d, want 5", got)
	}
	for i := 5; i <= 10; i++ {
		if !c.Contains(key(i)) {
			t.Errorf("T%d was evicted", i)
		}
	}
}

func TestGetClearsGrace(t *testing.T) {
	c, clk := newTestCache(20)
	c.Add([]byte("a"), "A", 15, nil)
	c.Add([]byte("b"), "B", 15, nil) // Arms the timer of a.
	clk.Advance(2 * time.Second)
	c.Get([]byte("a")) // Clears it and makes b the oldest.
	c.Cleanup()        // Arms b, a is still fresh.
	if !c.Contains([]byte("a")) || !c.Contains([]byte("b")) {
		t.Fatal("no entry should be freed yet")
	}
	clk.Advance(2 * time.Second)
	c.Cleanup()
	if c.Contains([]byte("b")) {
		t.Error("b should be freed")
	}
	if !c.Contains([]byte("a")) {
		t.Error("a should stay")
	}
}

func TestTenantKeep(t *testing.T) {
	c, clk := newTestCache(10)
	running := true
	calls := 0
	c.Add([]byte("loading"), "L", 10, func(string) Release {
		calls++
		if running {
			return Keep
		}
		return Free
	})
	c.Add([]byte("other"), "O", 5, nil) // 15 > 10: arms the timer.

	clk.Advance(2 * time.Second)
	c.Cleanup()
	if calls != 1 || !c.Contains([]byte("loading")) {
		t.Fatalf("calls = %d, loading kept = %v", calls, c.Contains([]byte("loading")))
	}
	if got := c.Stats().Keeps; got != 1 {
		t.Errorf("Keeps = %d, want 1", got)
	}

	// The timer was cleared by Keep: the next pass only re-arms it.
	c.Get([]byte("other"))
	clk.Advance(2 * time.Second)
	c.Cleanup()
	if calls != 1 {
		t.Errorf("delete called %d times, want 1", calls)
	}

	running = false
	c.Get([]byte("other"))
	clk.Advance(2 * time.Second)
	c.Cleanup()
	if c.Contains([]byte("loading")) {
		t.Error("loading should be freed once its loader completed")
	}
	if got := c.CurrentSize(); got != 5 {
		t.Errorf("CurrentSize = %d, want 5", got)
	}
}

func TestSetCost(t *testing.T) {
	c, clk := newTestCache(100)
	c.Add([]byte("a"), "A", 1, nil)
	c.Add([]byte("b"), "B", 1, nil)
	c.SetCost([]byte("a"), 60)
	c.SetCost([]byte("b"), 60) // Over capacity: arms a.
	if got := c.CurrentSize(); got != 120 {
		t.Fatalf("CurrentSize = %d, want 120", got)
	}
	clk.Advance(2 * time.Second)
	c.SetCost([]byte("missing"), 1000)
	c.Cleanup()
	if c.Contains([]byte("a")) || !c.Contains([]byte("b")) {
		t.Errorf("a should be freed, b kept")
	}
}

func TestPurge(t *testing.T) {
	c, _ := newTestCache(1000)
	for i := range 6 {
		c.Add(key(i), fmt.Sprint(i), 10, func(v string) Release {
			if v == "5" {
				return Keep
			}
			return Free
		})
	}
	n := c.Purge(func(k []byte, v string) bool { return v != "0" })
	if n != 4 {
		t.Errorf("Purge = %d, want 4", n)
	}
	if c.Len() != 2 || !c.Contains(key(0)) || !c.Contains(key(5)) {
		t.Errorf("remaining entries: %d", c.Len())
	}
}
