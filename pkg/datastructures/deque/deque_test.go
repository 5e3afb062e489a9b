package deque

import (
	"sync"
	"testing"
)

func TestPushPopOwnerOnly(t *testing.T) {
	d := New[int](8)
	for i := 0; i < 5; i++ {
		if !d.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}
	for i := 4; i >= 0; i-- {
		v, ok := d.Pop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %v ok=%v", i, v, ok)
		}
	}
	if _, ok := d.Pop(); ok {
		t.Fatal("expected empty deque")
	}
}

func TestPushFailsWhenFull(t *testing.T) {
	d := New[int](2)
	if !d.Push(1) || !d.Push(2) {
		t.Fatal("expected first two pushes to succeed")
	}
	if d.Push(3) {
		t.Fatal("expected push to fail on full deque")
	}
}

// TestStealNeverDuplicatesAgainstOwnerPop covers spec §8 property 2 at the
// deque level: across many concurrent Pop/Steal races, every item is
// consumed exactly once.
func TestStealNeverDuplicatesAgainstOwnerPop(t *testing.T) {
	const n = 5000
	d := New[int](8192)
	for i := 0; i < n; i++ {
		if !d.Push(i) {
			t.Fatalf("push %d failed", i)
		}
	}

	seen := make([]int32, n)
	var mu sync.Mutex
	record := func(v int) {
		mu.Lock()
		seen[v]++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for th := 0; th < 8; th++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := d.Steal()
				if !ok {
					if d.Len() <= 0 {
						return
					}
					continue
				}
				record(v)
			}
		}()
	}

	for {
		v, ok := d.Pop()
		if !ok {
			break
		}
		record(v)
	}
	wg.Wait()

	for v, count := range seen {
		if count != 1 {
			t.Fatalf("item %d consumed %d times, want 1", v, count)
		}
	}
}

func TestLenEstimate(t *testing.T) {
	d := New[int](16)
	d.Push(1)
	d.Push(2)
	if d.Len() != 2 {
		t.Fatalf("expected len 2, got %d", d.Len())
	}
	d.Pop()
	if d.Len() != 1 {
		t.Fatalf("expected len 1, got %d", d.Len())
	}
}
