package syncx

import (
	"reflect"
	"testing"
)

func TestRingPushUnderCapacity(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a")
	r.Push("b")

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if got := r.Items(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Items() = %v", got)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		if _, evicted := r.Push(i); evicted {
			t.Fatalf("push %d should not evict", i)
		}
	}

	old, evicted := r.Push(4)
	if !evicted || old != 1 {
		t.Errorf("Push(4) = (%d, %v), want (1, true)", old, evicted)
	}
	old, _ = r.Push(5)
	if old != 2 {
		t.Errorf("Push(5) evicted %d, want 2", old)
	}

	if got := r.Items(); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("Items() = %v, want [3 4 5]", got)
	}
	if r.Len() != r.Cap() {
		t.Errorf("Len() = %d, want %d", r.Len(), r.Cap())
	}
}

func TestRingContains(t *testing.T) {
	r := NewRing[string](2)
	r.Push("hello")
	r.Push("world")
	r.Push("again")

	if Contains(r, "hello") {
		t.Error("evicted element should not be found")
	}
	if !Contains(r, "world") || !Contains(r, "again") {
		t.Error("stored elements should be found")
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", r.Len())
	}
	r.Push(9)
	if got := r.Items(); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("Items() = %v, want [9]", got)
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	if r.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", r.Cap())
	}
}
