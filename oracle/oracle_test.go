package oracle

import "testing"

func TestTriggerBoundaries(t *testing.T) {
	s := New(1)
	if s.Trigger(0) {
		t.Fatal("Trigger(0) must be false")
	}
	if s.Trigger(-1) {
		t.Fatal("Trigger(negative) must be false")
	}
	if !s.Trigger(1) {
		t.Fatal("Trigger(1) must be true")
	}
	if !s.Trigger(2) {
		t.Fatal("Trigger(>1) must be true")
	}
}

func TestRandomIndexRange(t *testing.T) {
	s := New(42)
	for i := 0; i < 100; i++ {
		idx := s.RandomIndex(7)
		if idx < 0 || idx >= 7 {
			t.Fatalf("RandomIndex(7) = %d, out of range", idx)
		}
	}
}

func TestDeterministicReplaysFixture(t *testing.T) {
	s := NewDeterministic([]bool{true, false}, []byte{1, 2}, []int{3, 1})
	if !s.Trigger(0.5) {
		t.Fatal("expected first trigger true")
	}
	if s.Trigger(0.5) {
		t.Fatal("expected second trigger false")
	}
	if !s.Trigger(0.5) {
		t.Fatal("expected fixture to wrap around to true")
	}
	if s.RandomByte() != 1 || s.RandomByte() != 2 {
		t.Fatal("unexpected byte fixture sequence")
	}
	if idx := s.RandomIndex(10); idx != 3 {
		t.Fatalf("RandomIndex = %d, want 3", idx)
	}
}
