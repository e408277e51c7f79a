package faultop

import "testing"

func TestOpStringRoundTrip(t *testing.T) {
	for _, op := range All() {
		got, err := Parse(op.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", op.String(), err)
		}
		if got != op {
			t.Errorf("Parse(%q) = %v, want %v", op.String(), got, op)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("frobnicate"); err == nil {
		t.Fatal("expected error for unknown operation name")
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	op, err := Parse("  ReAd  ")
	if err != nil {
		t.Fatal(err)
	}
	if op != Read {
		t.Errorf("got %v, want Read", op)
	}
}
