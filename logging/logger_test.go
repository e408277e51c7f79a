package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerWritesMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelDebug, Output: &buf})

	log.Info("hello", "op", "read", "path", "/tmp/x")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Fatalf("output missing message: %s", out)
	}
	if !strings.Contains(out, "read") || !strings.Contains(out, "/tmp/x") {
		t.Fatalf("output missing fields: %s", out)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelError, Output: &buf})

	log.Debug("should not appear")
	log.Info("also should not appear")

	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got: %s", buf.String())
	}

	log.Error("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatal("expected error-level message to be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"0": LevelError, "error": LevelError,
		"1": LevelWarn, "warn": LevelWarn,
		"2": LevelInfo, "info": LevelInfo,
		"3": LevelDebug, "debug": LevelDebug,
		"":    LevelInfo,
		"huh": LevelInfo,
	}
	for s, want := range cases {
		if got := ParseLevel(s); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}
