package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" || m["message"] != "hello" || m["err"] != "boom" {
		t.Fatalf("unexpected record: %v", m)
	}
	if n, _ := m["n"].(float64); n != 3 {
		t.Fatalf("n=%v", m["n"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("dropped")
	log.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestZeroAndNop(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	zero.Info("no panic")
	if Nop().IsZero() {
		t.Fatalf("Nop should not be zero")
	}
}

func TestFormatTelegramJSON(t *testing.T) {
	got := formatTelegramJSON([]byte(`{"level":"warn","message":"persist failed","symbol":"USD","time":"x"}`))
	if !strings.HasPrefix(got, "[WARN] persist failed") || !strings.Contains(got, "- symbol=USD") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "time=") {
		t.Fatalf("time should be omitted: %q", got)
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "INFO", "warning"} {
		if !ValidLevel(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	if ValidLevel("loud") {
		t.Fatalf("loud should be invalid")
	}
}
