package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLevel(INFO)

	SetLevel(WARN)
	InfoCF("story", "hidden", nil)
	WarnCF("story", "shown", map[string]interface{}{"character_id": "c1"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered at WARN level: %q", out)
	}
	if !strings.Contains(out, "[WARN] story: shown character_id=c1") {
		t.Fatalf("unexpected log line: %q", out)
	}
}

func TestFormatFields_SortedAndQuoted(t *testing.T) {
	got := formatFields(map[string]interface{}{
		"b":     2,
		"a":     "x",
		"error": "boom happened",
	})
	want := ` a=x b=2 error="boom happened"`
	if got != want {
		t.Fatalf("formatFields = %q, want %q", got, want)
	}
}
