package diagnostics

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerRespectsThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warning)
	l.Attach(&buf)

	l.Fine("should not appear")
	l.Info("should not appear either")
	l.Warning("warn %d", 1)
	l.Severe("severe %d", 2)

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("sub-threshold messages leaked into output: %q", out)
	}
	if !strings.Contains(out, "[WARNING] warn 1") {
		t.Fatalf("missing WARNING line, got %q", out)
	}
	if !strings.Contains(out, "[SEVERE] severe 2") {
		t.Fatalf("missing SEVERE line, got %q", out)
	}
}

func TestLoggerFansOutToMultipleSinks(t *testing.T) {
	var a, b bytes.Buffer
	l := New(Fine)
	l.Attach(&a)
	l.Attach(&b)

	l.Info("hello")

	if !strings.Contains(a.String(), "hello") {
		t.Fatalf("sink a missing message: %q", a.String())
	}
	if !strings.Contains(b.String(), "hello") {
		t.Fatalf("sink b missing message: %q", b.String())
	}
}

func TestLoggerDetach(t *testing.T) {
	var buf bytes.Buffer
	l := New(Fine)
	l.Attach(&buf)
	l.Detach(&buf)

	l.Info("gone")

	if strings.Contains(buf.String(), "gone") {
		t.Fatalf("detached sink still received output: %q", buf.String())
	}
}
