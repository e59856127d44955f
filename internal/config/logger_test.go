package config

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	old := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestLoggerVerboseGatesOutput(t *testing.T) {
	quiet := NewLogger(false)
	out := captureStderr(t, func() { quiet.Verboseln("should not appear") })
	if out != "" {
		t.Fatalf("expected no output from a non-verbose logger, got %q", out)
	}

	noisy := NewLogger(true)
	out = captureStderr(t, func() { noisy.Verbosef("value=%d", 42) })
	if out != "value=42\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}
