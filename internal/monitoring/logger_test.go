package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters_RoutesStreams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag, Trace: &trace})
	t.Cleanup(func() { SetLogWriters(LogWriters{}) })

	Opsf("crash at %d", 1)
	Diagf("turning %.1f", 12.5)
	Tracef("tx %q", "f")

	if !strings.Contains(ops.String(), "crash at 1") {
		t.Errorf("ops stream = %q", ops.String())
	}
	if !strings.Contains(diag.String(), "turning 12.5") {
		t.Errorf("diag stream = %q", diag.String())
	}
	if !strings.Contains(trace.String(), `tx "f"`) {
		t.Errorf("trace stream = %q", trace.String())
	}
	if strings.Contains(ops.String(), "turning") {
		t.Error("diag message leaked into ops stream")
	}
}

func TestSetLogWriters_NilDisables(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops})
	t.Cleanup(func() { SetLogWriters(LogWriters{}) })

	// Must not panic with nil diag/trace loggers.
	Diagf("ignored")
	Tracef("ignored")
	if ops.Len() != 0 {
		t.Errorf("expected no ops output, got %q", ops.String())
	}
}
