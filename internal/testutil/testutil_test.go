package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
)

// recordingTB keeps the failures reported to it instead of failing the test.
type recordingTB struct {
	testing.TB
	errors []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	tb := &recordingTB{}
	AssertStatusCode(tb, http.StatusOK, http.StatusOK)
	if len(tb.errors) != 0 {
		t.Fatalf("matching codes reported %v", tb.errors)
	}

	AssertStatusCode(tb, http.StatusOK, http.StatusBadRequest)
	if len(tb.errors) != 1 || tb.errors[0] != "status code = 200, want 400" {
		t.Errorf("mismatch reported %v", tb.errors)
	}
}

func TestLocalForm(t *testing.T) {
	t.Parallel()

	req := LocalForm(http.MethodPost, "/debug/send-command-api", url.Values{"command": {"f 12"}})
	if req.RemoteAddr != LoopbackAddr {
		t.Errorf("RemoteAddr = %q, want %q", req.RemoteAddr, LoopbackAddr)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got)
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != "command=f+12" {
		t.Errorf("body = %q", body)
	}

	bare := LocalForm(http.MethodGet, "/debug/backup", nil)
	if bare.Header.Get("Content-Type") != "" {
		t.Error("a nil form should not set a content type")
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, r.RemoteAddr)
	})
	rec := Serve(h, LocalRequest(http.MethodGet, "/", nil))
	AssertStatusCode(t, rec.Code, http.StatusTeapot)
	if rec.Body.String() != LoopbackAddr {
		t.Errorf("body = %q", rec.Body.String())
	}
}
