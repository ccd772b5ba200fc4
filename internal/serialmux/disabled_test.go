package serialmux

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDisabledSerialMux_Exchange(t *testing.T) {
	d := NewDisabledSerialMux()
	if _, err := d.Exchange(context.Background(), NewFrame('f', 10), true, time.Second); err != ErrTimeout {
		t.Errorf("Exchange() error = %v, want ErrTimeout", err)
	}
	if _, err := d.Exchange(context.Background(), Frame{Op: 'c'}, false, time.Second); err != nil {
		t.Errorf("Exchange() without reply error = %v", err)
	}
}

func TestDisabledSerialMux_CloseClosesSubscribers(t *testing.T) {
	d := NewDisabledSerialMux()
	_, ch := d.Subscribe()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}
	_, late := d.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing after close should return a closed channel")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestDisabledSerialMux_AdminRoute(t *testing.T) {
	d := NewDisabledSerialMux()
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/serial-disabled", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "serial disabled" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

var (
	_ SerialMuxInterface = (*DisabledSerialMux)(nil)
	_ SerialMuxInterface = (*SerialMux[*TestableSerialPort])(nil)
)
