package serialmux

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// DisabledSerialMux stands in for the drive when no controller is attached
// (camera-only bench runs). Every exchange reports ErrTimeout, which the
// actuator layer treats as a failed, abandoned command. Subscribers are
// tracked so their channels close deterministically on Unsubscribe or Close.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan Exchange
	closing     bool
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan Exchange),
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan Exchange) {
	id := randomID()
	ch := make(chan Exchange)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// If already closing, return a closed channel so callers don't block.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

// Exchange never touches hardware.
func (d *DisabledSerialMux) Exchange(ctx context.Context, frame Frame, wantReply bool, _ time.Duration) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !wantReply {
		return 0, nil
	}
	return 0, ErrTimeout
}

func (d *DisabledSerialMux) AllowOpcodes(...byte) {}

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("serial disabled"))
	})
}
