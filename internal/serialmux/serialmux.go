// Serialmux provides an abstraction over the serial link to the drive
// controller. Commands are strictly one at a time: a frame is written and the
// single reply byte is awaited before the next frame may go out. Observers can
// subscribe to a feed of completed exchanges.
package serialmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/cubenav/internal/monitoring"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	ErrTimeout     = errors.New("timed out waiting for reply")
	ErrClosed      = errors.New("serial mux closed")
)

// Exchange is one completed command round trip.
type Exchange struct {
	Time     time.Time     `json:"time"`
	Frame    Frame         `json:"-"`
	Command  string        `json:"command"`
	Reply    byte          `json:"reply"`
	HasReply bool          `json:"has_reply"`
	Duration time.Duration `json:"duration_ns"`
	Err      string        `json:"error,omitempty"`
}

func (e Exchange) String() string {
	switch {
	case e.Err != "":
		return fmt.Sprintf("%s -> error: %s", e.Command, e.Err)
	case e.HasReply:
		return fmt.Sprintf("%s -> %q", e.Command, e.Reply)
	default:
		return e.Command
	}
}

// SerialMux owns a serial port and serialises every exchange on it.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan Exchange
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
	allowed      map[byte]bool
	now          func() time.Time
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Exchange writes frame and, when wantReply is set, waits up to timeout
	// for one reply byte.
	Exchange(ctx context.Context, frame Frame, wantReply bool, timeout time.Duration) (byte, error)
	// Subscribe creates a new channel receiving every completed exchange.
	// The channel ID is used when unsubscribing.
	Subscribe() (string, chan Exchange)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// AllowOpcodes sets the opcodes the admin send-command route accepts.
	AllowOpcodes(ops ...byte)
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux over an already opened port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan Exchange),
		allowed:     make(map[byte]bool),
		now:         time.Now,
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan Exchange) {
	id := randomID()
	ch := make(chan Exchange, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// AllowOpcodes replaces the admin route allow-list.
func (s *SerialMux[T]) AllowOpcodes(ops ...byte) {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	s.allowed = make(map[byte]bool, len(ops))
	for _, op := range ops {
		s.allowed[op] = true
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Exchange sends one frame and optionally reads the one-byte reply. It holds
// the command lock for the whole round trip, so callers on other goroutines
// (the admin routes) can never interleave a frame with the navigator's.
func (s *SerialMux[T]) Exchange(ctx context.Context, frame Frame, wantReply bool, timeout time.Duration) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.commandMu.Lock()
	defer s.commandMu.Unlock()

	if s.isClosing() {
		return 0, ErrClosed
	}

	start := s.now()
	reply, err := s.exchangeLocked(frame, wantReply, timeout)

	ex := Exchange{
		Time:     start,
		Frame:    frame,
		Command:  frame.String(),
		Reply:    reply,
		HasReply: wantReply && err == nil,
		Duration: s.now().Sub(start),
	}
	if err != nil {
		ex.Err = err.Error()
	}
	monitoring.Tracef("serial %s (%s)", ex, ex.Duration)
	s.publish(ex)
	return reply, err
}

func (s *SerialMux[T]) exchangeLocked(frame Frame, wantReply bool, timeout time.Duration) (byte, error) {
	if wantReply {
		if r, ok := any(s.port).(inputResetter); ok {
			if err := r.ResetInputBuffer(); err != nil {
				monitoring.Opsf("serial: failed to discard stale input: %v", err)
			}
		}
	}

	payload := frame.Bytes()
	n, err := s.port.Write(payload)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", frame, err)
	}
	if n != len(payload) {
		return 0, ErrWriteFailed
	}
	if !wantReply {
		return 0, nil
	}

	if tp, ok := any(s.port).(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(timeout); err != nil {
			return 0, fmt.Errorf("set read timeout: %w", err)
		}
	}

	buf := make([]byte, 1)
	n, err = s.port.Read(buf)
	if n == 1 {
		return buf[0], nil
	}
	// go.bug.st/serial reports a timeout as a zero-length read with no error.
	if err == nil || errors.Is(err, io.EOF) {
		return 0, ErrTimeout
	}
	return 0, fmt.Errorf("read reply to %s: %w", frame, err)
}

func (s *SerialMux[T]) publish(ex Exchange) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ex:
		default:
			// if the channel is full skip so as not to stall the drive
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.port.Close()
}

// defaultAdminTimeout bounds the reply wait for frames sent from the debug page.
const defaultAdminTimeout = 2 * time.Second

func (s *SerialMux[T]) isAllowed(op byte) bool {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	return s.allowed[op]
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// API endpoint to send a single frame, e.g. command="f 120", and report the reply.
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		frame, err := ParseFrame(command)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.isAllowed(frame.Op) {
			http.Error(w, fmt.Sprintf("Opcode %q not allowed", frame.Op), http.StatusForbidden)
			return
		}
		timeout := defaultAdminTimeout
		if v := r.FormValue("timeout_ms"); v != "" {
			ms, err := strconv.Atoi(v)
			if err != nil || ms <= 0 {
				http.Error(w, "Invalid timeout_ms", http.StatusBadRequest)
				return
			}
			timeout = time.Duration(ms) * time.Millisecond
		}

		reply, err := s.Exchange(r.Context(), frame, true, timeout)
		switch {
		case errors.Is(err, ErrTimeout):
			http.Error(w, fmt.Sprintf("No reply to %s within %s", frame, timeout), http.StatusGatewayTimeout)
			return
		case err != nil:
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to serial port, reply %q", frame.String(), reply))
	})

	// API endpoint to issue Server-Side Events (SSE) for every exchange on the port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		for {
			select {
			case ex, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(ex)
				if err != nil {
					continue
				}
				if _, err := w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload))); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	})
}
