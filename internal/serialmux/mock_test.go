package serialmux

import (
	"errors"
	"io"
	"testing"
)

func TestTestableSerialPort_EmptyReadIsEOF(t *testing.T) {
	p := NewTestableSerialPort()
	n, err := p.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Errorf("Read() = %d, %v; want 0, EOF", n, err)
	}
}

func TestTestableSerialPort_Responder(t *testing.T) {
	p := NewTestableSerialPort()
	var seen []Frame
	p.Responder = RespondWith(func(f Frame) []byte {
		seen = append(seen, f)
		if f.Op == 's' {
			return []byte{3}
		}
		return nil
	})

	p.Write([]byte{'f', 10})
	p.Write([]byte{'s'})

	if len(seen) != 2 || seen[0] != NewFrame('f', 10) || seen[1] != (Frame{Op: 's'}) {
		t.Fatalf("responder saw %+v", seen)
	}
	buf := make([]byte, 4)
	n, _ := p.Read(buf)
	if n != 1 || buf[0] != 3 {
		t.Errorf("Read() = %v", buf[:n])
	}
}

func TestTestableSerialPort_ErrorsAreOneShot(t *testing.T) {
	p := NewTestableSerialPort()
	p.WriteError = errors.New("once")
	if _, err := p.Write([]byte{'c'}); err == nil {
		t.Fatal("expected write error")
	}
	if _, err := p.Write([]byte{'c'}); err != nil {
		t.Errorf("second write error = %v", err)
	}
	p.Reset()
	if p.WriteCalls != 0 || len(p.GetWrittenData()) != 0 {
		t.Error("Reset() should clear counters and buffers")
	}
}

func TestMockSerialPortFactory(t *testing.T) {
	port := NewTestableSerialPort()
	f := NewMockSerialPortFactory(port)

	got, err := f.Open("/dev/ttyACM0", PortOptions{BaudRate: 9600})
	if err != nil || got != port {
		t.Fatalf("Open() = %v, %v", got, err)
	}
	if c := f.LastCall(); c == nil || c.Path != "/dev/ttyACM0" || c.Options.BaudRate != 9600 {
		t.Errorf("LastCall() = %+v", c)
	}

	f.Error = errors.New("busy")
	if _, err := NewSerialMuxFromFactory(f, "/dev/ttyACM0", PortOptions{}); err == nil {
		t.Error("expected factory error to propagate")
	}
	f.Reset()
	if f.LastCall() != nil {
		t.Error("Reset() should clear calls")
	}
}

func TestSerialPortOpener(t *testing.T) {
	port := NewTestableSerialPort()
	var opener SerialPortFactory = SerialPortOpener(func(string, PortOptions) (SerialPorter, error) {
		return port, nil
	})
	mux, err := NewSerialMuxFromFactory(opener, "sim", PortOptions{})
	if err != nil || mux == nil {
		t.Fatalf("NewSerialMuxFromFactory() = %v, %v", mux, err)
	}
}
