package hal

import (
	"bytes"
	"errors"
	"testing"
)

// fakePort answers every request from a scripted response buffer.
type fakePort struct {
	written  bytes.Buffer
	response bytes.Buffer
	writeErr error
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.response.Len() == 0 {
		// go.bug.st/serial reports a read timeout as (0, nil).
		return 0, nil
	}
	return p.response.Read(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialADCRead(t *testing.T) {
	port := &fakePort{}
	port.response.Write([]byte{180, 7})
	a := NewSerialADC(port)

	for _, want := range []int{180, 7} {
		got, err := a.Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if int(got) != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}

	if got := port.written.String(); got != "SS" {
		t.Errorf("requests: got %q, want %q", got, "SS")
	}
}

func TestSerialADCTimeout(t *testing.T) {
	a := NewSerialADC(&fakePort{})

	if _, err := a.Read(); err == nil {
		t.Error("expected timeout error")
	}
}

func TestSerialADCWriteError(t *testing.T) {
	a := NewSerialADC(&fakePort{writeErr: errors.New("unplugged")})

	if _, err := a.Read(); err == nil {
		t.Error("expected write error")
	}
}

func TestSerialADCClose(t *testing.T) {
	port := &fakePort{}
	a := NewSerialADC(port)

	if err := a.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !port.closed {
		t.Error("port should be closed")
	}
}
