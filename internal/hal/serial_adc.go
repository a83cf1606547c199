package hal

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/sweeney/charge-client/internal/logic"
)

// Serial ADC bridge protocol: the host writes one request byte and the
// bridge answers with one conversion byte.
const (
	SerialRequest       = 'S'
	SerialReadTimeout   = 100 * time.Millisecond
	DefaultSerialBaud   = 115200
	DefaultSerialDevice = "/dev/ttyACM0"
)

// SerialADC reads conversions from a microcontroller bridge on a serial port.
type SerialADC struct {
	port io.ReadWriteCloser
}

// OpenSerialADC opens the serial port with 8N1 framing.
func OpenSerialADC(portName string, baud int) (*SerialADC, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(SerialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return NewSerialADC(port), nil
}

// NewSerialADC uses an already opened port.
func NewSerialADC(port io.ReadWriteCloser) *SerialADC {
	return &SerialADC{port: port}
}

// Read requests and returns one conversion.
func (s *SerialADC) Read() (logic.Sample, error) {
	if _, err := s.port.Write([]byte{SerialRequest}); err != nil {
		return 0, fmt.Errorf("serial adc request: %w", err)
	}
	var buf [1]byte
	n, err := s.port.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("serial adc response: %w", err)
	}
	if n == 0 {
		return 0, errors.New("serial adc response: timeout")
	}
	return logic.Sample(buf[0]), nil
}

// Close closes the port.
func (s *SerialADC) Close() error {
	return s.port.Close()
}
