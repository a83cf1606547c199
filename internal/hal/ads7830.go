package hal

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/charge-client/internal/logic"
)

// DefaultADS7830Addr is the ADS7830 address with A1/A0 tied low.
const DefaultADS7830Addr = 0x48

// ADS7830 is an 8-channel, 8-bit I²C ADC. One Read is one conversion.
type ADS7830 struct {
	bus i2c.Bus
	dev *i2c.Dev
	cmd byte
}

// OpenADS7830 opens the named I²C bus ("" for the first one) and reads the
// given single-ended input channel (0-7).
func OpenADS7830(busName string, addr uint16, channel int) (*ADS7830, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	a, err := NewADS7830(bus, addr, channel)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return a, nil
}

// NewADS7830 uses an already opened bus. Close closes the bus if it can be closed.
func NewADS7830(bus i2c.Bus, addr uint16, channel int) (*ADS7830, error) {
	if channel < 0 || channel > 7 {
		return nil, fmt.Errorf("ads7830: invalid channel %d", channel)
	}
	return &ADS7830{
		bus: bus,
		dev: &i2c.Dev{Addr: addr, Bus: bus},
		cmd: ads7830Command(channel),
	}, nil
}

// ads7830Command builds the command byte: single-ended mode, the channel's
// select bits (odd channels live in the upper half), internal reference off
// and converter on.
func ads7830Command(channel int) byte {
	sel := byte(channel>>1) | byte(channel&1)<<2
	return 0x80 | sel<<4 | 0x04
}

// Read performs one conversion.
func (a *ADS7830) Read() (logic.Sample, error) {
	var buf [1]byte
	if err := a.dev.Tx([]byte{a.cmd}, buf[:]); err != nil {
		return 0, fmt.Errorf("ads7830 tx: %w", err)
	}
	return logic.Sample(buf[0]), nil
}

// Close releases the bus.
func (a *ADS7830) Close() error {
	if c, ok := a.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
