package node

import (
	"fmt"
	"time"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
)

// Selector owns the battery switch. The external mux moves to the other
// battery on every off-to-on edge of the switch line.
type Selector struct {
	hal       hal.HAL
	sampler   *Sampler
	onSettle  time.Duration
	offSettle time.Duration
	connected bool
	rises     int
}

// NewSelector creates a selector with the switch assumed open.
func NewSelector(h hal.HAL, sampler *Sampler, onSettle, offSettle time.Duration) *Selector {
	return &Selector{
		hal:       h,
		sampler:   sampler,
		onSettle:  onSettle,
		offSettle: offSettle,
	}
}

// Connected reports the switch state.
func (s *Selector) Connected() bool {
	return s.connected
}

// Battery returns which battery the switch selects (0 or 1, counted from
// the first connect), or -1 before the first connect.
func (s *Selector) Battery() int {
	if s.rises == 0 {
		return -1
	}
	return (s.rises - 1) % 2
}

// Connect closes the switch and waits for the battery voltage to settle.
// It does nothing if the switch is already closed.
func (s *Selector) Connect() error {
	if s.connected {
		return nil
	}
	if err := s.hal.ConnectChannel(true); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.connected = true
	s.rises++
	s.hal.Delay(s.onSettle)
	return nil
}

// Disconnect opens the switch and waits for a full disconnect.
// It does nothing if the switch is already open.
func (s *Selector) Disconnect() error {
	if !s.connected {
		return nil
	}
	if err := s.hal.ConnectChannel(false); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	s.connected = false
	s.hal.Delay(s.offSettle)
	return nil
}

// Toggle moves the switch to the other battery.
func (s *Selector) Toggle() error {
	if err := s.Disconnect(); err != nil {
		return err
	}
	return s.Connect()
}

// ProbeAndSelect samples the current battery, the open switch and the other
// battery, then toggles back when the rule says so.
//
// The reconnect in step three is a plain Connect, not a Toggle: the open
// switch has already settled while the floating level was sampled.
// TODO: confirm on hardware that the on-settle alone is enough before v1.
func (s *Selector) ProbeAndSelect() (logic.Probe, error) {
	var p logic.Probe
	var err error

	if err = s.Connect(); err != nil {
		return p, err
	}
	if p.V0, err = s.sampler.SampleOnce(); err != nil {
		return p, fmt.Errorf("sample v0: %w", err)
	}

	if err = s.Disconnect(); err != nil {
		return p, err
	}
	if p.Float, err = s.sampler.SampleOnce(); err != nil {
		return p, fmt.Errorf("sample float: %w", err)
	}

	if err = s.Connect(); err != nil {
		return p, err
	}
	if p.V1, err = s.sampler.SampleOnce(); err != nil {
		return p, fmt.Errorf("sample v1: %w", err)
	}

	if logic.ShouldToggle(p.V0, p.Float, p.V1) {
		if err = s.Toggle(); err != nil {
			return p, err
		}
		p.Toggled = true
	}
	return p, nil
}
