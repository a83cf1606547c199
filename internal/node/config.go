// Package node implements the charge client: battery selection, OCV
// sampling, the pulse report protocol and the charge cycle that ties them
// together. All hardware access goes through a single hal.HAL.
package node

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sweeney/charge-client/internal/logic"
)

// Config holds the fixed timing of the node.
type Config struct {
	Pulse              logic.PulseTiming
	PowerOnDebounce    time.Duration
	Samples            int
	SampleInterval     time.Duration
	MuxOnSettle        time.Duration
	MuxOffSettle       time.Duration
	ChargerOnDebounce  time.Duration
	ChargerOffDebounce time.Duration
	AwaitMaster        time.Duration
	MonitorSleep       time.Duration
	RecheckSlow        int
}

// DefaultConfig returns the timing the master receiver is built for.
func DefaultConfig() Config {
	return Config{
		Pulse:              logic.DefaultPulseTiming,
		PowerOnDebounce:    500 * time.Millisecond,
		Samples:            logic.AveragedSamples,
		SampleInterval:     10 * time.Millisecond,
		MuxOnSettle:        125 * time.Millisecond,
		MuxOffSettle:       500 * time.Millisecond,
		ChargerOnDebounce:  500 * time.Millisecond,
		ChargerOffDebounce: 250 * time.Millisecond,
		AwaitMaster:        750 * time.Millisecond,
		MonitorSleep:       4 * time.Second,
		RecheckSlow:        logic.RecheckSlow,
	}
}

// Validate checks the constraints the protocol and cycle depend on.
func (c Config) Validate() error {
	var errs []error
	if c.Pulse.Unit <= 0 {
		errs = append(errs, fmt.Errorf("pulse unit must be positive, got %v", c.Pulse.Unit))
	}
	if c.Pulse.Trigger <= c.Pulse.Unit {
		errs = append(errs, fmt.Errorf("trigger width %v must exceed pulse unit %v", c.Pulse.Trigger, c.Pulse.Unit))
	}
	if c.Samples < 1 {
		errs = append(errs, fmt.Errorf("samples must be at least 1, got %d", c.Samples))
	}
	if c.RecheckSlow < 2 {
		errs = append(errs, fmt.Errorf("recheck count must be at least 2, got %d", c.RecheckSlow))
	}
	return multierr.Combine(errs...)
}
