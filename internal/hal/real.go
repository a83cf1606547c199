//go:build linux

package hal

import (
	"context"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/sweeney/charge-client/internal/logic"
)

// Config selects the GPIO lines and peripherals of the real HAL.
type Config struct {
	Chip       string
	PinMux     int
	PinCharger int
	PinReport  int
	ADC        ADC
	Watchdog   *Watchdog     // optional
	KickPeriod time.Duration // defaults to DefaultKickPeriod
}

// Real drives actual hardware through the Linux GPIO character device.
type Real struct {
	chip       *gpiocdev.Chip
	mux        *gpiocdev.Line
	charger    *gpiocdev.Line
	report     *gpiocdev.Line
	adc        ADC
	watchdog   *Watchdog
	kickPeriod time.Duration
}

// NewReal requests the GPIO lines and takes ownership of the ADC and watchdog,
// closing them if it fails.
// The switch starts open, the charger disabled and the report line idle-high.
func NewReal(cfg Config) (*Real, error) {
	if cfg.ADC == nil {
		return nil, fmt.Errorf("no adc configured")
	}
	chipName := cfg.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}
	r := &Real{
		adc:        cfg.ADC,
		watchdog:   cfg.Watchdog,
		kickPeriod: cfg.KickPeriod,
	}
	if r.kickPeriod <= 0 {
		r.kickPeriod = DefaultKickPeriod
	}

	var err error
	r.chip, err = gpiocdev.NewChip(chipName)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r.mux, err = r.chip.RequestLine(cfg.PinMux, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request mux pin %d: %w", cfg.PinMux, err)
	}

	// The charger-disable input of the charger IC floats high through the
	// pull-up; the charger runs only while the line is driven low.
	r.charger, err = r.chip.RequestLine(cfg.PinCharger, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request charger pin %d: %w", cfg.PinCharger, err)
	}

	r.report, err = r.chip.RequestLine(cfg.PinReport, gpiocdev.AsOutput(1))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request report pin %d: %w", cfg.PinReport, err)
	}

	return r, nil
}

// ConnectChannel drives the battery switch line.
func (r *Real) ConnectChannel(on bool) error {
	if err := r.mux.SetValue(level(on)); err != nil {
		return fmt.Errorf("set mux: %w", err)
	}
	return nil
}

// EnableCharger pulls the charger-disable line low with the pull-up removed,
// or releases it to float high.
func (r *Real) EnableCharger(on bool) error {
	var err error
	if on {
		err = r.charger.Reconfigure(gpiocdev.AsOutput(0), gpiocdev.WithBiasDisabled)
	} else {
		err = r.charger.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp)
	}
	if err != nil {
		return fmt.Errorf("set charger: %w", err)
	}
	return nil
}

// Sample performs one blocking conversion.
func (r *Real) Sample() (logic.Sample, error) {
	s, err := r.adc.Read()
	if err != nil {
		return 0, fmt.Errorf("adc read: %w", err)
	}
	return s, nil
}

// DriveReportLine sets the report line level.
func (r *Real) DriveReportLine(high bool) error {
	if err := r.report.SetValue(level(high)); err != nil {
		return fmt.Errorf("set report: %w", err)
	}
	return nil
}

// Delay waits for d, busy-waiting below a millisecond.
func (r *Real) Delay(d time.Duration) {
	preciseDelay(d)
}

// Sleep waits for the alarm, kicking the watchdog every kick period.
func (r *Real) Sleep(ctx context.Context, d time.Duration) error {
	return sleepKicking(ctx, d, r.kickPeriod, r.Kick)
}

// Kick resets the watchdog, if one is configured.
func (r *Real) Kick() {
	if r.watchdog != nil {
		r.watchdog.Kick()
	}
}

// Close returns every line to a safe state and releases them.
// The charger is left disabled (pulled up) and the report line idle-high,
// so the master sees neither a stuck error signal nor a running charger.
func (r *Real) Close() error {
	var err error

	if r.charger != nil {
		err = multierr.Append(err, r.charger.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp))
		err = multierr.Append(err, r.charger.Close())
	}
	if r.mux != nil {
		err = multierr.Append(err, r.mux.SetValue(0))
		err = multierr.Append(err, r.mux.Close())
	}
	if r.report != nil {
		err = multierr.Append(err, r.report.SetValue(1))
		err = multierr.Append(err, r.report.Close())
	}
	if r.chip != nil {
		err = multierr.Append(err, r.chip.Close())
	}
	if r.adc != nil {
		err = multierr.Append(err, r.adc.Close())
	}
	if r.watchdog != nil {
		err = multierr.Append(err, r.watchdog.Close())
	}

	if err != nil {
		return fmt.Errorf("close hal: %w", err)
	}
	return nil
}

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
