//go:build !linux

package hal

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
)

var errUnsupported = errors.New("hal: not supported")

// Config selects the GPIO lines and peripherals of the real HAL.
type Config struct {
	Chip       string
	PinMux     int
	PinCharger int
	PinReport  int
	ADC        ADC
	Watchdog   *Watchdog
	KickPeriod time.Duration
}

// Real is not available on non-Linux platforms.
type Real struct{}

// NewReal returns an error on non-Linux platforms. It closes the ADC and
// watchdog it was given, like the Linux version does on failure.
func NewReal(cfg Config) (*Real, error) {
	if cfg.ADC != nil {
		cfg.ADC.Close()
	}
	if cfg.Watchdog != nil {
		cfg.Watchdog.Close()
	}
	return nil, errors.New("hal: not supported on this platform (requires Linux)")
}

func (r *Real) ConnectChannel(on bool) error { return errUnsupported }
func (r *Real) EnableCharger(on bool) error { return errUnsupported }
func (r *Real) Sample() (logic.Sample, error) { return 0, errUnsupported }
func (r *Real) DriveReportLine(high bool) error { return errUnsupported }
func (r *Real) Delay(d time.Duration) {}
func (r *Real) Sleep(ctx context.Context, d time.Duration) error { return errUnsupported }
func (r *Real) Kick() {}
func (r *Real) Close() error { return nil }
