// Package hal provides the hardware primitives the charge cycle runs on.
// The real implementation uses the Linux GPIO character device and an
// external ADC. The fake implementation allows testing without hardware.
package hal

import (
	"context"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
)

// HAL is the single owning handle to the node's peripherals.
// Every call blocks until the primitive completes.
type HAL interface {
	// ConnectChannel closes (true) or opens (false) the battery switch.
	ConnectChannel(on bool) error

	// EnableCharger switches the external charger on or off.
	EnableCharger(on bool) error

	// Sample performs one ADC conversion on the battery sense input.
	Sample() (logic.Sample, error)

	// DriveReportLine sets the report line level. Idle is high.
	DriveReportLine(high bool) error

	// Delay waits for d. Sub-millisecond delays are precise.
	Delay(d time.Duration)

	// Sleep pauses for d in low-power mode, resetting the liveness
	// watchdog periodically. It returns early with ctx.Err() if ctx ends.
	Sleep(ctx context.Context, d time.Duration) error

	// Kick resets the liveness watchdog.
	Kick()

	// Close releases hardware resources.
	Close() error
}

// ADC performs single blocking conversions.
type ADC interface {
	Read() (logic.Sample, error)
	Close() error
}

// Default line offsets on gpiochip0 (BCM numbering).
const (
	DefaultPinMux     = 17 // battery switch, high = connected
	DefaultPinCharger = 27 // charger disable, pulled high = off
	DefaultPinReport  = 22 // report line to the master, idle high
)

// DefaultKickPeriod is how often Sleep resets the watchdog.
const DefaultKickPeriod = time.Second
