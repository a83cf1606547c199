package node

import (
	"fmt"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
)

// Encoder writes frames on the report line.
type Encoder struct {
	hal    hal.HAL
	timing logic.PulseTiming
}

// NewEncoder creates an encoder with the given pulse widths.
func NewEncoder(h hal.HAL, timing logic.PulseTiming) *Encoder {
	return &Encoder{hal: h, timing: timing}
}

// Emit sends v as a value frame, or the error signal when v is invalid.
// After the error signal the line stays low until the next frame.
func (e *Encoder) Emit(v int) (logic.Frame, error) {
	f := logic.NewFrame(v)
	for _, seg := range f.Plan(e.timing) {
		if err := e.hal.DriveReportLine(seg.High); err != nil {
			return f, fmt.Errorf("emit %s: %w", f, err)
		}
		if seg.Hold > 0 {
			e.hal.Delay(seg.Hold)
		}
	}
	return f, nil
}

// Idle returns the report line to idle-high.
func (e *Encoder) Idle() error {
	return e.hal.DriveReportLine(true)
}
