package hal

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
)

// OpKind names a recorded HAL call.
type OpKind string

const (
	OpConnect OpKind = "CONNECT"
	OpCharger OpKind = "CHARGER"
	OpSample  OpKind = "SAMPLE"
	OpReport  OpKind = "REPORT"
	OpDelay   OpKind = "DELAY"
	OpSleep   OpKind = "SLEEP"
	OpKick    OpKind = "KICK"
)

// Op is one recorded HAL call at a point on the virtual clock.
type Op struct {
	At       time.Duration
	Kind     OpKind
	On       bool          // CONNECT, CHARGER, REPORT
	Value    logic.Sample  // SAMPLE
	Duration time.Duration // DELAY, SLEEP
}

// Transition is a level change of the report line.
type Transition struct {
	At   time.Duration
	High bool
}

// FakeHAL is a test double that returns scripted samples and records every
// call on a virtual clock. Delays and sleeps advance the clock instantly.
type FakeHAL struct {
	// Samples contains scripted conversion results.
	// Each call to Sample() consumes the next one; the last repeats.
	Samples []logic.Sample

	// SampleErrors maps a conversion index to the error it returns.
	SampleErrors map[int]error

	// DriveError, if set, is returned by DriveReportLine.
	DriveError error

	// ChargerError, if set, is returned by EnableCharger.
	ChargerError error

	// OnSleep, if set, runs at the start of every Sleep call.
	OnSleep func()

	// Now is the virtual clock.
	Now time.Duration

	// Ops records every call in order.
	Ops []Op

	// Report records level changes of the report line.
	Report []Transition

	Connected  bool
	Charging   bool
	ReportHigh bool
	Kicks      int
	Closed     bool

	conversions int
}

// NewFakeHAL creates a FakeHAL with the given samples and the report line idle-high.
func NewFakeHAL(samples []logic.Sample) *FakeHAL {
	return &FakeHAL{Samples: samples, ReportHigh: true}
}

// ConnectChannel records the switch state.
func (f *FakeHAL) ConnectChannel(on bool) error {
	f.Connected = on
	f.record(Op{Kind: OpConnect, On: on})
	return nil
}

// EnableCharger records the charger state.
func (f *FakeHAL) EnableCharger(on bool) error {
	if f.ChargerError != nil {
		return f.ChargerError
	}
	f.Charging = on
	f.record(Op{Kind: OpCharger, On: on})
	return nil
}

// Sample returns the next scripted sample.
func (f *FakeHAL) Sample() (logic.Sample, error) {
	i := f.conversions
	f.conversions++
	if err := f.SampleErrors[i]; err != nil {
		return 0, err
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	s := f.Samples[len(f.Samples)-1]
	if i < len(f.Samples) {
		s = f.Samples[i]
	}
	f.record(Op{Kind: OpSample, Value: s})
	return s, nil
}

// DriveReportLine records report line level changes.
func (f *FakeHAL) DriveReportLine(high bool) error {
	if f.DriveError != nil {
		return f.DriveError
	}
	f.record(Op{Kind: OpReport, On: high})
	if high != f.ReportHigh {
		f.Report = append(f.Report, Transition{At: f.Now, High: high})
	}
	f.ReportHigh = high
	return nil
}

// Delay advances the virtual clock.
func (f *FakeHAL) Delay(d time.Duration) {
	f.record(Op{Kind: OpDelay, Duration: d})
	f.Now += d
}

// Sleep advances the virtual clock unless ctx is already done.
func (f *FakeHAL) Sleep(ctx context.Context, d time.Duration) error {
	if f.OnSleep != nil {
		f.OnSleep()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.record(Op{Kind: OpSleep, Duration: d})
	f.Now += d
	f.Kicks++
	return nil
}

// Kick counts watchdog resets.
func (f *FakeHAL) Kick() {
	f.Kicks++
	f.record(Op{Kind: OpKick})
}

// Close marks the HAL as closed.
func (f *FakeHAL) Close() error {
	f.Closed = true
	return nil
}

// Conversions returns the number of Sample calls so far.
func (f *FakeHAL) Conversions() int {
	return f.conversions
}

// Count returns how many recorded ops of kind k have the given On value.
func (f *FakeHAL) Count(k OpKind, on bool) int {
	n := 0
	for _, op := range f.Ops {
		if op.Kind == k && op.On == on {
			n++
		}
	}
	return n
}

// ReportSegments converts the recorded report transitions into line
// segments. The final segment has no known end and gets a zero Hold.
func (f *FakeHAL) ReportSegments() []logic.Segment {
	segs := make([]logic.Segment, 0, len(f.Report))
	for i, tr := range f.Report {
		var hold time.Duration
		if i+1 < len(f.Report) {
			hold = f.Report[i+1].At - tr.At
		}
		segs = append(segs, logic.Segment{High: tr.High, Hold: hold})
	}
	return segs
}

// ResetReport clears recorded report transitions.
func (f *FakeHAL) ResetReport() {
	f.Report = nil
}

// Reset rewinds the scripted samples and clears recordings.
func (f *FakeHAL) Reset() {
	f.conversions = 0
	f.Now = 0
	f.Ops = nil
	f.Report = nil
	f.Kicks = 0
	f.Closed = false
}

func (f *FakeHAL) record(op Op) {
	op.At = f.Now
	f.Ops = append(f.Ops, op)
}
