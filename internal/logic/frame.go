package logic

import (
	"fmt"
	"time"
)

// FrameKind distinguishes value frames from the error signal.
type FrameKind int

const (
	FrameValue FrameKind = iota
	FrameError
)

// Frame is one unit of report-line output.
type Frame struct {
	Kind  FrameKind
	Value int // pulse count, only set for FrameValue
}

// NewFrame builds the frame for a reading: a value frame when the reading is
// valid, the error frame otherwise.
func NewFrame(v int) Frame {
	if Classify(v) == Invalid {
		return Frame{Kind: FrameError}
	}
	return Frame{Kind: FrameValue, Value: v}
}

// IsError reports whether f is the error signal.
func (f Frame) IsError() bool {
	return f.Kind == FrameError
}

func (f Frame) String() string {
	if f.IsError() {
		return "ERROR"
	}
	return fmt.Sprintf("VALUE(%d)", f.Value)
}

// PulseTiming holds the fixed widths of the pulse protocol.
// Trigger must be strictly longer than Unit.
type PulseTiming struct {
	Trigger time.Duration
	Unit    time.Duration
}

// DefaultPulseTiming matches the receiver's edge-counting window.
var DefaultPulseTiming = PulseTiming{
	Trigger: 255 * time.Microsecond,
	Unit:    32 * time.Microsecond,
}

// Segment is one level held on the report line.
// A zero Hold means the level is held until the next frame.
type Segment struct {
	High bool
	Hold time.Duration
}

// Plan returns the line segments that encode f.
//
// A value frame is a trigger pulse (Trigger low, Unit high) followed by
// Value data pulses (Unit low, Unit high), leaving the line idle-high.
// The error frame is a single low level with no following edge.
func (f Frame) Plan(t PulseTiming) []Segment {
	if f.IsError() {
		return []Segment{{High: false}}
	}
	segs := make([]Segment, 0, 2+2*f.Value)
	segs = append(segs, Segment{High: false, Hold: t.Trigger}, Segment{High: true, Hold: t.Unit})
	for i := 0; i < f.Value; i++ {
		segs = append(segs, Segment{High: false, Hold: t.Unit}, Segment{High: true, Hold: t.Unit})
	}
	return segs
}

// DecodeFrame interprets recorded line segments the way the master does:
// a low pulse at least Trigger wide arms the counter, each later low pulse
// counts one, and a low level that never rises is the error signal.
// ok is false when the segments hold no complete frame.
// The node never decodes; tests in several packages check emitted frames
// against this one copy of the receiver's counting rule.
func DecodeFrame(segs []Segment, t PulseTiming) (f Frame, ok bool) {
	armed := false
	count := 0
	for i, s := range segs {
		if s.High {
			continue
		}
		last := i == len(segs)-1
		if last && s.Hold == 0 {
			return Frame{Kind: FrameError}, true
		}
		if !armed {
			if s.Hold >= t.Trigger {
				armed = true
			}
			continue
		}
		count++
	}
	if !armed {
		return Frame{}, false
	}
	return Frame{Kind: FrameValue, Value: count}, true
}
