// Package logic contains the pure decision logic of the charge client.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// ADC range and classification constants.
const (
	// MaxSample is the largest value an 8-bit conversion can return.
	MaxSample = 255
	// OverVoltageThreshold is the first ADC value treated as over-voltage
	// (about 4.19V on a single Li-ion cell, one step is ~0.018V).
	OverVoltageThreshold = 232
	// AveragedSamples is the number of raw conversions behind an averaged sample.
	AveragedSamples = 4
	// RecheckSlow is the default number of monitoring iterations per cycle
	// (roughly five minutes with a four second sleep).
	RecheckSlow = 66
)

// Sample is a single ADC reading. The type enforces the converter range.
type Sample uint8

// Validity classifies a reading.
type Validity int

const (
	Valid Validity = iota
	Invalid
)

func (v Validity) String() string {
	if v == Valid {
		return "VALID"
	}
	return "INVALID"
}

// State is a step of the charge cycle.
type State string

const (
	StateSelect         State = "SELECT"
	StateBaseline       State = "BASELINE"
	StateReportBaseline State = "REPORT_BASELINE"
	StateAwaitMaster    State = "AWAIT_MASTER"
	StateChargerOn      State = "CHARGER_ON"
	StateMeasureOffset  State = "MEASURE_OFFSET"
	StateMonitor        State = "MONITOR"
	StateChargerOff     State = "CHARGER_OFF"
)

// EventType identifies a cycle milestone reported to observers.
type EventType string

const (
	EventBaseline        EventType = "BASELINE"
	EventBaselineInvalid EventType = "BASELINE_INVALID"
	EventReport          EventType = "REPORT"
	EventChargerOn       EventType = "CHARGER_ON"
	EventFrame           EventType = "FRAME"
	EventChargerOff      EventType = "CHARGER_OFF"
	EventCycleEnd        EventType = "CYCLE_END"
)

// Probe holds the three readings of a channel probe and its decision.
type Probe struct {
	V0      Sample // first battery, connected
	Float   Sample // switch open, expected near 0
	V1      Sample // other battery after reconnect
	Toggled bool
}

// Event describes one milestone of a charge cycle.
// Fields that do not apply to the event type are left zero.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Cycle     int
	State     State
	Channel   int
	Probe     Probe
	OCV       int
	Offset    int
	Interval  int
	Iteration int
	Frame     Frame
	Reason    string
}

// EventCounts tracks cycle activity since startup.
type EventCounts struct {
	Cycles             int
	DiscardedBaselines int
	Toggles            int
	Frames             int
	ErrorFrames        int
}

// Add updates the counters for one event.
func (c *EventCounts) Add(e Event) {
	switch e.Type {
	case EventBaseline:
		c.Cycles++
		if e.Probe.Toggled {
			c.Toggles++
		}
	case EventBaselineInvalid:
		c.Cycles++
		c.DiscardedBaselines++
		if e.Probe.Toggled {
			c.Toggles++
		}
	case EventReport, EventFrame:
		c.Frames++
		if e.Frame.IsError() {
			c.ErrorFrames++
		}
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
