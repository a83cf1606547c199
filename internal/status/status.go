// Package status provides a thread-safe status tracker for the charge-client daemon.
// It is read by HTTP handlers, the Redis mirror and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	ADC         string // "ads7830" or "serial"
	RecheckSlow int
	MonitorMs   int64
	AwaitMs     int64
	PulseUnitUs int64
	TriggerUs   int64
	HeartbeatMs int64
	Broker      string
	Redis       string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Cycle         int
	Channel       int
	ChargerOn     bool
	Probe         logic.Probe
	OCV           int
	BaselineValid bool
	Offset        int
	Interval      int
	Iteration     int
	LastFrame     *logic.Frame
	LastFrameAt   time.Time
	LastReason    string
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Channel:   -1,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Apply folds one cycle event into the tracked state.
// Called from runLoop for every event drained from the cycle.
func (t *Tracker) Apply(e logic.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.snap
	s.Counts.Add(e)
	s.State = e.State
	s.Cycle = e.Cycle
	s.Channel = e.Channel

	switch e.Type {
	case logic.EventBaseline:
		s.Probe = e.Probe
		s.OCV = e.OCV
		s.BaselineValid = true
		s.Interval = e.Interval
		s.Offset = 0
		s.Iteration = 0
		s.LastReason = ""
	case logic.EventBaselineInvalid:
		s.Probe = e.Probe
		s.OCV = e.OCV
		s.BaselineValid = false
		s.Interval = e.Interval
		s.LastReason = e.Reason
	case logic.EventChargerOn:
		s.ChargerOn = true
	case logic.EventChargerOff:
		s.ChargerOn = false
	case logic.EventReport, logic.EventFrame:
		f := e.Frame
		s.LastFrame = &f
		s.LastFrameAt = e.Timestamp
		if e.Type == logic.EventFrame {
			s.Offset = e.Offset
			s.Iteration = e.Iteration
		}
		if e.Reason != "" {
			s.LastReason = e.Reason
		}
	case logic.EventCycleEnd:
		if e.Reason != "" {
			s.LastReason = e.Reason
		}
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastFrame != nil {
		f := *s.LastFrame
		s.LastFrame = &f
	}
	s.Now = time.Now()
	return s
}
