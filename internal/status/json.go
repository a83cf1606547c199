package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Cycle         int          `json:"cycle"`
	Channel       int          `json:"channel"`
	Charging      bool         `json:"charging"`
	Baseline      BaselineJSON `json:"baseline"`
	Offset        int          `json:"offset"`
	Interval      int          `json:"interval"`
	Iteration     int          `json:"iteration"`
	LastFrame     *FrameJSON   `json:"last_frame,omitempty"`
	LastReason    string       `json:"last_reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// BaselineJSON describes the open-circuit reading of the current cycle.
type BaselineJSON struct {
	OCV   int       `json:"ocv"`
	Valid bool      `json:"valid"`
	Probe ProbeJSON `json:"probe"`
}

// ProbeJSON is the JSON representation of a channel probe.
type ProbeJSON struct {
	V0      int  `json:"v0"`
	Float   int  `json:"float"`
	V1      int  `json:"v1"`
	Toggled bool `json:"toggled"`
}

// FrameJSON is the JSON representation of the last transmitted frame.
type FrameJSON struct {
	Kind  string `json:"kind"`
	Value int    `json:"value"`
	At    string `json:"at"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Cycles             int `json:"cycles"`
	DiscardedBaselines int `json:"discarded_baselines"`
	Toggles            int `json:"toggles"`
	Frames             int `json:"frames"`
	ErrorFrames        int `json:"error_frames"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	ADC         string `json:"adc"`
	RecheckSlow int    `json:"recheck_slow"`
	MonitorMs   int64  `json:"monitor_ms"`
	AwaitMs     int64  `json:"await_ms"`
	PulseUnitUs int64  `json:"pulse_unit_us"`
	TriggerUs   int64  `json:"trigger_us"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	Redis       string `json:"redis,omitempty"`
	HTTPPort    string `json:"http_port"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "STARTING"
	}

	inner := StatusInner{
		State:    state,
		Cycle:    snap.Cycle,
		Channel:  snap.Channel,
		Charging: snap.ChargerOn,
		Baseline: BaselineJSON{
			OCV:   snap.OCV,
			Valid: snap.BaselineValid,
			Probe: ProbeJSON{
				V0:      int(snap.Probe.V0),
				Float:   int(snap.Probe.Float),
				V1:      int(snap.Probe.V1),
				Toggled: snap.Probe.Toggled,
			},
		},
		Offset:        snap.Offset,
		Interval:      snap.Interval,
		Iteration:     snap.Iteration,
		LastReason:    snap.LastReason,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:             snap.Counts.Cycles,
			DiscardedBaselines: snap.Counts.DiscardedBaselines,
			Toggles:            snap.Counts.Toggles,
			Frames:             snap.Counts.Frames,
			ErrorFrames:        snap.Counts.ErrorFrames,
		},
		Config: ConfigJSON{
			ADC:         snap.Config.ADC,
			RecheckSlow: snap.Config.RecheckSlow,
			MonitorMs:   snap.Config.MonitorMs,
			AwaitMs:     snap.Config.AwaitMs,
			PulseUnitUs: snap.Config.PulseUnitUs,
			TriggerUs:   snap.Config.TriggerUs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			Redis:       snap.Config.Redis,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
		},
	}

	if snap.LastFrame != nil {
		inner.LastFrame = &FrameJSON{
			Kind:  "VALUE",
			Value: snap.LastFrame.Value,
			At:    snap.LastFrameAt.UTC().Format(time.RFC3339),
		}
		if snap.LastFrame.IsError() {
			inner.LastFrame.Kind = "ERROR"
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
