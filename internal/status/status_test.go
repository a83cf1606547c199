package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{ADC: "ads7830", RecheckSlow: 66, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.RecheckSlow != 66 {
		t.Errorf("Config.RecheckSlow: got %d, want 66", snap.Config.RecheckSlow)
	}
	if snap.Config.HTTPPort != ":80" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":80")
	}
	if snap.Channel != -1 {
		t.Errorf("Channel: got %d, want -1 before the first probe", snap.Channel)
	}
	if snap.BaselineValid || snap.ChargerOn {
		t.Error("expected no baseline and charger off initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

// cycleEvents is one complete charging cycle as the node reports it.
func cycleEvents(cycle int) []logic.Event {
	at := time.Date(2026, 1, 1, 0, 0, cycle, 0, time.UTC)
	probe := logic.Probe{V0: 50, Float: 1, V1: 100, Toggled: true}
	return []logic.Event{
		{Timestamp: at, Type: logic.EventBaseline, Cycle: cycle, State: logic.StateBaseline, Channel: 0, Probe: probe, OCV: 180, Interval: 33},
		{Timestamp: at, Type: logic.EventReport, Cycle: cycle, State: logic.StateReportBaseline, OCV: 180, Frame: logic.NewFrame(180)},
		{Timestamp: at, Type: logic.EventChargerOn, Cycle: cycle, State: logic.StateChargerOn, OCV: 180},
		{Timestamp: at, Type: logic.EventFrame, Cycle: cycle, State: logic.StateMonitor, Offset: 5, Interval: 33, Iteration: 1, Frame: logic.NewFrame(173)},
		{Timestamp: at, Type: logic.EventFrame, Cycle: cycle, State: logic.StateMonitor, Offset: 5, Interval: 33, Iteration: 2, Frame: logic.NewFrame(-1), Reason: "disconnected"},
	}
}

func TestApplyCycle(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	for _, e := range cycleEvents(1) {
		tr.Apply(e)
	}

	snap := tr.Snapshot()
	if snap.State != logic.StateMonitor {
		t.Errorf("State: got %s, want MONITOR", snap.State)
	}
	if snap.Cycle != 1 || snap.Channel != 0 {
		t.Errorf("Cycle/Channel: got %d/%d", snap.Cycle, snap.Channel)
	}
	if !snap.ChargerOn {
		t.Error("expected charger on")
	}
	if snap.OCV != 180 || !snap.BaselineValid || !snap.Probe.Toggled {
		t.Errorf("baseline: ocv=%d valid=%v probe=%+v", snap.OCV, snap.BaselineValid, snap.Probe)
	}
	if snap.Offset != 5 || snap.Iteration != 2 || snap.Interval != 33 {
		t.Errorf("monitor: offset=%d iteration=%d interval=%d", snap.Offset, snap.Iteration, snap.Interval)
	}
	if snap.LastFrame == nil || !snap.LastFrame.IsError() {
		t.Errorf("LastFrame: got %v, want ERROR", snap.LastFrame)
	}
	if snap.LastReason != "disconnected" {
		t.Errorf("LastReason: got %q", snap.LastReason)
	}
	want := logic.EventCounts{Cycles: 1, Toggles: 1, Frames: 3, ErrorFrames: 1}
	if snap.Counts != want {
		t.Errorf("Counts: got %+v, want %+v", snap.Counts, want)
	}

	tr.Apply(logic.Event{Type: logic.EventChargerOff, Cycle: 1, State: logic.StateChargerOff})
	tr.Apply(logic.Event{Type: logic.EventCycleEnd, Cycle: 1, State: logic.StateSelect, Reason: "error frame"})

	snap = tr.Snapshot()
	if snap.ChargerOn {
		t.Error("expected charger off after CHARGER_OFF")
	}
	if snap.State != logic.StateSelect || snap.LastReason != "error frame" {
		t.Errorf("end of cycle: state=%s reason=%q", snap.State, snap.LastReason)
	}
}

func TestApplyInvalidBaseline(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	for _, e := range cycleEvents(1) {
		tr.Apply(e)
	}

	tr.Apply(logic.Event{
		Type:     logic.EventBaselineInvalid,
		Cycle:    2,
		State:    logic.StateBaseline,
		Channel:  1,
		OCV:      240,
		Interval: 66,
		Reason:   "over-voltage",
	})

	snap := tr.Snapshot()
	if snap.BaselineValid {
		t.Error("expected BaselineValid=false")
	}
	if snap.OCV != 240 || snap.Cycle != 2 || snap.Channel != 1 {
		t.Errorf("got ocv=%d cycle=%d channel=%d", snap.OCV, snap.Cycle, snap.Channel)
	}
	if snap.Counts.DiscardedBaselines != 1 || snap.Counts.Cycles != 2 {
		t.Errorf("Counts: %+v", snap.Counts)
	}
	if snap.LastReason != "over-voltage" {
		t.Errorf("LastReason: got %q", snap.LastReason)
	}
}

func TestApplyBaselineResetsMonitorFields(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	for _, e := range cycleEvents(1) {
		tr.Apply(e)
	}
	tr.Apply(cycleEvents(2)[0])

	snap := tr.Snapshot()
	if snap.Offset != 0 || snap.Iteration != 0 || snap.LastReason != "" {
		t.Errorf("new cycle should clear monitor fields: offset=%d iteration=%d reason=%q",
			snap.Offset, snap.Iteration, snap.LastReason)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Apply(logic.Event{Type: logic.EventReport, State: logic.StateReportBaseline, Frame: logic.NewFrame(180)})

	snap1 := tr.Snapshot()

	tr.Apply(logic.Event{Type: logic.EventFrame, State: logic.StateMonitor, Frame: logic.NewFrame(0)})

	if snap1.State != logic.StateReportBaseline {
		t.Error("snapshot should be a copy; State was modified")
	}
	if snap1.LastFrame.IsError() || snap1.LastFrame.Value != 180 {
		t.Errorf("snapshot should be a copy; LastFrame is %v", snap1.LastFrame)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := logic.NewFrame(174)
	snap := Snapshot{
		State:         logic.StateMonitor,
		Cycle:         7,
		Channel:       1,
		ChargerOn:     true,
		Probe:         logic.Probe{V0: 150, Float: 0, V1: 170},
		OCV:           180,
		BaselineValid: true,
		Offset:        5,
		Interval:      66,
		Iteration:     12,
		LastFrame:     &frame,
		LastFrameAt:   start.Add(14 * time.Minute),
		Counts:        logic.EventCounts{Cycles: 7, Toggles: 3, Frames: 40, ErrorFrames: 2},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{ADC: "ads7830", RecheckSlow: 66, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPPort: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.State != "MONITOR" {
		t.Errorf("State: got %q, want MONITOR", s.State)
	}
	if s.Cycle != 7 || s.Channel != 1 || !s.Charging {
		t.Errorf("cycle=%d channel=%d charging=%v", s.Cycle, s.Channel, s.Charging)
	}
	if s.Baseline.OCV != 180 || !s.Baseline.Valid || s.Baseline.Probe.V1 != 170 {
		t.Errorf("Baseline: %+v", s.Baseline)
	}
	if s.LastFrame == nil || s.LastFrame.Kind != "VALUE" || s.LastFrame.Value != 174 {
		t.Errorf("LastFrame: %+v", s.LastFrame)
	}
	if s.LastFrame.At != "2026-01-01T00:14:00Z" {
		t.Errorf("LastFrame.At: got %q", s.LastFrame.At)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Frames != 40 || s.Counts.ErrorFrames != 2 {
		t.Errorf("Counts: %+v", s.Counts)
	}
	if s.Config.ADC != "ads7830" || s.Config.RecheckSlow != 66 {
		t.Errorf("Config: %+v", s.Config)
	}
	// Event and Reason should be omitted
	if s.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", s.Event)
	}
	if s.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", s.Reason)
	}
}

func TestFormatJSONBeforeFirstCycle(t *testing.T) {
	snap := Snapshot{
		Channel:   -1,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if status["state"] != "STARTING" {
		t.Errorf("state: got %v, want STARTING", status["state"])
	}
	if status["channel"] != float64(-1) {
		t.Errorf("channel: got %v, want -1", status["channel"])
	}
	if _, exists := status["last_frame"]; exists {
		t.Error("last_frame should be omitted before any frame")
	}
}

func TestFormatJSONErrorFrame(t *testing.T) {
	frame := logic.NewFrame(0)
	snap := Snapshot{State: logic.StateMonitor, LastFrame: &frame}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.LastFrame == nil || parsed.Status.LastFrame.Kind != "ERROR" {
		t.Errorf("LastFrame: %+v", parsed.Status.LastFrame)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:         logic.StateMonitor,
		ChargerOn:     true,
		Counts:        logic.EventCounts{Cycles: 3},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if !parsed.Status.Charging {
		t.Error("expected Charging=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:     logic.StateSelect,
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		State:     logic.StateMonitor,
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Apply(logic.Event{Type: logic.EventFrame, Iteration: i, Frame: logic.NewFrame(i % 200)})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
