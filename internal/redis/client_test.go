package redis

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
	"github.com/sweeney/charge-client/internal/status"
)

func TestSnapshotFields(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := logic.NewFrame(173)
	snap := status.Snapshot{
		State:         logic.StateMonitor,
		Cycle:         4,
		Channel:       1,
		ChargerOn:     true,
		OCV:           180,
		BaselineValid: true,
		Offset:        5,
		Interval:      66,
		Iteration:     9,
		LastFrame:     &frame,
		Counts:        logic.EventCounts{Cycles: 4, DiscardedBaselines: 1, Frames: 20, ErrorFrames: 2},
		StartTime:     start,
		Now:           start.Add(90 * time.Second),
		MQTTConnected: true,
	}

	f := SnapshotFields(snap)

	want := map[string]string{
		"state":               "MONITOR",
		"cycle":               "4",
		"channel":             "1",
		"charging":            "true",
		"ocv":                 "180",
		"baseline-valid":      "true",
		"offset":              "5",
		"interval":            "66",
		"iteration":           "9",
		"cycles":              "4",
		"discarded-baselines": "1",
		"frames":              "20",
		"error-frames":        "2",
		"mqtt-connected":      "true",
		"uptime-seconds":      "90",
		"last-frame":          "VALUE(173)",
		"last-reason":         "",
	}
	if len(f) != len(want) {
		t.Errorf("field count: got %d, want %d", len(f), len(want))
	}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("%s: got %q, want %q", k, f[k], v)
		}
	}
}

func TestSnapshotFieldsBeforeFirstCycle(t *testing.T) {
	f := SnapshotFields(status.Snapshot{Channel: -1})

	if f["state"] != "STARTING" {
		t.Errorf("state: got %q, want STARTING", f["state"])
	}
	if f["channel"] != "-1" {
		t.Errorf("channel: got %q, want -1", f["channel"])
	}
	if f["last-frame"] != "" {
		t.Errorf("last-frame: got %q, want empty", f["last-frame"])
	}
}

func TestFakeStore(t *testing.T) {
	s := NewFakeStore()

	if err := s.Write(status.Snapshot{State: logic.StateBaseline, OCV: 180}, "BASELINE", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(status.Snapshot{State: logic.StateMonitor, OCV: 180}, "HEARTBEAT", nil); err != nil {
		t.Fatal(err)
	}

	if s.Hash["state"] != "MONITOR" {
		t.Errorf("hash should hold the latest write, got state %q", s.Hash["state"])
	}
	if len(s.Published) != 2 || s.Published[1] != "HEARTBEAT" {
		t.Errorf("published: %v", s.Published)
	}
	if len(s.History) != 1 {
		t.Errorf("history: got %d entries, want 1", len(s.History))
	}

	s.WriteError = errors.New("down")
	if err := s.Write(status.Snapshot{}, "FRAME", nil); err == nil {
		t.Error("expected error")
	}

	s.Close()
	if !s.Closed {
		t.Error("expected Closed")
	}
}

func TestFakeStoreHistoryIsCapped(t *testing.T) {
	s := NewFakeStore()
	for i := 0; i < EventHistory+10; i++ {
		s.Write(status.Snapshot{}, "FRAME", []byte(fmt.Sprint(i)))
	}

	if len(s.History) != EventHistory {
		t.Fatalf("history: got %d, want %d", len(s.History), EventHistory)
	}
	if string(s.History[0]) != fmt.Sprint(EventHistory+9) {
		t.Errorf("newest first: got %s", s.History[0])
	}
}

func TestFakeStoreReadBack(t *testing.T) {
	s := NewFakeStore()
	var r Reader = s

	if _, err := r.Status(); err == nil {
		t.Error("expected error before the first write")
	}

	s.Write(status.Snapshot{State: logic.StateMonitor, OCV: 180}, "FRAME", []byte(`{"n":1}`))
	s.Write(status.Snapshot{State: logic.StateMonitor, OCV: 180}, "FRAME", []byte(`{"n":2}`))

	fields, err := r.Status()
	if err != nil {
		t.Fatal(err)
	}
	if fields["state"] != "MONITOR" || fields["ocv"] != "180" {
		t.Errorf("fields: %v", fields)
	}
	fields["state"] = "changed"
	if s.Hash["state"] != "MONITOR" {
		t.Error("Status should return a copy")
	}

	events, err := r.RecentEvents(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || string(events[0]) != `{"n":2}` {
		t.Errorf("recent events: %q", events)
	}
	if events, _ := r.RecentEvents(0); events != nil {
		t.Errorf("RecentEvents(0): got %q", events)
	}
}
