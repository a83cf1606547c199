// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/charge-client/internal/logic"
)

// Topic is the MQTT topic for charge cycle events.
const Topic = "energy/charger/client/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/charger/client/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a charge cycle event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Charger ChargerPayload `json:"charger"`
}

// ChargerPayload contains the cycle event details.
type ChargerPayload struct {
	Timestamp string        `json:"timestamp"`
	Event     string        `json:"event"`
	Cycle     int           `json:"cycle"`
	State     string        `json:"state"`
	Channel   int           `json:"channel"`
	OCV       int           `json:"ocv,omitempty"`
	Offset    int           `json:"offset"`
	Interval  int           `json:"interval,omitempty"`
	Iteration int           `json:"iteration,omitempty"`
	Probe     *ProbePayload `json:"probe,omitempty"`
	Frame     *FramePayload `json:"frame,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// ProbePayload carries the three probe readings.
type ProbePayload struct {
	V0      int  `json:"v0"`
	Float   int  `json:"float"`
	V1      int  `json:"v1"`
	Toggled bool `json:"toggled"`
}

// FramePayload describes what went out on the report line.
type FramePayload struct {
	Kind  string `json:"kind"`
	Value int    `json:"value,omitempty"`
}

// FormatPayload creates the JSON payload for a cycle event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := ChargerPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Cycle:     event.Cycle,
		State:     string(event.State),
		Channel:   event.Channel,
		OCV:       event.OCV,
		Offset:    event.Offset,
		Interval:  event.Interval,
		Iteration: event.Iteration,
		Reason:    event.Reason,
	}

	switch event.Type {
	case logic.EventBaseline, logic.EventBaselineInvalid:
		p.Probe = &ProbePayload{
			V0:      int(event.Probe.V0),
			Float:   int(event.Probe.Float),
			V1:      int(event.Probe.V1),
			Toggled: event.Probe.Toggled,
		}
	case logic.EventReport, logic.EventFrame:
		p.Frame = &FramePayload{Kind: "VALUE", Value: event.Frame.Value}
		if event.Frame.IsError() {
			p.Frame = &FramePayload{Kind: "ERROR"}
		}
	}

	return json.Marshal(Payload{Charger: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
