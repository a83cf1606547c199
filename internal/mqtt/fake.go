package mqtt

import (
	"github.com/sweeney/charge-client/internal/logic"
)

// FakePublisher records what would reach the broker. With Offline set it
// holds messages in the same offline queue the real publisher uses until
// Reconnect is called.
type FakePublisher struct {
	// Events and Payloads hold delivered cycle events and their JSON.
	Events   []logic.Event
	Payloads [][]byte

	// SystemEvents and SystemPayloads hold delivered lifecycle events and their JSON.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError, if set, are returned before anything is recorded.
	PublishError       error
	PublishSystemError error

	// Offline queues messages instead of delivering them.
	Offline bool

	// Connected controls the return value of IsConnected.
	Connected bool

	Closed bool

	queue   *offlineQueue
	pending map[string]any // queued payload -> event
}

// NewFakePublisher creates a FakePublisher with a queue of DefaultBufferSize.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{
		queue:   newOfflineQueue(DefaultBufferSize),
		pending: map[string]any{},
	}
}

// Publish records the cycle event, or queues it while offline.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.deliver(queuedMsg{topic: Topic, payload: payload}, event)
	return nil
}

// PublishSystem records the lifecycle event, or queues it while offline.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.deliver(queuedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}, event)
	return nil
}

func (f *FakePublisher) deliver(m queuedMsg, event any) {
	if f.Offline {
		f.queue.push(m)
		f.pending[string(m.payload)] = event
		return
	}
	f.record(m, event)
}

func (f *FakePublisher) record(m queuedMsg, event any) {
	switch e := event.(type) {
	case logic.Event:
		f.Events = append(f.Events, e)
		f.Payloads = append(f.Payloads, m.payload)
	case SystemEvent:
		f.SystemEvents = append(f.SystemEvents, e)
		f.SystemPayloads = append(f.SystemPayloads, m.payload)
	}
}

// Reconnect clears Offline and delivers queued messages in order, as the
// real publisher does when the broker comes back.
func (f *FakePublisher) Reconnect() {
	f.Offline = false
	f.Connected = true
	for _, m := range f.queue.drain() {
		f.record(m, f.pending[string(m.payload)])
	}
	f.pending = map[string]any{}
}

// Queued returns the number of messages held while offline.
func (f *FakePublisher) Queued() int {
	return f.queue.len()
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns the Connected field.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// EventsOfType returns the delivered cycle events of the given type.
func (f *FakePublisher) EventsOfType(t logic.EventType) []logic.Event {
	var out []logic.Event
	for _, e := range f.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// SystemEventNames returns the Event field of each delivered system event, in order.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset clears all recorded state.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
	f.Offline = false
	f.queue.drain()
	f.pending = map[string]any{}
}
