package mqtt

import "log"

// queuedMsg is a serialized message waiting for the broker.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// durable reports whether the message is a lifecycle event (QoS 1) rather
// than a cycle event.
func (m queuedMsg) durable() bool {
	return m.qos > 0
}

// offlineQueue holds messages while the broker is unreachable.
// When full it evicts the oldest cycle event; lifecycle events are only
// evicted when nothing else is left. Caller must synchronize.
type offlineQueue struct {
	msgs     []queuedMsg
	capacity int
	dropped  int // evicted since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{
		msgs:     make([]queuedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(m queuedMsg) {
	if len(q.msgs) == q.capacity {
		if q.dropped == 0 {
			log.Printf("mqtt: offline queue full (%d messages), evicting oldest cycle events", q.capacity)
		}
		q.dropped++
		q.evict()
	}
	q.msgs = append(q.msgs, m)
}

func (q *offlineQueue) evict() {
	victim := 0
	for i, m := range q.msgs {
		if !m.durable() {
			victim = i
			break
		}
	}
	q.msgs = append(q.msgs[:victim], q.msgs[victim+1:]...)
}

// drain returns queued messages in publish order and empties the queue.
func (q *offlineQueue) drain() []queuedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	if q.dropped > 0 {
		log.Printf("mqtt: %d messages were evicted while offline", q.dropped)
	}
	out := q.msgs
	q.msgs = make([]queuedMsg, 0, q.capacity)
	q.dropped = 0
	return out
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
