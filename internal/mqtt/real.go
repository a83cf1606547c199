package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/charge-client/internal/logic"
)

// DefaultBufferSize is the number of messages held while the broker is unreachable.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int
	// Will is published by the broker if the connection drops uncleanly.
	Will *SystemEvent
	// OnReconnect is called on its own goroutine after the connection is
	// re-established and the offline buffer has been flushed.
	OnReconnect func()
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are held in an offline queue and replayed on
// reconnect, so a flaky broker never stalls the charge cycle.
type RealPublisher struct {
	client paho.Client
	topic  string

	mu        sync.Mutex
	queue     *offlineQueue
	connected bool
	everUp    bool
	onUp      func()
}

// NewRealPublisher creates a publisher for the given broker. The initial
// connect is allowed to stay pending: paho keeps retrying in the
// background and buffered messages go out once it succeeds.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "charge-client"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		topic: Topic,
		queue: newOfflineQueue(o.BufferSize),
		onUp:  o.OnReconnect,
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(p.handleLost)

	if o.Will != nil {
		payload, err := FormatSystemPayload(*o.Will)
		if err != nil {
			return nil, fmt.Errorf("format will payload: %w", err)
		}
		opts.SetBinaryWill(TopicSystem, payload, 1, o.Will.Retained)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker: %w", token.Error())
	}
	if !p.IsConnected() {
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", o.Broker)
	}

	return p, nil
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	pending := p.queue.drain()
	p.mu.Unlock()

	if len(pending) > 0 {
		log.Printf("mqtt: connected, flushing %d buffered messages", len(pending))
	}
	for _, m := range pending {
		// Fire and forget: the handler runs on paho's goroutine and must not block on acks.
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	if reconnect && p.onUp != nil {
		go p.onUp()
	}
}

func (p *RealPublisher) handleLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// send publishes immediately when connected, otherwise queues.
func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected {
		p.queue.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends a charge cycle event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(p.topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	if err := p.send(TopicSystem, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("system: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
