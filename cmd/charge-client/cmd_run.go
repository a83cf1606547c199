package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/charge-client/internal/logic"
	"github.com/sweeney/charge-client/internal/mqtt"
	"github.com/sweeney/charge-client/internal/node"
	"github.com/sweeney/charge-client/internal/redis"
	"github.com/sweeney/charge-client/internal/status"
	"github.com/sweeney/charge-client/internal/web"
)

var (
	brokerFlag    string
	redisFlag     string
	redisPassFlag string
	redisDBFlag   int
	heartbeatFlag time.Duration
	httpFlag      string
	wsBrokerFlag  string
)

// eventQueueSize bounds the events waiting for the telemetry loop. A full
// queue drops events rather than delaying the cycle.
const eventQueueSize = 256

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the charge cycle and publish telemetry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&brokerFlag, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	f.StringVar(&redisFlag, "redis", "", "Redis address for the status mirror, e.g. localhost:6379 (empty to disable)")
	f.StringVar(&redisPassFlag, "redis-password", "", "Redis password")
	f.IntVar(&redisDBFlag, "redis-db", 0, "Redis database")
	f.DurationVar(&heartbeatFlag, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	f.StringVar(&httpFlag, "http", ":80", "HTTP status address (empty to disable)")
	f.StringVar(&wsBrokerFlag, "ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	rootCmd.AddCommand(runCmd)
}

func runDaemon() error {
	cfg := nodeConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid timing flags: %w", err)
	}

	h, err := openHAL()
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			log.Printf("hal close: %v", err)
		}
	}()

	ws := resolveWSBroker(wsBrokerFlag, brokerFlag)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		ADC:         adcFlag,
		RecheckSlow: cfg.RecheckSlow,
		MonitorMs:   cfg.MonitorSleep.Milliseconds(),
		AwaitMs:     cfg.AwaitMaster.Milliseconds(),
		PulseUnitUs: cfg.Pulse.Unit.Microseconds(),
		TriggerUs:   cfg.Pulse.Trigger.Microseconds(),
		HeartbeatMs: heartbeatFlag.Milliseconds(),
		Broker:      brokerFlag,
		Redis:       redisFlag,
		HTTPPort:    httpFlag,
		WSBroker:    ws,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize MQTT
	var publisher *mqtt.RealPublisher
	publisher, err = mqtt.NewRealPublisher(mqtt.Options{
		Broker: brokerFlag,
		Will:   &mqtt.SystemEvent{Timestamp: time.Now(), Event: "LWT", Reason: "connection lost", Retained: true},
		OnReconnect: func() {
			tracker.SetMQTTConnected(true)
			ev := mqtt.SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}
			if err := publisher.PublishSystem(ev); err != nil {
				log.Printf("failed to publish reconnect event: %v", err)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Redis is optional; the node charges without it.
	var store redis.Store
	if redisFlag != "" {
		c, err := redis.New(redisFlag, redisPassFlag, redisDBFlag)
		if err != nil {
			log.Printf("redis disabled: %v", err)
		} else {
			store = c
			defer c.Close()
		}
	}

	sink := newEventSink(eventQueueSize)
	cycle, err := node.NewCycle(h, cfg, sink, time.Now)
	if err != nil {
		return err
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}
	if store != nil {
		if err := store.Write(snap, "STARTUP", nil); err != nil {
			log.Printf("redis write error: %v", err)
		}
	}

	// Start HTTP status server
	if httpFlag != "" {
		srv := web.New(httpFlag, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpFlag)
	}

	if err := cycle.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	log.Printf("started: adc=%s recheck=%d monitor=%v broker=%s heartbeat=%v",
		adcFlag, cfg.RecheckSlow, cfg.MonitorSleep, brokerFlag, heartbeatFlag)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		cycle:      cycle,
		events:     sink.ch,
		publisher:  publisher,
		mqttStatus: publisher,
		store:      store,
		tracker:    tracker,
		heartbeat:  heartbeatFlag,
		now:        time.Now,
	}
	err = l.run(context.Background(), ticker.C, sigCh)
	if n := sink.Dropped(); n > 0 {
		log.Printf("%d telemetry events were dropped", n)
	}
	return err
}

// eventSink queues cycle events for the telemetry loop without ever
// blocking the cycle.
type eventSink struct {
	ch      chan logic.Event
	dropped atomic.Int64
}

func newEventSink(size int) *eventSink {
	return &eventSink{ch: make(chan logic.Event, size)}
}

// Observe implements node.Observer.
func (s *eventSink) Observe(e logic.Event) {
	select {
	case s.ch <- e:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Printf("telemetry queue full, %d events dropped", n)
		}
	}
}

// Dropped returns the number of events that did not fit in the queue.
func (s *eventSink) Dropped() int64 {
	return s.dropped.Load()
}

// cycleRunner is the part of node.Cycle the loop drives.
type cycleRunner interface {
	Run(ctx context.Context) error
}

// loop runs the cycle in its own goroutine and fans its events out to the
// tracker, MQTT and Redis. Publishing happens here so a slow broker never
// stretches the protocol timing.
type loop struct {
	cycle      cycleRunner
	events     <-chan logic.Event
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	store      redis.Store // optional
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time
}

func (l *loop) run(parent context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	hb := logic.NewHeartbeat(l.now())
	done := make(chan error, 1)
	go func() {
		done <- l.cycle.Run(ctx)
	}()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			cancel()
			err := <-done
			l.drain()
			l.shutdown(signalName(s))
			return err

		case err := <-done:
			l.drain()
			l.shutdown("STOPPED")
			return err

		case e := <-l.events:
			l.handle(e)

		case <-tick:
			t := l.now()
			l.refreshMQTT()

			hbData := hb.Check(t, l.heartbeat, l.tracker.Snapshot().Counts)
			if hbData == nil {
				continue
			}
			log.Printf("heartbeat: uptime=%v cycles=%d discarded=%d frames=%d error_frames=%d",
				hbData.Uptime, hbData.Counts.Cycles, hbData.Counts.DiscardedBaselines,
				hbData.Counts.Frames, hbData.Counts.ErrorFrames)

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			snap := l.tracker.Snapshot()
			hbEvent := mqtt.SystemEvent{
				Timestamp:  hbData.Timestamp,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := l.publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
			l.write(snap, "HEARTBEAT", nil)
		}
	}
}

func (l *loop) handle(e logic.Event) {
	switch e.Type {
	case logic.EventFrame, logic.EventReport:
		log.Printf("event: %s cycle=%d channel=%d iteration=%d/%d frame=%s reason=%q",
			e.Type, e.Cycle, e.Channel, e.Iteration, e.Interval, e.Frame, e.Reason)
	default:
		log.Printf("event: %s cycle=%d state=%s channel=%d ocv=%d reason=%q",
			e.Type, e.Cycle, e.State, e.Channel, e.OCV, e.Reason)
	}

	l.tracker.Apply(e)
	if err := l.publisher.Publish(e); err != nil {
		log.Printf("publish error: %v", err)
		// Don't stop on publish failure
	}

	if l.store != nil {
		payload, err := mqtt.FormatPayload(e)
		if err != nil {
			log.Printf("format payload: %v", err)
			payload = nil
		}
		l.write(l.tracker.Snapshot(), string(e.Type), payload)
	}
}

func (l *loop) write(snap status.Snapshot, event string, payload []byte) {
	if l.store == nil {
		return
	}
	if err := l.store.Write(snap, event, payload); err != nil {
		log.Printf("redis write error: %v", err)
	}
}

func (l *loop) refreshMQTT() {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

// drain handles events the cycle queued before it stopped.
func (l *loop) drain() {
	for {
		select {
		case e := <-l.events:
			l.handle(e)
		default:
			return
		}
	}
}

func (l *loop) shutdown(reason string) {
	l.refreshMQTT()
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
	l.write(snap, "SHUTDOWN", nil)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
