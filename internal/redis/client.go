// Package redis mirrors the daemon status into a Redis hash so other
// services on the host can read the charge state without MQTT.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweeney/charge-client/internal/status"
)

const (
	// Key is the hash holding the latest status; updates are also
	// published on a channel of the same name.
	Key = "charge-client"
	// KeyEvents is a capped list of recent event payloads, newest first.
	KeyEvents = "charge-client:events"
	// EventHistory is the number of payloads kept in KeyEvents.
	EventHistory = 100
)

// Store receives status updates.
type Store interface {
	// Write stores the snapshot and announces the event that caused it.
	// payload is appended to the event history when non-nil.
	Write(snap status.Snapshot, event string, payload []byte) error
	Close() error
}

// Reader reads the mirrored status back.
type Reader interface {
	Status() (map[string]string, error)
	RecentEvents(n int) ([][]byte, error)
}

// Client represents a Redis client with publish capabilities.
type Client struct {
	client  *redis.Client
	ctx     context.Context
	timeout time.Duration
}

// New creates a new Redis client and checks the server is reachable.
func New(addr string, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}

	return &Client{
		client:  client,
		ctx:     ctx,
		timeout: 2 * time.Second,
	}, nil
}

// Write stores the snapshot in the status hash and publishes the event name
// in a single pipeline.
func (c *Client) Write(snap status.Snapshot, event string, payload []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	fields := SnapshotFields(snap)
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, Key, values)
	if payload != nil {
		pipe.LPush(ctx, KeyEvents, payload)
		pipe.LTrim(ctx, KeyEvents, 0, EventHistory-1)
	}
	pipe.Publish(ctx, Key, event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

// Status returns the fields of the status hash. It fails when the daemon
// has not written the hash yet.
func (c *Client) Status() (map[string]string, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	fields, err := c.client.HGetAll(ctx, Key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("key %s not found", Key)
	}
	return fields, nil
}

// RecentEvents returns up to n event payloads, newest first.
func (c *Client) RecentEvents(n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	vals, err := c.client.LRange(ctx, KeyEvents, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", KeyEvents, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

// Close closes the Redis client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// SnapshotFields flattens a snapshot into hash fields. Values are strings
// so readers can use HGET without decoding.
func SnapshotFields(snap status.Snapshot) map[string]string {
	state := string(snap.State)
	if state == "" {
		state = "STARTING"
	}

	f := map[string]string{
		"state":               state,
		"cycle":               strconv.Itoa(snap.Cycle),
		"channel":             strconv.Itoa(snap.Channel),
		"charging":            strconv.FormatBool(snap.ChargerOn),
		"ocv":                 strconv.Itoa(snap.OCV),
		"baseline-valid":      strconv.FormatBool(snap.BaselineValid),
		"offset":              strconv.Itoa(snap.Offset),
		"interval":            strconv.Itoa(snap.Interval),
		"iteration":           strconv.Itoa(snap.Iteration),
		"cycles":              strconv.Itoa(snap.Counts.Cycles),
		"discarded-baselines": strconv.Itoa(snap.Counts.DiscardedBaselines),
		"frames":              strconv.Itoa(snap.Counts.Frames),
		"error-frames":        strconv.Itoa(snap.Counts.ErrorFrames),
		"mqtt-connected":      strconv.FormatBool(snap.MQTTConnected),
		"uptime-seconds":      strconv.FormatInt(int64(snap.Uptime().Seconds()), 10),
		"last-frame":          "",
		"last-reason":         snap.LastReason,
	}
	if snap.LastFrame != nil {
		f["last-frame"] = snap.LastFrame.String()
	}
	return f
}
