package redis

import (
	"fmt"

	"github.com/sweeney/charge-client/internal/status"
)

// FakeStore records writes for test assertions.
type FakeStore struct {
	// Hash holds the fields of the most recent write.
	Hash map[string]string

	// Published contains the event names in publish order.
	Published []string

	// History contains non-nil payloads, newest first, capped like the real list.
	History [][]byte

	// WriteError, if set, will be returned by Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeStore creates a FakeStore for testing.
func NewFakeStore() *FakeStore {
	return &FakeStore{Hash: map[string]string{}}
}

// Write records the snapshot fields and the event.
func (f *FakeStore) Write(snap status.Snapshot, event string, payload []byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	for k, v := range SnapshotFields(snap) {
		f.Hash[k] = v
	}
	if payload != nil {
		f.History = append([][]byte{payload}, f.History...)
		if len(f.History) > EventHistory {
			f.History = f.History[:EventHistory]
		}
	}
	f.Published = append(f.Published, event)
	return nil
}

// Status returns a copy of Hash, or an error when nothing was written.
func (f *FakeStore) Status() (map[string]string, error) {
	if len(f.Hash) == 0 {
		return nil, fmt.Errorf("key %s not found", Key)
	}
	out := make(map[string]string, len(f.Hash))
	for k, v := range f.Hash {
		out[k] = v
	}
	return out, nil
}

// RecentEvents returns up to n entries of History.
func (f *FakeStore) RecentEvents(n int) ([][]byte, error) {
	if n > len(f.History) {
		n = len(f.History)
	}
	if n <= 0 {
		return nil, nil
	}
	return f.History[:n], nil
}

// Close marks the store as closed.
func (f *FakeStore) Close() error {
	f.Closed = true
	return nil
}
