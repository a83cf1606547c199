package node

import (
	"testing"
	"time"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
)

// repeat returns n copies of s.
func repeat(s logic.Sample, n int) []logic.Sample {
	out := make([]logic.Sample, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// script joins sample groups in conversion order.
func script(parts ...[]logic.Sample) []logic.Sample {
	var out []logic.Sample
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// probe is the three single conversions of a channel probe.
func probe(v0, vFloat, v1 logic.Sample) []logic.Sample {
	return []logic.Sample{v0, vFloat, v1}
}

// avg is one averaged reading.
func avg(v logic.Sample) []logic.Sample {
	return repeat(v, logic.AveragedSamples)
}

// recorder collects events and decodes each frame from the fake report line.
type recorder struct {
	t       *testing.T
	hal     *hal.FakeHAL
	events  []logic.Event
	decoded []logic.Frame
	onEvent func(e logic.Event)
}

func (r *recorder) Observe(e logic.Event) {
	r.events = append(r.events, e)
	if e.Type == logic.EventReport || e.Type == logic.EventFrame {
		f, ok := logic.DecodeFrame(r.hal.ReportSegments(), logic.DefaultPulseTiming)
		if !ok {
			r.t.Errorf("cycle %d %s: no frame on report line", e.Cycle, e.Type)
		}
		r.decoded = append(r.decoded, f)
		r.hal.ResetReport()
	}
	if r.onEvent != nil {
		r.onEvent(e)
	}
}

func (r *recorder) types() []logic.EventType {
	out := make([]logic.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RecheckSlow = 4
	return cfg
}

func newTestCycle(t *testing.T, samples []logic.Sample) (*Cycle, *hal.FakeHAL, *recorder) {
	t.Helper()
	f := hal.NewFakeHAL(samples)
	rec := &recorder{t: t, hal: f}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCycle(f, testConfig(), rec, func() time.Time { return start.Add(f.Now) })
	if err != nil {
		t.Fatalf("NewCycle: %v", err)
	}
	return c, f, rec
}
