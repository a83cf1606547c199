package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/multierr"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
)

// Observer receives cycle events. It is called synchronously from the
// cycle and must not block.
type Observer interface {
	Observe(e logic.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e logic.Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e logic.Event) { f(e) }

// Result summarises one outer cycle.
type Result struct {
	Cycle      int
	Probe      logic.Probe
	Interval   int
	OCV        logic.Sample
	Valid      bool
	Offset     int
	Iterations int
	Frames     []logic.Frame
	Reason     string
}

// Cycle runs the charge cycle: select a battery, report its OCV, charge
// while reporting compensated readings, then stop and start over.
type Cycle struct {
	hal      hal.HAL
	cfg      Config
	sampler  *Sampler
	selector *Selector
	encoder  *Encoder
	charger  *ChargeController
	observer Observer
	now      func() time.Time

	state logic.State
	cycle int
}

// NewCycle builds the components on top of h. obs may be nil.
func NewCycle(h hal.HAL, cfg Config, obs Observer, now func() time.Time) (*Cycle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	sampler := NewSampler(h, cfg.Samples, cfg.SampleInterval)
	return &Cycle{
		hal:      h,
		cfg:      cfg,
		sampler:  sampler,
		selector: NewSelector(h, sampler, cfg.MuxOnSettle, cfg.MuxOffSettle),
		encoder:  NewEncoder(h, cfg.Pulse),
		charger:  NewChargeController(h, cfg.ChargerOnDebounce, cfg.ChargerOffDebounce),
		observer: obs,
		now:      now,
		state:    logic.StateSelect,
	}, nil
}

// State returns the current step of the cycle.
func (c *Cycle) State() logic.State {
	return c.state
}

// Selector exposes the battery switch, for one-shot probes.
func (c *Cycle) Selector() *Selector {
	return c.selector
}

// Sampler exposes the voltage sampler, for one-shot probes.
func (c *Cycle) Sampler() *Sampler {
	return c.sampler
}

// Encoder exposes the report line encoder, for bench tests.
func (c *Cycle) Encoder() *Encoder {
	return c.encoder
}

// Start puts the lines in their power-on state: report line idle-high,
// charger off, then waits for the power-on debounce.
func (c *Cycle) Start() error {
	if err := c.encoder.Idle(); err != nil {
		return fmt.Errorf("idle report line: %w", err)
	}
	if err := c.charger.Reset(); err != nil {
		return err
	}
	c.hal.Delay(c.cfg.PowerOnDebounce)
	c.hal.Kick()
	return nil
}

// Run repeats cycles until ctx is done. Cycle errors are logged and the
// next cycle starts after one monitoring sleep; nothing is fatal.
func (c *Cycle) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := c.RunOnce(ctx)
		if err != nil {
			if isCancel(err) {
				return nil
			}
			log.Printf("cycle %d error: %v, retrying in %v", res.Cycle, err, c.cfg.MonitorSleep)
			if err := c.hal.Sleep(ctx, c.cfg.MonitorSleep); err != nil {
				return nil
			}
			continue
		}
		log.Printf("cycle %d done: ocv=%d valid=%v offset=%d iterations=%d/%d reason=%q",
			res.Cycle, res.OCV, res.Valid, res.Offset, res.Iterations, res.Interval, res.Reason)
	}
}

// RunOnce runs one outer cycle from SELECT back to SELECT and reports
// its outcome as a CYCLE_END event.
func (c *Cycle) RunOnce(ctx context.Context) (Result, error) {
	res, err := c.runOnce(ctx)
	c.setState(logic.StateSelect)

	ev := logic.Event{
		Type:      logic.EventCycleEnd,
		OCV:       int(res.OCV),
		Offset:    res.Offset,
		Interval:  res.Interval,
		Iteration: res.Iterations,
		Reason:    res.Reason,
	}
	if err != nil && ev.Reason == "" {
		ev.Reason = err.Error()
	}
	c.emit(ev)
	return res, err
}

func (c *Cycle) runOnce(ctx context.Context) (Result, error) {
	c.cycle++
	res := Result{Cycle: c.cycle}

	// A failed disable in the previous cycle leaves the charger on; OCV
	// must be measured with it off.
	if c.charger.Enabled() {
		c.setState(logic.StateChargerOff)
		if err := c.charger.Disable(); err != nil {
			res.Reason = "charger disable failed"
			return res, err
		}
		c.emit(logic.Event{Type: logic.EventChargerOff, Reason: "retried disable"})
	}

	c.setState(logic.StateSelect)
	c.hal.Kick()
	probe, err := c.selector.ProbeAndSelect()
	if err != nil {
		return res, fmt.Errorf("probe: %w", err)
	}
	res.Probe = probe
	res.Interval = logic.ComputeInterval(probe.V0, probe.V1, c.cfg.RecheckSlow)

	c.setState(logic.StateBaseline)
	ocv, err := c.sampler.SampleAveraged()
	if err != nil {
		res.Reason = fmt.Sprintf("baseline sample: %v", err)
		c.emit(logic.Event{Type: logic.EventBaselineInvalid, Probe: probe, Interval: res.Interval, Reason: res.Reason})
		c.setState(logic.StateSelect)
		return res, nil
	}
	res.OCV = ocv
	if err := logic.Check(int(ocv)); err != nil {
		res.Reason = err.Error()
		c.emit(logic.Event{Type: logic.EventBaselineInvalid, Probe: probe, OCV: int(ocv), Interval: res.Interval, Reason: res.Reason})
		c.setState(logic.StateSelect)
		return res, nil
	}
	res.Valid = true
	c.emit(logic.Event{Type: logic.EventBaseline, Probe: probe, OCV: int(ocv), Interval: res.Interval})

	c.hal.Kick()
	c.setState(logic.StateReportBaseline)
	frame, err := c.encoder.Emit(int(ocv))
	if err != nil {
		return res, err
	}
	c.emit(logic.Event{Type: logic.EventReport, OCV: int(ocv), Frame: frame})

	c.setState(logic.StateAwaitMaster)
	c.hal.Delay(c.cfg.AwaitMaster)

	if err := ctx.Err(); err != nil {
		res.Reason = "cancelled"
		return res, err
	}

	err = c.charge(ctx, &res)
	c.setState(logic.StateSelect)
	return res, err
}

// charge runs CHARGER_ON through CHARGER_OFF. The charger is disabled on
// every exit path.
func (c *Cycle) charge(ctx context.Context, res *Result) (err error) {
	defer func() {
		c.setState(logic.StateChargerOff)
		if derr := c.charger.Disable(); derr != nil {
			// The charger is still on; the next cycle retries the disable.
			err = multierr.Append(err, derr)
			return
		}
		c.emit(logic.Event{Type: logic.EventChargerOff, Iteration: res.Iterations, Interval: res.Interval, Reason: res.Reason})
	}()

	c.setState(logic.StateChargerOn)
	if err := c.charger.Enable(); err != nil {
		res.Reason = "charger enable failed"
		return err
	}
	c.emit(logic.Event{Type: logic.EventChargerOn, OCV: int(res.OCV)})

	c.setState(logic.StateMeasureOffset)
	loaded, err := c.sampler.SampleAveraged()
	if err != nil {
		// Without an offset no reading can be compensated; tell the master.
		res.Reason = fmt.Sprintf("offset sample: %v", err)
		frame, eerr := c.encoder.Emit(0)
		if eerr != nil {
			return eerr
		}
		res.Frames = append(res.Frames, frame)
		c.emit(logic.Event{Type: logic.EventFrame, Frame: frame, Reason: res.Reason})
		return nil
	}
	res.Offset = logic.Offset(loaded, res.OCV)

	c.setState(logic.StateMonitor)
	for i := 1; i <= res.Interval; i++ {
		c.hal.Kick()

		value := 0
		s, serr := c.sampler.SampleAveraged()
		if serr == nil {
			value = logic.Compensate(s, res.Offset)
		}

		frame, err := c.encoder.Emit(value)
		if err != nil {
			return err
		}
		res.Iterations = i
		res.Frames = append(res.Frames, frame)

		ev := logic.Event{Type: logic.EventFrame, OCV: int(res.OCV), Offset: res.Offset, Interval: res.Interval, Iteration: i, Frame: frame}
		if serr != nil {
			ev.Reason = fmt.Sprintf("monitor sample: %v", serr)
		} else if cerr := logic.Check(value); cerr != nil {
			ev.Reason = cerr.Error()
		}
		c.emit(ev)

		// No time is left for a late report after the last slot.
		if frame.IsError() {
			res.Reason = "error frame"
			if ev.Reason != "" {
				res.Reason = ev.Reason
			}
			return nil
		}
		if i == res.Interval {
			res.Reason = "interval complete"
			return nil
		}

		if err := c.hal.Sleep(ctx, c.cfg.MonitorSleep); err != nil {
			res.Reason = "cancelled"
			return err
		}
	}
	return nil
}

func (c *Cycle) setState(s logic.State) {
	c.state = s
}

func (c *Cycle) emit(e logic.Event) {
	if c.observer == nil {
		return
	}
	e.Timestamp = c.now()
	e.Cycle = c.cycle
	e.State = c.state
	e.Channel = c.selector.Battery()
	c.observer.Observe(e)
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
