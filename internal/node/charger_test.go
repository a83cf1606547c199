package node

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/charge-client/internal/hal"
)

func TestChargeControllerIdempotent(t *testing.T) {
	f := hal.NewFakeHAL(nil)
	c := NewChargeController(f, 500*time.Millisecond, 250*time.Millisecond)

	if err := c.Disable(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Ops) != 0 {
		t.Errorf("disable while off should do nothing, got %+v", f.Ops)
	}

	c.Enable()
	c.Enable()
	if !c.Enabled() || !f.Charging {
		t.Error("charger should be on")
	}
	if f.Now != 500*time.Millisecond {
		t.Errorf("enable debounce: clock at %v, want 500ms", f.Now)
	}

	c.Disable()
	c.Disable()
	if c.Enabled() || f.Charging {
		t.Error("charger should be off")
	}
	if f.Now != 750*time.Millisecond {
		t.Errorf("disable debounce: clock at %v, want 750ms", f.Now)
	}

	if f.Count(hal.OpCharger, true) != 1 || f.Count(hal.OpCharger, false) != 1 {
		t.Errorf("charger ops: %+v", f.Ops)
	}
}

func TestChargeControllerError(t *testing.T) {
	f := hal.NewFakeHAL(nil)
	c := NewChargeController(f, 0, 0)
	c.Enable()

	f.ChargerError = errors.New("line busy")
	if err := c.Disable(); err == nil {
		t.Fatal("expected error")
	}
	if !c.Enabled() {
		t.Error("failed disable should leave the charger tracked as on")
	}
}

func TestChargeControllerReset(t *testing.T) {
	f := hal.NewFakeHAL(nil)
	c := NewChargeController(f, time.Second, time.Second)

	if err := c.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Count(hal.OpCharger, false) != 1 {
		t.Error("reset should always drive the charger line off")
	}
	if f.Now != 0 {
		t.Errorf("reset should not wait, clock at %v", f.Now)
	}
}
