package node

import (
	"fmt"
	"time"

	"github.com/sweeney/charge-client/internal/hal"
)

// ChargeController switches the external charger.
type ChargeController struct {
	hal         hal.HAL
	onDebounce  time.Duration
	offDebounce time.Duration
	enabled     bool
}

// NewChargeController creates a controller with the charger assumed off.
func NewChargeController(h hal.HAL, onDebounce, offDebounce time.Duration) *ChargeController {
	return &ChargeController{hal: h, onDebounce: onDebounce, offDebounce: offDebounce}
}

// Enabled reports whether the charger is on.
func (c *ChargeController) Enabled() bool {
	return c.enabled
}

// Enable turns the charger on and waits for the power lines to debounce.
func (c *ChargeController) Enable() error {
	if c.enabled {
		return nil
	}
	if err := c.hal.EnableCharger(true); err != nil {
		return fmt.Errorf("enable charger: %w", err)
	}
	c.enabled = true
	c.hal.Delay(c.onDebounce)
	return nil
}

// Disable turns the charger off and waits for the power lines to settle
// before the next OCV reading.
func (c *ChargeController) Disable() error {
	if !c.enabled {
		return nil
	}
	if err := c.hal.EnableCharger(false); err != nil {
		return fmt.Errorf("disable charger: %w", err)
	}
	c.enabled = false
	c.hal.Delay(c.offDebounce)
	return nil
}

// Reset forces the charger line off regardless of the tracked state.
func (c *ChargeController) Reset() error {
	if err := c.hal.EnableCharger(false); err != nil {
		return fmt.Errorf("reset charger: %w", err)
	}
	c.enabled = false
	return nil
}
