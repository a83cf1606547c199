package logic

import "errors"

// Reasons a reading is Invalid.
var (
	ErrOverVoltage  = errors.New("over-voltage")
	ErrDisconnected = errors.New("disconnected or grounded")
)

// Check returns nil for a valid reading, otherwise the reason it is invalid.
// Values below zero come from offset compensation and count as grounded.
func Check(v int) error {
	if v <= 0 {
		return ErrDisconnected
	}
	if v >= OverVoltageThreshold {
		return ErrOverVoltage
	}
	return nil
}

// Classify maps a reading to Valid or Invalid.
func Classify(v int) Validity {
	if Check(v) != nil {
		return Invalid
	}
	return Valid
}

// Average returns the integer-truncated mean of the samples.
func Average(samples []Sample) Sample {
	if len(samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range samples {
		sum += int(s)
	}
	return Sample(sum / len(samples))
}

// Offset is the bias the charger adds to readings once it is switched on.
func Offset(loaded, ocv Sample) int {
	return int(loaded) - int(ocv)
}

// Compensate removes the charger offset from a monitoring sample.
func Compensate(s Sample, offset int) int {
	return int(s) - offset
}
