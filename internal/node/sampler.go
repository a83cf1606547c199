package node

import (
	"time"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
)

// Sampler takes single and averaged battery readings.
type Sampler struct {
	hal      hal.HAL
	samples  int
	interval time.Duration
	buf      []logic.Sample
}

// NewSampler averages n conversions taken interval apart.
func NewSampler(h hal.HAL, n int, interval time.Duration) *Sampler {
	return &Sampler{
		hal:      h,
		samples:  n,
		interval: interval,
		buf:      make([]logic.Sample, 0, n),
	}
}

// SampleOnce performs one conversion.
func (s *Sampler) SampleOnce() (logic.Sample, error) {
	return s.hal.Sample()
}

// SampleAveraged returns the truncated mean of n conversions. The delay is
// skipped before the first one.
func (s *Sampler) SampleAveraged() (logic.Sample, error) {
	s.buf = s.buf[:0]
	for i := 0; i < s.samples; i++ {
		if i > 0 {
			s.hal.Delay(s.interval)
		}
		v, err := s.hal.Sample()
		if err != nil {
			return 0, err
		}
		s.buf = append(s.buf, v)
	}
	return logic.Average(s.buf), nil
}

// Classify reports whether a reading may be sent to the master.
func (s *Sampler) Classify(v int) logic.Validity {
	return logic.Classify(v)
}
