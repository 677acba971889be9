// Package sampling decides which accesses of a full trace a sampled run
// considers, emulating hardware-sampled traces at a target rate.
//
// A Sampler keeps the fraction of considered accesses at or below its rate.
// In kernel mode page faults are considered regardless of the rate, since the
// kernel observes faults regardless of sampling. With a load/store ratio set,
// every access, faults included, must also keep the considered loads/stores
// ratio near the ratio of the full trace.
package sampling

import (
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

// Sampler tracks seen and considered accesses of one run.
type Sampler struct {
	rate      float64
	ratio     float64
	userspace bool

	seen   uint64
	loads  uint64
	stores uint64
}

// New returns a Sampler for rate in (0, 1]. A ratio <= 0 disables ratio preservation.
func New(rate, ratio float64, userspace bool) (*Sampler, error) {
	if rate <= 0 || rate > 1 {
		return nil, ewrap.Wrapf(sentinel.ErrInvalidSampleRate, "got %v", rate)
	}

	return &Sampler{rate: rate, ratio: ratio, userspace: userspace}, nil
}

// Consider counts one seen access and reports whether it is considered.
// A considered access must then be counted with Record.
func (s *Sampler) Consider(fault, load bool) bool {
	s.seen++

	// In kernel mode faults bypass the rate but not the ratio.
	if s.userspace {
		return s.considerDiv() && s.considerRatio(load)
	}

	return (fault || s.considerDiv()) && s.considerRatio(load)
}

// Record counts a considered access.
func (s *Sampler) Record(load bool) {
	if load {
		s.loads++
	} else {
		s.stores++
	}
}

func (s *Sampler) considerDiv() bool {
	return float64(s.loads+s.stores)/float64(s.seen) <= s.rate
}

func (s *Sampler) considerRatio(load bool) bool {
	if s.ratio <= 0 || s.stores == 0 {
		return true
	}

	current := float64(s.loads) / float64(s.stores)
	if load {
		return current <= s.ratio
	}

	return s.ratio <= current
}

// Seen returns the number of accesses passed to Consider.
func (s *Sampler) Seen() uint64 { return s.seen }

// Loads returns the number of considered loads.
func (s *Sampler) Loads() uint64 { return s.loads }

// Stores returns the number of considered stores.
func (s *Sampler) Stores() uint64 { return s.stores }

// Considered returns the number of considered accesses.
func (s *Sampler) Considered() uint64 { return s.loads + s.stores }
