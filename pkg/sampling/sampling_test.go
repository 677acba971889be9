package sampling

import (
	"errors"
	"testing"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

func TestNew_RejectsRatesOutsideUnitInterval(t *testing.T) {
	for _, rate := range []float64{0, -0.1, 1.01} {
		_, err := New(rate, 0, false)
		assert.True(t, errors.Is(err, sentinel.ErrInvalidSampleRate))
	}

	_, err := New(1, 0, false)
	assert.NoError(t, err)
}

func run(s *Sampler, n int, fault func(i int) bool, load func(i int) bool) {
	for i := range n {
		if s.Consider(fault(i), load(i)) {
			s.Record(load(i))
		}
	}
}

func never(int) bool  { return false }
func always(int) bool { return true }

func TestSampler_FullRateConsidersEverything(t *testing.T) {
	s, err := New(1, 0, true)
	assert.NoError(t, err)

	run(s, 1000, never, always)

	assert.Equal(t, uint64(1000), s.Considered())
	assert.Equal(t, uint64(1000), s.Seen())
}

func TestSampler_RateBoundsConsideredFraction(t *testing.T) {
	for _, rate := range []float64{0.01, 0.05, 0.2, 0.6} {
		s, err := New(rate, 0, true)
		assert.NoError(t, err)

		const n = 10_000

		run(s, n, never, func(i int) bool { return i%3 != 0 })

		// Considered stays within one access of rate * seen.
		drift := float64(s.Considered()) - rate*n
		assert.True(t, drift >= -1 && drift <= 1)
	}
}

func TestSampler_KernelConsidersEveryFault(t *testing.T) {
	kernel, err := New(0.01, 0, false)
	assert.NoError(t, err)

	user, err := New(0.01, 0, true)
	assert.NoError(t, err)

	run(kernel, 99, always, always)
	run(user, 99, always, always)

	assert.Equal(t, uint64(99), kernel.Considered())
	assert.Equal(t, uint64(1), user.Considered())
}

func TestSampler_RatioPreservation(t *testing.T) {
	const ratio = 2.0

	s, err := New(0.1, ratio, true)
	assert.NoError(t, err)

	// An access stream with loads/stores = 1/2, far from the target ratio of 2.
	run(s, 30_000, never, func(i int) bool { return i%3 == 0 })

	assert.True(t, s.Stores() > 0)

	current := float64(s.Loads()) / float64(s.Stores())
	assert.True(t, current > 1.8 && current < 2.2)
}

func TestSampler_FirstAccessIsConsidered(t *testing.T) {
	s, err := New(0.01, 3, true)
	assert.NoError(t, err)

	assert.True(t, s.Consider(false, false))
}

func TestSampler_KernelRatioGatesFaults(t *testing.T) {
	s, err := New(1, 1.0, false)
	assert.NoError(t, err)

	for _, load := range []bool{true, true, false} {
		assert.True(t, s.Consider(false, load))
		s.Record(load)
	}

	// loads/stores is 2, above the target of 1: a faulting load is skipped,
	// a faulting store is still taken.
	assert.False(t, s.Consider(true, true))
	assert.True(t, s.Consider(true, false))
}

func TestSampler_KernelWithoutRatioConsidersEveryFault(t *testing.T) {
	s, err := New(0.01, 0, false)
	assert.NoError(t, err)

	run(s, 10, always, func(i int) bool { return i%2 == 0 })

	assert.Equal(t, uint64(10), s.Considered())
}
