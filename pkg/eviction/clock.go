// Package eviction - The clock eviction algorithm is a page replacement algorithm that keeps resident pages
// in a circular buffer with a "hand" pointing at the next candidate.
// The generalized variant (GCLOCK) gives each page a reference counter in [0, K] instead of a single bit:
// an access resets the page's counter to K, and the hand decrements counters as it sweeps,
// evicting the first page whose counter is already zero.
package eviction

import (
	"github.com/hyp3rd/pagetemp/pkg/page"
)

// Clock is a generalized CLOCK (GCLOCK) policy over a fixed-capacity ring of slots.
type Clock struct {
	slots    []page.Page
	counters []int
	keys     map[page.Page]int
	capacity int
	size     int
	hand     int
	k        int
}

// NewClock creates a GCLOCK policy with the given capacity and counter ceiling k.
func NewClock(capacity, k int) (*Clock, error) {
	err := validateCapacity(capacity)
	if err != nil {
		return nil, err
	}

	err = validateK(k)
	if err != nil {
		return nil, err
	}

	return &Clock{
		slots:    make([]page.Page, capacity),
		counters: make([]int, capacity),
		keys:     make(map[page.Page]int, capacity),
		capacity: capacity,
		k:        k,
	}, nil
}

// Name returns "CLOCK" for K = 1 and "GCLOCK" otherwise.
func (c *Clock) Name() string {
	if c.k == 1 {
		return "CLOCK"
	}

	return "GCLOCK"
}

// Capacity returns the number of slots.
func (c *Clock) Capacity() int { return c.capacity }

// Len returns the number of occupied slots.
func (c *Clock) Len() int { return c.size }

// IsPageFault reports whether pg occupies no slot.
func (c *Clock) IsPageFault(pg page.Page) bool {
	_, ok := c.keys[pg]

	return !ok
}

// Consume records an access. A miss fills the next free slot while warming up,
// and otherwise overwrites the slot the hand stops at; the hand stays on that slot.
// In every case the accessed page's counter is reset to K.
func (c *Clock) Consume(pg page.Page) {
	idx, ok := c.keys[pg]
	if !ok {
		if c.size < c.capacity {
			idx = c.size
			c.size++
		} else {
			idx = c.sweep()
			delete(c.keys, c.slots[idx])
		}

		c.slots[idx] = pg
		c.keys[pg] = idx
	}

	c.counters[idx] = c.k
}

// sweep advances the hand, decrementing non-zero counters, until it rests on a zero counter.
func (c *Clock) sweep() int {
	for c.counters[c.hand] > 0 {
		c.counters[c.hand]--
		c.hand = (c.hand + 1) % c.capacity
	}

	return c.hand
}

// TemperatureOrder returns the order in which repeated sweeps would evict the residents:
// starting at the hand, pages with counter 0 first, then 1, up to K, ring order within a group.
func (c *Clock) TemperatureOrder() []page.Page {
	order := make([]page.Page, 0, c.size)
	if c.size == 0 {
		return order
	}

	// Until warm-up completes the hand has never moved and sits at slot 0.
	start := c.hand % c.size

	for counter := 0; counter <= c.k; counter++ {
		for i := range c.size {
			idx := (start + i) % c.size
			if c.counters[idx] == counter {
				order = append(order, c.slots[idx])
			}
		}
	}

	return order
}
