// Package compare measures how far apart two temperature orders are.
//
// The distance is the Manhattan distance between the rank vectors of the two
// orders, taken over the pages of the baseline. Pages of the compared order
// that are missing from the baseline do not contribute.
package compare

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/hyp3rd/pagetemp/pkg/page"
)

// Distance returns the sum over every page of baseline of the absolute
// difference between its rank in baseline and its rank in compared. When a
// baseline page is absent from compared and punish is set, its baseline rank is
// added instead; otherwise it contributes nothing.
func Distance(compared, baseline []page.Page, punish bool) uint64 {
	if len(baseline) == 0 {
		return 0
	}

	ranks := make(map[page.Page]int, len(compared))
	for i, pg := range compared {
		ranks[pg] = i
	}

	var total uint64

	for r, pg := range baseline {
		other, ok := ranks[pg]
		switch {
		case ok && other >= r:
			total += uint64(other - r)
		case ok:
			total += uint64(r - other)
		case punish:
			total += uint64(r)
		}
	}

	return total
}

// Fingerprint hashes an order so unchanged orders can be detected without
// comparing them element by element.
func Fingerprint(order []page.Page) uint64 {
	digest := xxhash.New()

	var buf [8]byte
	for _, pg := range order {
		binary.LittleEndian.PutUint64(buf[:], uint64(pg))
		_, _ = digest.Write(buf[:])
	}

	return digest.Sum64()
}

// Tracker computes the distance between consecutive orders of one policy.
// Orders whose fingerprint matches the previous one are at distance zero.
type Tracker struct {
	punish      bool
	previous    []page.Page
	fingerprint uint64
	primed      bool
}

// NewTracker returns a Tracker using the given punish mode.
func NewTracker(punish bool) *Tracker {
	return &Tracker{punish: punish}
}

// Next records order and returns its distance to the previously recorded one,
// along with the fingerprint of order. The first call returns distance zero.
// The tracker keeps a reference to order; callers must not mutate it afterwards.
func (t *Tracker) Next(order []page.Page) (distance, fingerprint uint64) {
	fingerprint = Fingerprint(order)

	if t.primed && fingerprint != t.fingerprint {
		distance = Distance(order, t.previous, t.punish)
	}

	t.previous = order
	t.fingerprint = fingerprint
	t.primed = true

	return distance, fingerprint
}
