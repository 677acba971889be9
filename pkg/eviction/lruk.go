package eviction

import (
	"slices"
	"strconv"

	"github.com/hyp3rd/pagetemp/pkg/page"
)

// LRUK approximates LRU-K with an access counter in place of wall-clock time.
//
// history[0] is the counter value of a page's most recent access and
// history[K-1] of its K-th most recent, zero-padded until the page has been
// seen K times. The correlated reference period is 0: every hit updates the
// history immediately. Victims have the smallest history[K-1]; ties go to the
// earliest admitted resident.
type LRUK struct {
	capacity        int
	k               int
	infiniteHistory bool
	stamp           uint64

	residents []page.Page // admission order
	resident  map[page.Page]struct{}
	histories map[page.Page][]uint64
}

// NewLRUK creates an LRU-K policy. With infiniteHistory the histories of evicted
// pages are retained and reused on re-admission.
func NewLRUK(capacity, k int, infiniteHistory bool) (*LRUK, error) {
	err := validateCapacity(capacity)
	if err != nil {
		return nil, err
	}

	err = validateK(k)
	if err != nil {
		return nil, err
	}

	return &LRUK{
		capacity:        capacity,
		k:               k,
		infiniteHistory: infiniteHistory,
		residents:       make([]page.Page, 0, capacity),
		resident:        make(map[page.Page]struct{}, capacity),
		histories:       make(map[page.Page][]uint64, capacity),
	}, nil
}

// Name returns "LRU_<K>".
func (l *LRUK) Name() string { return "LRU_" + strconv.Itoa(l.k) }

// Capacity returns the maximum number of resident pages.
func (l *LRUK) Capacity() int { return l.capacity }

// Len returns the number of resident pages.
func (l *LRUK) Len() int { return len(l.residents) }

// IsPageFault reports whether pg is not resident.
func (l *LRUK) IsPageFault(pg page.Page) bool {
	_, ok := l.resident[pg]

	return !ok
}

// History returns a copy of the history of pg, or nil if none is kept.
func (l *LRUK) History(pg page.Page) []uint64 {
	return slices.Clone(l.histories[pg])
}

// Consume records an access at the next counter value.
func (l *LRUK) Consume(pg page.Page) {
	l.stamp++

	hist, ok := l.histories[pg]
	if !ok {
		hist = make([]uint64, l.k)
		hist[0] = l.stamp
	}

	if _, hit := l.resident[pg]; hit {
		copy(hist[1:], hist[:l.k-1])
		hist[0] = l.stamp
	} else {
		if len(l.residents) == l.capacity {
			l.evict()
		}

		l.residents = append(l.residents, pg)
		l.resident[pg] = struct{}{}
	}

	l.histories[pg] = hist
}

// evict removes the resident with the smallest K-th most recent access.
func (l *LRUK) evict() {
	pos := l.victim(l.residents)
	victim := l.residents[pos]

	l.residents = slices.Delete(l.residents, pos, pos+1)
	delete(l.resident, victim)

	if !l.infiniteHistory {
		delete(l.histories, victim)
	}
}

// victim returns the position in pages of the first page with the smallest history[K-1].
func (l *LRUK) victim(pages []page.Page) int {
	best := 0
	bestStamp := l.kth(pages[0])

	for i := 1; i < len(pages); i++ {
		if s := l.kth(pages[i]); s < bestStamp {
			best, bestStamp = i, s
		}
	}

	return best
}

func (l *LRUK) kth(pg page.Page) uint64 { return l.histories[pg][l.k-1] }

// TemperatureOrder returns residents in eviction order: ascending history[K-1],
// admission order among equals.
func (l *LRUK) TemperatureOrder() []page.Page {
	order := slices.Clone(l.residents)
	slices.SortStableFunc(order, func(a, b page.Page) int {
		sa, sb := l.kth(a), l.kth(b)

		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	})

	return order
}
