package backend

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

// InMemory is a sink that keeps every series in memory.
type InMemory struct {
	sync.RWMutex // mutex to protect the series from concurrent access

	series map[string][]Record
	closed bool
}

// NewInMemory creates a new in-memory sink with the given options.
func NewInMemory(opts ...Option[InMemory]) *InMemory {
	sink := &InMemory{series: make(map[string][]Record)}
	ApplyOptions(sink, opts...)

	return sink
}

// Append adds records to the series.
func (inm *InMemory) Append(_ context.Context, series string, records ...Record) error {
	inm.Lock()
	defer inm.Unlock()

	if inm.closed {
		return ewrap.Wrap(sentinel.ErrSinkClosed, series)
	}

	inm.series[series] = append(inm.series[series], records...)

	return nil
}

// Series returns a copy of the records of series.
func (inm *InMemory) Series(_ context.Context, series string) ([]Record, error) {
	inm.RLock()
	defer inm.RUnlock()

	return slices.Clone(inm.series[series]), nil
}

// Names returns the names of every series, sorted.
func (inm *InMemory) Names() []string {
	inm.RLock()
	defer inm.RUnlock()

	return slices.Sorted(maps.Keys(inm.series))
}

// Close marks the sink closed; its series stay readable.
func (inm *InMemory) Close() error {
	inm.Lock()
	defer inm.Unlock()

	inm.closed = true

	return nil
}
