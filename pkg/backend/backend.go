// Package backend provides the sinks that persist the distance series produced
// by a bench run. Every series is an append-only list of Records identified by a
// slash-separated name such as "comp/kernel/ARC_1.00_vs_CAR_1.00".
//
// Three sinks are provided:
//   - InMemory keeps the series in process memory (tests, small traces)
//   - File writes one gzip-compressed, length-prefixed stream per series
//   - Redis appends encoded records to a list per series
//
// Sinks are safe for concurrent use by multiple producers and comparators.
package backend

import (
	"context"
)

// Record is one point of a distance series: the trace position and the distance measured there.
type Record struct {
	Seen     uint64 `json:"seen"     msgpack:"seen"     codec:"seen"`
	Distance uint64 `json:"distance" msgpack:"distance" codec:"distance"`
}

// ISinkConstrain defines the type constraint for sink implementations configurable through Option.
type ISinkConstrain interface {
	InMemory | File | Redis
}

// Sink defines the contract that all result sinks must implement.
type Sink interface {
	// Append adds records to the end of a series, creating it if needed.
	// Implementations must not retain the records slice.
	Append(ctx context.Context, series string, records ...Record) error
	// Close flushes buffered records and releases resources. Appending afterwards fails.
	Close() error
}

// SeriesReader is implemented by sinks whose series can be read back.
type SeriesReader interface {
	// Series returns every record of a series in append order.
	Series(ctx context.Context, series string) ([]Record, error)
}
