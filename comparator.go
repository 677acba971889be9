package pagetemp

import (
	"context"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
	"github.com/hyp3rd/pagetemp/internal/telemetry/attrs"
	"github.com/hyp3rd/pagetemp/pkg/backend"
	"github.com/hyp3rd/pagetemp/pkg/compare"
	"github.com/hyp3rd/pagetemp/pkg/stats"
)

// comparator merges the snapshot streams of two runs by trace position and
// records the punished rank distance of the compared order to the baseline order
// each time either order changes. When one run ends, the other is drained against
// its last order.
type comparator struct {
	bench    *Bench
	series   string
	compared <-chan Snapshot
	baseline <-chan Snapshot

	stats   stats.Comparison
	records []backend.Record
}

// stream is one side of a merge.
type stream struct {
	ch      <-chan Snapshot
	head    Snapshot
	hasHead bool
	closed  bool
	// pos is the position of the last taken snapshot. Later snapshots are never before it.
	pos uint64
	// state starts as the empty order of a policy that consumed nothing.
	state Snapshot
}

// input returns the channel to receive from, or nil when the stream needs no input.
func (s *stream) input() <-chan Snapshot {
	if s.hasHead || s.closed {
		return nil
	}

	return s.ch
}

func (s *stream) receive(snap Snapshot, ok bool) {
	if !ok {
		s.closed = true

		return
	}

	s.head, s.hasHead = snap, true
}

// take consumes the head and reports whether it changed the state.
func (s *stream) take() bool {
	head := s.head
	s.hasHead = false
	s.pos = head.Seen

	if head.Watermark {
		return false
	}

	s.state = head

	return true
}

// before reports whether a snapshot at seen can be merged before anything s has not delivered yet.
func (s *stream) before(seen uint64) bool {
	switch {
	case s.closed:
		return true
	case s.hasHead:
		return seen <= s.head.Seen
	default:
		return seen <= s.pos
	}
}

func (c *comparator) run(ctx context.Context) error {
	ctx, span := c.bench.tracer.Start(ctx, "pagetemp.comparator",
		trace.WithAttributes(attribute.String(attrs.AttrComparison, c.series)))
	defer span.End()

	c.stats.Name = c.series
	c.records = make([]backend.Record, 0, c.bench.config.BatchSize)

	a := &stream{ch: c.compared}
	b := &stream{ch: c.baseline}

	for !a.closed || !b.closed || a.hasHead || b.hasHead {
		takeA := a.hasHead && b.before(a.head.Seen)
		takeB := b.hasHead && a.before(b.head.Seen)

		if !takeA && !takeB {
			err := c.wait(ctx, a, b)
			if err != nil {
				return err
			}

			continue
		}

		var (
			changed bool
			at      uint64
		)

		if takeA {
			at = a.head.Seen
			changed = a.take()
		}

		if takeB {
			at = max(at, b.head.Seen)
			changed = b.take() || changed
		}

		if changed {
			err := c.record(ctx, at, c.distance(a.state, b.state))
			if err != nil {
				return err
			}
		}
	}

	err := c.flush(ctx)
	if err != nil {
		return err
	}

	c.stats.Done = true
	c.bench.collector.PutComparison(c.stats)
	span.SetAttributes(attribute.Int64(attrs.AttrRecords, int64(c.stats.Records)))
	c.bench.logger.Printf("%s: done, records=%d avg=%.3f max=%d",
		c.series, c.stats.Records, c.stats.Average(), c.stats.MaxDistance)

	return nil
}

// wait blocks until a stream that holds up the merge delivers a snapshot or closes.
func (*comparator) wait(ctx context.Context, a, b *stream) error {
	select {
	case snap, ok := <-a.input():
		a.receive(snap, ok)
	case snap, ok := <-b.input():
		b.receive(snap, ok)
	case <-ctx.Done():
		return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, context.Cause(ctx).Error())
	}

	return nil
}

func (*comparator) distance(compared, baseline Snapshot) uint64 {
	if len(compared.Order) > 0 && len(compared.Order) == len(baseline.Order) &&
		compared.Fingerprint == baseline.Fingerprint {
		return 0
	}

	return compare.Distance(compared.Order, baseline.Order, true)
}

func (c *comparator) record(ctx context.Context, at, distance uint64) error {
	c.stats.Add(distance)
	c.records = append(c.records, backend.Record{Seen: at, Distance: distance})

	if len(c.records) >= c.bench.config.BatchSize {
		return c.flush(ctx)
	}

	return nil
}

func (c *comparator) flush(ctx context.Context) error {
	if len(c.records) == 0 {
		return nil
	}

	err := c.bench.sink.Append(ctx, c.series, c.records...)
	if err != nil {
		return ewrap.Wrapf(err, "%s: writing comparison series", c.series)
	}

	c.records = c.records[:0]
	c.bench.collector.PutComparison(c.stats)

	return nil
}
