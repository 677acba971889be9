package pagetemp

import (
	"context"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
	"github.com/hyp3rd/pagetemp/internal/telemetry/attrs"
	"github.com/hyp3rd/pagetemp/pkg/backend"
	"github.com/hyp3rd/pagetemp/pkg/compare"
	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/middleware"
	"github.com/hyp3rd/pagetemp/pkg/sampling"
	"github.com/hyp3rd/pagetemp/pkg/stats"
	tracefile "github.com/hyp3rd/pagetemp/pkg/trace"
)

// producer replays the trace through one policy and publishes its snapshots.
type producer struct {
	bench   *Bench
	spec    RunSpec
	label   string
	policy  eviction.Policy
	sampler *sampling.Sampler
	tracker *compare.Tracker

	input   chan []tracefile.Access
	outputs []chan Snapshot

	stats   stats.Run
	records []backend.Record
}

func (b *Bench) newProducer(spec RunSpec) (*producer, error) {
	policy, err := b.registry.NewAlgorithm(spec.Algorithm, b.params())
	if err != nil {
		return nil, err
	}

	if b.meter != nil {
		policy, err = middleware.NewOTelMetricsMiddleware(policy, b.meter)
		if err != nil {
			return nil, err
		}
	}

	policy = ApplyMiddleware(policy, b.middlewares...)

	ratio := 0.0
	if spec.Ratio {
		ratio = b.config.TraceRatio
	}

	sampler, err := sampling.New(spec.Rate, ratio, spec.Mode == Userspace)
	if err != nil {
		return nil, err
	}

	label := b.Label(spec)

	return &producer{
		bench:   b,
		spec:    spec,
		label:   label,
		policy:  policy,
		sampler: sampler,
		tracker: compare.NewTracker(false),
		input:   make(chan []tracefile.Access, constants.DefaultBatchBuffer),
		stats:   stats.Run{Label: label, Policy: policy.Name(), Rate: spec.Rate},
		records: make([]backend.Record, 0, b.config.BatchSize),
	}, nil
}

func (p *producer) run(ctx context.Context) error {
	defer func() {
		for _, out := range p.outputs {
			close(out)
		}
	}()

	ctx, span := p.bench.tracer.Start(ctx, "pagetemp.producer",
		trace.WithAttributes(attribute.String(attrs.AttrRun, p.label), attribute.String(attrs.AttrPolicy, p.policy.Name())))
	defer span.End()

	series := p.bench.StandaloneSeries(p.spec)
	every := p.bench.config.ProgressEvery

	p.snapshotStats()

	for batch := range p.input {
		for _, access := range batch {
			seen := p.sampler.Seen()
			if every > 0 && seen > 0 && seen%every == 0 {
				p.progress()
			}

			err := p.step(ctx, access, series)
			if err != nil {
				return err
			}
		}

		err := p.publish(ctx, Snapshot{Seen: p.sampler.Seen(), Watermark: true})
		if err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, context.Cause(ctx).Error())
	}

	err := p.flush(ctx, series)
	if err != nil {
		return err
	}

	p.stats.Done = true
	p.snapshotStats()
	span.SetAttributes(attribute.Int64(attrs.AttrRecords, int64(p.stats.Considered())))
	p.bench.logger.Printf("%s: done, seen=%d considered=%d faults=%d fault-avg=%.3f hit-avg=%.3f",
		p.label, p.stats.Seen, p.stats.Considered(), p.stats.Faults,
		p.stats.FaultDistanceAverage(), p.stats.NonFaultDistanceAverage())

	return nil
}

// step handles one access: the fault is observed before the policy is touched.
func (p *producer) step(ctx context.Context, access tracefile.Access, series string) error {
	pg := p.bench.translator.Page(access.Address)
	fault := p.policy.IsPageFault(pg)

	if !p.sampler.Consider(fault, access.Load) {
		return nil
	}

	p.sampler.Record(access.Load)
	p.policy.Consume(pg)

	order := p.policy.TemperatureOrder()
	distance, fingerprint := p.tracker.Next(order)

	if fault {
		p.stats.Faults++
		p.stats.FaultDistance += distance
	} else {
		p.stats.NonFaultDistance += distance
	}

	seen := p.sampler.Seen()

	err := p.publish(ctx, Snapshot{Seen: seen, Fault: fault, Order: order, Fingerprint: fingerprint})
	if err != nil {
		return err
	}

	p.records = append(p.records, backend.Record{Seen: seen, Distance: distance})
	if len(p.records) >= p.bench.config.BatchSize {
		return p.flush(ctx, series)
	}

	return nil
}

func (p *producer) publish(ctx context.Context, snap Snapshot) error {
	for _, out := range p.outputs {
		select {
		case out <- snap:
		case <-ctx.Done():
			return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, context.Cause(ctx).Error())
		}
	}

	return nil
}

func (p *producer) flush(ctx context.Context, series string) error {
	if len(p.records) == 0 {
		return nil
	}

	err := p.bench.sink.Append(ctx, series, p.records...)
	if err != nil {
		return ewrap.Wrapf(err, "%s: writing standalone series", p.label)
	}

	p.records = p.records[:0]

	return nil
}

func (p *producer) snapshotStats() {
	p.stats.Seen = p.sampler.Seen()
	p.stats.ConsideredLoads = p.sampler.Loads()
	p.stats.ConsideredStores = p.sampler.Stores()
	p.bench.collector.PutRun(p.stats)
}

func (p *producer) progress() {
	p.snapshotStats()
	p.bench.logger.Printf("%s: reached seen=%d considered=%d faults=%d",
		p.label, p.stats.Seen, p.stats.Considered(), p.stats.Faults)
}
