// Package pagetemp replays a memory-access trace through several page-replacement
// policies at once and measures how far apart their temperature orders drift.
//
// A Bench reads the trace once and fans it out to one producer per RunSpec. Each
// producer owns a policy, samples the accesses it considers, and publishes a
// Snapshot of the policy's temperature order after every considered access.
// Comparators merge the snapshot streams of two producers by trace position and
// record the rank distance between the two orders. Every distance series goes to
// a backend.Sink; run and comparison summaries are kept in a stats.Collector.
package pagetemp

import (
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
	"github.com/hyp3rd/pagetemp/pkg/backend"
	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/middleware"
	"github.com/hyp3rd/pagetemp/pkg/page"
	"github.com/hyp3rd/pagetemp/pkg/stats"
	tracefile "github.com/hyp3rd/pagetemp/pkg/trace"
)

const instrumentationName = "github.com/hyp3rd/pagetemp"

// Source streams the accesses of a trace. *trace.Reader implements it.
type Source interface {
	Each(ctx context.Context, fn func(tracefile.Access) error) error
}

// Snapshot is the state of a run right after it considered the access at position Seen.
type Snapshot struct {
	Seen        uint64
	Fault       bool
	Order       []page.Page
	Fingerprint uint64
	// Watermark snapshots carry no state: they only report that the run has read
	// the trace up to Seen.
	Watermark bool
}

type discardLogger struct{}

func (discardLogger) Printf(string, ...any) {}

// Bench replays a trace through the runs of a Plan.
type Bench struct {
	config      *Config
	registry    *eviction.AlgorithmRegistry
	sink        backend.Sink
	logger      middleware.Logger
	middlewares []Middleware
	meter       metric.Meter
	tracer      trace.Tracer
	collector   *stats.Collector
	translator  page.Translator
	plan        Plan
	names       map[string]string // registry name -> policy Name()

	mgmtAddr string
	mgmtOpts []ManagementHTTPOption
	mgmtHTTP *ManagementHTTPServer

	mu      sync.Mutex
	running bool
}

// New creates a Bench configured by opts, validates it, and starts the
// management HTTP server when one is configured.
func New(ctx context.Context, opts ...Option) (*Bench, error) {
	bench := &Bench{
		config:    NewConfig(),
		registry:  eviction.NewAlgorithmRegistry(),
		logger:    discardLogger{},
		tracer:    defaultTracer(),
		collector: stats.NewCollector(),
	}

	ApplyOptions(bench, opts...)

	if bench.sink == nil {
		bench.sink = backend.NewInMemory()
	}

	bench.sink = middleware.NewOTelTracingSink(bench.sink, bench.tracer)

	err := bench.validate()
	if err != nil {
		return nil, err
	}

	if bench.mgmtAddr != "" {
		bench.mgmtHTTP = NewManagementHTTPServer(bench.mgmtAddr, bench.mgmtOpts...)

		err = bench.mgmtHTTP.Start(ctx, bench)
		if err != nil {
			return nil, err
		}
	}

	return bench, nil
}

func (b *Bench) validate() error {
	translator, err := page.NewTranslator(b.config.PageSize)
	if err != nil {
		return err
	}

	b.translator = translator

	if b.config.BatchSize <= 0 {
		b.config.BatchSize = constants.DefaultBatchSize
	}

	if b.config.ChannelBuffer < 0 {
		b.config.ChannelBuffer = constants.DefaultChannelBuffer
	}

	b.names = make(map[string]string, len(b.config.Algorithms))

	for _, alg := range b.config.Algorithms {
		policy, err := b.registry.NewAlgorithm(alg, b.params())
		if err != nil {
			return err
		}

		b.names[alg] = policy.Name()
	}

	b.plan, err = BuildPlan(b.config.Algorithms, b.config.SampleRates, b.config.RatioRealistic, b.config.Modes)

	return err
}

func (b *Bench) params() eviction.Params {
	return eviction.Params{
		Capacity:        b.config.Capacity,
		K:               b.config.K,
		InfiniteHistory: b.config.InfiniteHistory,
	}
}

// Config returns a copy of the configuration.
func (b *Bench) Config() Config { return *b.config }

// Plan returns the comparisons and runs of the bench.
func (b *Bench) Plan() Plan { return b.plan }

// Label returns the label of a run, e.g. "kernel/GCLOCK_0.20".
func (b *Bench) Label(spec RunSpec) string { return spec.Label(b.names[spec.Algorithm]) }

// StandaloneSeries returns the sink series holding the order changes of a run.
func (b *Bench) StandaloneSeries(spec RunSpec) string {
	return "standalone/" + b.Label(spec)
}

// ComparisonSeries returns the sink series holding the distances of a comparison.
func (b *Bench) ComparisonSeries(c Comparison) string {
	return "comp/" + c.Compared.Mode.String() + "/" +
		c.Compared.Name(b.names[c.Compared.Algorithm]) + "_vs_" + c.Baseline.Name(b.names[c.Baseline.Algorithm])
}

// Summary returns the statistics collected so far.
func (b *Bench) Summary() stats.Summary { return b.collector.Summary() }

// ManagementHTTPAddress returns the bound management address, empty when disabled.
func (b *Bench) ManagementHTTPAddress() string {
	if b.mgmtHTTP == nil {
		return ""
	}

	return b.mgmtHTTP.Address()
}

// Stop shuts the management HTTP server down and closes the sink.
func (b *Bench) Stop(ctx context.Context) error {
	var mgmtErr error
	if b.mgmtHTTP != nil {
		mgmtErr = b.mgmtHTTP.Shutdown(ctx)
	}

	sinkErr := b.sink.Close()
	if sinkErr != nil {
		return ewrap.Wrap(sinkErr, "closing sink")
	}

	return mgmtErr
}

// Run replays source through every run of the plan and returns the final summary.
// It stops at the first error, or when ctx is done.
func (b *Bench) Run(ctx context.Context, source Source) (stats.Summary, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()

		return stats.Summary{}, ewrap.New("bench is already running")
	}

	b.running = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, span := b.tracer.Start(ctx, "pagetemp.Bench.Run", trace.WithAttributes(
		attribute.Int("runs.count", len(b.plan.Runs)),
		attribute.Int("comparisons.count", len(b.plan.Comparisons)),
	))
	defer span.End()

	producers, comparators, err := b.wire()
	if err != nil {
		return stats.Summary{}, err
	}

	b.logger.Printf("starting %d runs and %d comparisons", len(producers), len(comparators))

	grp := newGroup(ctx)

	for _, c := range comparators {
		grp.Go(func(ctx context.Context) error { return c.run(ctx) })
	}

	for _, p := range producers {
		grp.Go(func(ctx context.Context) error { return p.run(ctx) })
	}

	grp.Go(func(ctx context.Context) error { return b.broadcast(ctx, source, producers) })

	err = grp.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Printf("bench failed: %v", err)

		return b.collector.Summary(), err
	}

	b.logger.Printf("bench finished")

	return b.collector.Summary(), nil
}

// wire creates one producer per run and one comparator per comparison, connected by channels.
func (b *Bench) wire() ([]*producer, []*comparator, error) {
	producers := make([]*producer, 0, len(b.plan.Runs))
	bySpec := make(map[RunSpec]*producer, len(b.plan.Runs))

	for _, spec := range b.plan.Runs {
		p, err := b.newProducer(spec)
		if err != nil {
			return nil, nil, err
		}

		producers = append(producers, p)
		bySpec[spec] = p
	}

	comparators := make([]*comparator, 0, len(b.plan.Comparisons))

	for _, cmp := range b.plan.Comparisons {
		compared := make(chan Snapshot, b.config.ChannelBuffer)
		baseline := make(chan Snapshot, b.config.ChannelBuffer)

		bySpec[cmp.Compared].outputs = append(bySpec[cmp.Compared].outputs, compared)
		bySpec[cmp.Baseline].outputs = append(bySpec[cmp.Baseline].outputs, baseline)

		comparators = append(comparators, &comparator{
			bench:    b,
			series:   b.ComparisonSeries(cmp),
			compared: compared,
			baseline: baseline,
		})
	}

	return producers, comparators, nil
}

// broadcast reads the trace once and hands every batch of accesses to every producer.
// Batches are shared and must not be modified by producers.
func (b *Bench) broadcast(ctx context.Context, source Source, producers []*producer) error {
	defer func() {
		for _, p := range producers {
			close(p.input)
		}
	}()

	ctx, span := b.tracer.Start(ctx, "pagetemp.trace.Read")
	defer span.End()

	batch := make([]tracefile.Access, 0, b.config.BatchSize)

	send := func() error {
		for _, p := range producers {
			select {
			case p.input <- batch:
			case <-ctx.Done():
				return ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, context.Cause(ctx).Error())
			}
		}

		batch = make([]tracefile.Access, 0, b.config.BatchSize)

		return nil
	}

	var read uint64

	err := source.Each(ctx, func(access tracefile.Access) error {
		batch = append(batch, access)
		read++

		if b.config.ProgressEvery > 0 && read%b.config.ProgressEvery == 0 {
			b.logger.Printf("read %d accesses", read)
		}

		if len(batch) == b.config.BatchSize {
			return send()
		}

		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		err = send()
		if err != nil {
			return err
		}
	}

	span.SetAttributes(attribute.Int64("accesses.count", int64(read)))
	b.logger.Printf("trace fully read: %d accesses", read)

	return nil
}

// group runs functions concurrently and cancels them all on the first error.
type group struct {
	ctx    context.Context //nolint:containedctx
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func newGroup(ctx context.Context) *group {
	ctx, cancel := context.WithCancelCause(ctx)

	return &group{ctx: ctx, cancel: cancel}
}

// Go runs fn in a new goroutine.
func (g *group) Go(fn func(ctx context.Context) error) {
	g.wg.Go(func() {
		err := fn(g.ctx)
		if err != nil {
			g.once.Do(func() {
				g.err = err
				g.cancel(err)
			})
		}
	})
}

// Wait blocks until every function returned and reports the first error.
func (g *group) Wait() error {
	g.wg.Wait()
	g.cancel(nil)

	return g.err
}
