package pagetemp

import (
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/pkg/backend"
	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/middleware"
)

// Config holds the replay parameters of a Bench.
type Config struct {
	// Capacity is the number of resident pages of every policy.
	Capacity int `json:"capacity"`
	// K is the LRU-K history depth and the GCLOCK counter ceiling.
	K int `json:"k"`
	// InfiniteHistory keeps LRU-K histories of evicted pages.
	InfiniteHistory bool `json:"infiniteHistory"`
	// PageSize is the page size addresses are translated with; a power of two.
	PageSize uint64 `json:"pageSize"`
	// Algorithms are the registry names of the replayed policies.
	Algorithms []string `json:"algorithms"`
	// SampleRates are the rates every algorithm is replayed at.
	SampleRates []float64 `json:"sampleRates"`
	// RatioRealistic adds a realistic-rate run preserving the trace's load/store ratio.
	RatioRealistic bool `json:"ratioRealistic"`
	// TraceRatio is the load/store ratio of the full trace, used by ratio-preserving runs.
	TraceRatio float64 `json:"traceRatio"`
	// Modes are the sampling modes every comparison is run in.
	Modes []Mode `json:"-"`
	// ChannelBuffer is the buffer of every channel between reader, producers and comparators.
	ChannelBuffer int `json:"channelBuffer"`
	// BatchSize is the number of accesses or records moved per message or sink write.
	BatchSize int `json:"batchSize"`
	// ProgressEvery is the number of seen accesses between progress updates.
	ProgressEvery uint64 `json:"progressEvery"`
}

// NewConfig returns a Config with default values:
//   - `Capacity` is `constants.DefaultCapacity` and `K` is `constants.DefaultK`
//   - `PageSize` is `constants.DefaultPageSize`
//   - `Algorithms` are LRU-K, GCLOCK, ARC and CAR
//   - `SampleRates` are `constants.DefaultSampleRates()`
//   - `RatioRealistic` is enabled, in both kernel and userspace modes
func NewConfig() *Config {
	return &Config{
		Capacity:       constants.DefaultCapacity,
		K:              constants.DefaultK,
		PageSize:       constants.DefaultPageSize,
		Algorithms:     constants.DefaultAlgorithms(),
		SampleRates:    constants.DefaultSampleRates(),
		RatioRealistic: true,
		Modes:          Modes(),
		ChannelBuffer:  constants.DefaultChannelBuffer,
		BatchSize:      constants.DefaultBatchSize,
		ProgressEvery:  constants.DefaultProgressEvery,
	}
}

// ModeNames returns the configured modes as strings.
func (c *Config) ModeNames() []string {
	names := make([]string, len(c.Modes))
	for i, m := range c.Modes {
		names[i] = m.String()
	}

	return names
}

// Option is a function type that can be used to configure the `Bench` struct.
type Option func(*Bench)

// ApplyOptions applies the given options to the given bench.
func ApplyOptions(bench *Bench, options ...Option) {
	for _, option := range options {
		option(bench)
	}
}

// WithCapacity sets the number of resident pages of every policy.
func WithCapacity(capacity int) Option {
	return func(b *Bench) {
		b.config.Capacity = capacity
	}
}

// WithK sets the LRU-K history depth and the GCLOCK counter ceiling.
func WithK(k int) Option {
	return func(b *Bench) {
		b.config.K = k
	}
}

// WithInfiniteHistory keeps LRU-K histories of evicted pages.
func WithInfiniteHistory(enabled bool) Option {
	return func(b *Bench) {
		b.config.InfiniteHistory = enabled
	}
}

// WithPageSize sets the page size used to translate addresses.
func WithPageSize(size uint64) Option {
	return func(b *Bench) {
		b.config.PageSize = size
	}
}

// WithAlgorithms sets the registry names of the replayed policies.
func WithAlgorithms(names ...string) Option {
	return func(b *Bench) {
		b.config.Algorithms = slices.Clone(names)
	}
}

// WithSampleRates sets the rates every algorithm is replayed at.
func WithSampleRates(rates ...float64) Option {
	return func(b *Bench) {
		b.config.SampleRates = slices.Clone(rates)
	}
}

// WithRatioRealistic enables the ratio-preserving realistic run; ratio is the
// load/store ratio of the full trace (see trace.StatsDB).
func WithRatioRealistic(enabled bool, ratio float64) Option {
	return func(b *Bench) {
		b.config.RatioRealistic = enabled
		b.config.TraceRatio = ratio
	}
}

// WithModes sets the sampling modes.
func WithModes(modes ...Mode) Option {
	return func(b *Bench) {
		b.config.Modes = slices.Clone(modes)
	}
}

// WithChannelBuffer sets the buffer of the channels between pipeline stages.
func WithChannelBuffer(size int) Option {
	return func(b *Bench) {
		b.config.ChannelBuffer = size
	}
}

// WithBatchSize sets the number of accesses per fan-out message and records per sink write.
func WithBatchSize(size int) Option {
	return func(b *Bench) {
		b.config.BatchSize = size
	}
}

// WithProgressEvery sets the number of seen accesses between progress logs.
func WithProgressEvery(n uint64) Option {
	return func(b *Bench) {
		b.config.ProgressEvery = n
	}
}

// WithAlgorithmRegistry sets the registry policies are built from.
func WithAlgorithmRegistry(registry *eviction.AlgorithmRegistry) Option {
	return func(b *Bench) {
		b.registry = registry
	}
}

// WithSink sets the sink receiving every distance series. The default is an in-memory sink.
func WithSink(sink backend.Sink) Option {
	return func(b *Bench) {
		b.sink = sink
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger middleware.Logger) Option {
	return func(b *Bench) {
		b.logger = logger
	}
}

// WithMiddleware decorates every policy with the given middlewares, in order.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bench) {
		b.middlewares = append(b.middlewares, mw...)
	}
}

// WithMeterProvider sets the provider of the meter used for policy metrics.
// Without it, policies are not instrumented.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(b *Bench) {
		b.meter = provider.Meter(instrumentationName)
	}
}

// WithTracerProvider sets the provider of the tracer used for run and sink spans.
// The default is the global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(b *Bench) {
		b.tracer = provider.Tracer(instrumentationName)
	}
}

// WithManagementHTTP enables the management HTTP server on addr.
func WithManagementHTTP(addr string, opts ...ManagementHTTPOption) Option {
	return func(b *Bench) {
		b.mgmtAddr = addr
		b.mgmtOpts = opts
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
