// Package constants defines default configuration values for the pagetemp system.
// It provides standard settings for page geometry, policy sizing, trace sampling
// and the buffering used while replaying traces.
package constants

const (
	// DefaultPageSize is the size in bytes of a memory page. Addresses are
	// aligned down to a multiple of it before reaching a policy.
	DefaultPageSize = 4096
	// DefaultK is the number of references tracked by LRU-K, and the maximum
	// reference counter of GCLOCK.
	DefaultK = 2
	// DefaultCapacity is the number of resident pages per policy instance (~128 MiB of 4 KiB pages).
	DefaultCapacity = 32 * 1024
	// RealisticSampleRate is the sampling rate of a realistic hardware-sampled trace.
	RealisticSampleRate = 0.01
	// AverageSampleRate is the sampling rate of an average hardware-sampled trace.
	AverageSampleRate = 0.05
	// FullSampleRate is the rate of the full-information baseline.
	FullSampleRate = 1.0
	// SampleRatePrecision is the number of decimals used when labeling a rate.
	SampleRatePrecision = 2
	// RatioPrecision is the number of decimals kept for a trace's load/store ratio.
	RatioPrecision = 4
	// DefaultChannelBuffer is the buffer of every channel between the trace reader,
	// producers and comparators.
	DefaultChannelBuffer = 1024
	// DefaultBatchSize is the number of accesses fanned out per message by the trace reader.
	DefaultBatchSize = 4096
	// DefaultBatchBuffer is the number of access batches queued per producer.
	DefaultBatchBuffer = 16
	// DefaultProgressEvery is the number of accesses between two progress log lines.
	DefaultProgressEvery = 2_000_000
	// DefaultSerializer is the record codec used by persistent sinks.
	DefaultSerializer = "msgpack"
	// DefaultDBFile is the file caching per-trace statistics.
	DefaultDBFile = "db.json"
)

// DefaultSampleRates returns the rates every algorithm is replayed at.
func DefaultSampleRates() []float64 {
	return []float64{RealisticSampleRate, AverageSampleRate, 0.2, 0.4, 0.6, 0.8, FullSampleRate}
}

// DefaultAlgorithms returns the registry names replayed by default, in plan order.
func DefaultAlgorithms() []string {
	return []string{"lru-k", "gclock", "arc", "car"}
}
