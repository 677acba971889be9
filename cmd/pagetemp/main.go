// Command pagetemp replays a memory-access trace through LRU-K, GCLOCK, ARC and CAR
// and records how far their temperature orders drift apart under sampling.
//
//	pagetemp [flags] <trace>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/sirupsen/logrus"

	"github.com/hyp3rd/pagetemp"
	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/libs/serializer"
	"github.com/hyp3rd/pagetemp/pkg/backend"
	redisstore "github.com/hyp3rd/pagetemp/pkg/backend/redis"
	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/middleware"
	"github.com/hyp3rd/pagetemp/pkg/trace"
)

const shutdownTimeout = 5 * time.Second

type flags struct {
	capacity        int
	k               int
	infiniteHistory bool
	pageSize        uint64
	algorithms      string
	rates           string
	modes           string
	ratioRealistic  bool
	dbFile          string
	out             string
	redis           string
	serializer      string
	mgmt            string
	progress        uint64
	tracePolicies   bool
	verbose         bool
}

func parseFlags() (flags, string) {
	var f flags

	flag.IntVar(&f.capacity, "capacity", constants.DefaultCapacity, "resident pages per policy")
	flag.IntVar(&f.k, "k", constants.DefaultK, "LRU-K history depth and GCLOCK counter ceiling")
	flag.BoolVar(&f.infiniteHistory, "infinite-history", false, "keep LRU-K histories of evicted pages")
	flag.Uint64Var(&f.pageSize, "page-size", constants.DefaultPageSize, "page size in bytes, a power of two")
	flag.StringVar(&f.algorithms, "algorithms", strings.Join(constants.DefaultAlgorithms(), ","), "comma-separated policies")
	flag.StringVar(&f.rates, "rates", joinRates(constants.DefaultSampleRates()), "comma-separated sample rates in (0, 1]")
	flag.StringVar(&f.modes, "modes", "kernel,userspace", "comma-separated sampling modes")
	flag.BoolVar(&f.ratioRealistic, "ratio-realistic", true, "add a realistic run preserving the trace's load/store ratio")
	flag.StringVar(&f.dbFile, "db-file", constants.DefaultDBFile, "file caching per-trace statistics")
	flag.StringVar(&f.out, "out", "", "directory for compressed result series")
	flag.StringVar(&f.redis, "redis", "", "redis address or redis:// URL for result series")
	flag.StringVar(&f.serializer, "serializer", constants.DefaultSerializer,
		"record codec of persistent sinks: "+strings.Join(serializer.NewSerializerRegistry().Names(), ", "))
	flag.StringVar(&f.mgmt, "mgmt", "", "management HTTP address, e.g. 127.0.0.1:8080")
	flag.Uint64Var(&f.progress, "progress", constants.DefaultProgressEvery, "accesses between progress lines, 0 disables")
	flag.BoolVar(&f.tracePolicies, "trace-policies", false, "log every policy call (very verbose)")
	flag.BoolVar(&f.verbose, "v", false, "debug logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <trace>\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	return f, flag.Arg(0)
}

func main() {
	f, tracePath := parseFlags()
	if tracePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logrus.SetLevel(logrus.InfoLevel)

	if f.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, f, tracePath)
	if err != nil {
		logrus.Errorf("pagetemp: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, tracePath string) error {
	opts, err := benchOptions(f)
	if err != nil {
		return err
	}

	if f.ratioRealistic {
		db, err := trace.OpenStatsDB(f.dbFile)
		if err != nil {
			return err
		}

		logrus.Infof("computing load/store ratio of %s", tracePath)

		traceStats, err := db.GetOrScan(ctx, tracePath)
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"loads":  traceStats.Loads,
			"stores": traceStats.Stores,
			"ratio":  traceStats.Ratio,
		}).Info("trace statistics")

		opts = append(opts, pagetemp.WithRatioRealistic(true, traceStats.Ratio))
	}

	sink, err := newSink(ctx, f)
	if err != nil {
		return err
	}

	opts = append(opts, pagetemp.WithSink(sink))

	bench, err := pagetemp.New(ctx, opts...)
	if err != nil {
		_ = sink.Close()

		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopErr := bench.Stop(shutdownCtx)
		if stopErr != nil {
			logrus.Warnf("shutdown: %v", stopErr)
		}
	}()

	if addr := bench.ManagementHTTPAddress(); addr != "" {
		logrus.Infof("management HTTP listening on %s", addr)
	}

	reader, err := trace.Open(tracePath)
	if err != nil {
		return err
	}

	defer reader.Close()

	plan := bench.Plan()
	logrus.Infof("replaying %s: %d runs, %d comparisons", tracePath, len(plan.Runs), len(plan.Comparisons))

	summary, err := bench.Run(ctx, reader)
	if err != nil {
		return err
	}

	for _, r := range summary.Runs {
		logrus.WithFields(logrus.Fields{
			"considered":   r.Considered(),
			"faults":       r.Faults,
			"fault_avg":    r.FaultDistanceAverage(),
			"nonfault_avg": r.NonFaultDistanceAverage(),
		}).Info(r.Label)
	}

	for _, c := range summary.Comparisons {
		logrus.WithFields(logrus.Fields{
			"records": c.Records,
			"avg":     c.Average(),
			"max":     c.MaxDistance,
		}).Info(c.Name)
	}

	return nil
}

func benchOptions(f flags) ([]pagetemp.Option, error) {
	rates, err := parseRates(f.rates)
	if err != nil {
		return nil, err
	}

	modes, err := parseModes(f.modes)
	if err != nil {
		return nil, err
	}

	opts := []pagetemp.Option{
		pagetemp.WithCapacity(f.capacity),
		pagetemp.WithK(f.k),
		pagetemp.WithInfiniteHistory(f.infiniteHistory),
		pagetemp.WithPageSize(f.pageSize),
		pagetemp.WithAlgorithms(splitList(f.algorithms)...),
		pagetemp.WithSampleRates(rates...),
		pagetemp.WithModes(modes...),
		pagetemp.WithRatioRealistic(false, 0),
		pagetemp.WithProgressEvery(f.progress),
		pagetemp.WithLogger(logrus.StandardLogger()),
	}

	if f.tracePolicies {
		logger := logrus.StandardLogger()

		opts = append(opts, pagetemp.WithMiddleware(func(next eviction.Policy) eviction.Policy {
			return middleware.NewLoggingMiddleware(next, logger)
		}))
	}

	if f.mgmt != "" {
		opts = append(opts, pagetemp.WithManagementHTTP(f.mgmt))
	}

	return opts, nil
}

func newSink(ctx context.Context, f flags) (backend.Sink, error) {
	if f.out == "" && f.redis == "" {
		logrus.Warn("no -out or -redis given: result series are kept in memory only")

		return backend.NewInMemory(), nil
	}

	codec, err := serializer.New(f.serializer)
	if err != nil {
		return nil, err
	}

	if f.redis != "" {
		redisOpts, err := redisstore.ParseTarget(f.redis)
		if err != nil {
			return nil, err
		}

		client, err := redisstore.Connect(ctx, redisOpts...)
		if err != nil {
			return nil, err
		}

		return backend.NewRedis(
			backend.WithRedisClient(client),
			backend.WithSerializer[backend.Redis](codec),
		)
	}

	return backend.NewFile(
		backend.WithRootDir(f.out),
		backend.WithSerializer[backend.File](codec),
	)
}

func splitList(s string) []string {
	var out []string

	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}

	return out
}

func parseRates(s string) ([]float64, error) {
	items := splitList(s)
	rates := make([]float64, 0, len(items))

	for _, item := range items {
		rate, err := strconv.ParseFloat(item, 64)
		if err != nil {
			return nil, ewrap.Wrapf(err, "invalid rate %q", item)
		}

		rates = append(rates, rate)
	}

	return rates, nil
}

func parseModes(s string) ([]pagetemp.Mode, error) {
	var modes []pagetemp.Mode

	for _, item := range splitList(s) {
		switch item {
		case pagetemp.Kernel.String():
			modes = append(modes, pagetemp.Kernel)
		case pagetemp.Userspace.String():
			modes = append(modes, pagetemp.Userspace)
		default:
			return nil, ewrap.Newf("unknown mode %q", item)
		}
	}

	return modes, nil
}

func joinRates(rates []float64) string {
	items := make([]string, len(rates))
	for i, r := range rates {
		items[i] = strconv.FormatFloat(r, 'f', -1, 64)
	}

	return strings.Join(items, ",")
}
