package pagetemp

import (
	"slices"
	"strconv"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
)

// Mode selects how a sampled run decides which accesses it considers.
type Mode int

const (
	// Kernel mode also considers page faults outside the sample rate.
	Kernel Mode = iota
	// Userspace mode considers sampled accesses only.
	Userspace
)

// String returns "kernel" or "userspace".
func (m Mode) String() string {
	if m == Userspace {
		return "userspace"
	}

	return "kernel"
}

// Modes returns both modes in plan order.
func Modes() []Mode { return []Mode{Kernel, Userspace} }

// RunSpec identifies one replay of the trace: a policy at a sample rate in a mode.
type RunSpec struct {
	Algorithm string  // registry name
	Rate      float64 // in (0, 1]
	Ratio     bool    // preserve the trace's load/store ratio
	Mode      Mode
}

// Name returns "<policy>_<rate>" with a "_R" suffix for ratio-preserving runs,
// e.g. "ARC_0.01_R". policy is the Name() of the run's policy.
func (s RunSpec) Name(policy string) string {
	name := policy + "_" + strconv.FormatFloat(s.Rate, 'f', constants.SampleRatePrecision, 64)
	if s.Ratio {
		name += "_R"
	}

	return name
}

// Label returns the mode-qualified name, e.g. "kernel/ARC_0.20".
func (s RunSpec) Label(policy string) string {
	return s.Mode.String() + "/" + s.Name(policy)
}

// Comparison pairs a compared run with its baseline. Both runs share a mode.
type Comparison struct {
	Compared RunSpec
	Baseline RunSpec
}

// Plan lists the comparisons of a bench and the runs they need.
type Plan struct {
	Comparisons []Comparison
	Runs        []RunSpec
}

// pairs of registry names compared at equal rates: same family, then across families.
//
//nolint:gochecknoglobals
var (
	intraPairs = [][2]string{{"lru-k", "gclock"}, {"arc", "car"}}
	interPairs = [][2]string{{"lru-k", "arc"}, {"gclock", "car"}}
)

// BuildPlan returns the comparisons for the given algorithms, rates and modes:
//   - every algorithm at every rate below 1 against itself at rate 1
//   - with ratioRealistic, the ratio-preserving realistic run against the plain
//     realistic run and against rate 1
//   - LRU-K vs GCLOCK and ARC vs CAR at every rate
//   - LRU-K vs ARC and GCLOCK vs CAR at every rate
//
// Pairs whose algorithms are not both requested are skipped. Runs holds every
// distinct RunSpec in first-use order and always includes each algorithm at
// rate 1, so a single-algorithm bench still produces its standalone series.
func BuildPlan(algorithms []string, rates []float64, ratioRealistic bool, modes []Mode) (Plan, error) {
	if len(algorithms) == 0 || len(rates) == 0 || len(modes) == 0 {
		return Plan{}, sentinel.ErrEmptyPlan
	}

	for _, rate := range rates {
		if rate <= 0 || rate > 1 {
			return Plan{}, ewrap.Wrapf(sentinel.ErrInvalidSampleRate, "got %v", rate)
		}
	}

	var plan Plan

	use := func(runs ...RunSpec) {
		for _, run := range runs {
			if !slices.Contains(plan.Runs, run) {
				plan.Runs = append(plan.Runs, run)
			}
		}
	}

	add := func(compared, baseline RunSpec) {
		plan.Comparisons = append(plan.Comparisons, Comparison{Compared: compared, Baseline: baseline})
		use(compared, baseline)
	}

	for _, mode := range modes {
		for _, alg := range algorithms {
			full := RunSpec{Algorithm: alg, Rate: constants.FullSampleRate, Mode: mode}
			use(full)

			for _, rate := range rates {
				if rate != constants.FullSampleRate {
					add(RunSpec{Algorithm: alg, Rate: rate, Mode: mode}, full)
				}
			}

			if ratioRealistic {
				realistic := RunSpec{Algorithm: alg, Rate: constants.RealisticSampleRate, Mode: mode}
				preserved := realistic
				preserved.Ratio = true

				add(preserved, realistic)
				add(preserved, full)
			}
		}

		for _, pairs := range [][][2]string{intraPairs, interPairs} {
			for _, pair := range pairs {
				if !slices.Contains(algorithms, pair[0]) || !slices.Contains(algorithms, pair[1]) {
					continue
				}

				for _, rate := range rates {
					add(RunSpec{Algorithm: pair[0], Rate: rate, Mode: mode}, RunSpec{Algorithm: pair[1], Rate: rate, Mode: mode})
				}
			}
		}
	}

	return plan, nil
}
