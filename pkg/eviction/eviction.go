// Package eviction implements the page-replacement policies replayed by pagetemp:
// LRU-K, generalized CLOCK, ARC, CAR and LFU.
//
// Every policy is a sequential state machine. Callers feed page ids through
// Consume, may ask IsPageFault before a Consume to observe the pre-access state,
// and read TemperatureOrder afterwards. Instances are not safe for concurrent use.
package eviction

import (
	"maps"
	"slices"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/pagetemp/internal/constants"
	"github.com/hyp3rd/pagetemp/internal/sentinel"
	"github.com/hyp3rd/pagetemp/pkg/page"
)

// Policy is the interface that must be implemented by eviction policies.
type Policy interface {
	// Consume records an access to pg, possibly admitting it and evicting one resident.
	Consume(pg page.Page)
	// IsPageFault reports whether pg is not resident.
	IsPageFault(pg page.Page) bool
	// TemperatureOrder returns the residents from coldest (next victim) to hottest.
	TemperatureOrder() []page.Page
	// Name returns a short identifier used to label runs.
	Name() string
	// Len returns the number of resident pages.
	Len() int
	// Capacity returns the maximum number of resident pages.
	Capacity() int
}

// Params carries the construction parameters understood by the registry constructors.
type Params struct {
	// Capacity is the maximum number of resident pages.
	Capacity int
	// K is the history depth of LRU-K and the counter ceiling of GCLOCK.
	K int
	// InfiniteHistory keeps LRU-K histories of evicted pages.
	InfiniteHistory bool
}

// DefaultParams returns Params for capacity with the default K.
func DefaultParams(capacity int) Params {
	return Params{Capacity: capacity, K: constants.DefaultK}
}

// Constructor builds a policy from Params.
type Constructor func(params Params) (Policy, error)

// AlgorithmRegistry manages eviction policy constructors.
type AlgorithmRegistry struct {
	algorithms map[string]Constructor
}

// getDefaultAlgorithms returns the default set of eviction policies.
func getDefaultAlgorithms() map[string]Constructor {
	return map[string]Constructor{
		"lru-k": func(params Params) (Policy, error) {
			return NewLRUK(params.Capacity, params.K, params.InfiniteHistory)
		},
		"gclock": func(params Params) (Policy, error) {
			return NewClock(params.Capacity, params.K)
		},
		"arc": func(params Params) (Policy, error) {
			return NewARC(params.Capacity)
		},
		"car": func(params Params) (Policy, error) {
			return NewCAR(params.Capacity)
		},
		"lfu": func(params Params) (Policy, error) {
			return NewLFU(params.Capacity)
		},
	}
}

// NewAlgorithmRegistry creates a new algorithm registry.
func NewAlgorithmRegistry() *AlgorithmRegistry {
	registry := &AlgorithmRegistry{
		algorithms: make(map[string]Constructor),
	}
	// Register the default algorithms
	registry.RegisterMultiple(getDefaultAlgorithms())

	return registry
}

// NewEmptyAlgorithmRegistry creates a new algorithm registry without default algorithms.
// This is useful for testing or when you want to register only specific algorithms.
func NewEmptyAlgorithmRegistry() *AlgorithmRegistry {
	return &AlgorithmRegistry{
		algorithms: make(map[string]Constructor),
	}
}

// Register registers a new eviction policy with the given name.
func (r *AlgorithmRegistry) Register(name string, createFunc Constructor) {
	r.algorithms[name] = createFunc
}

// RegisterMultiple registers a set of eviction policies.
func (r *AlgorithmRegistry) RegisterMultiple(algorithms map[string]Constructor) {
	maps.Copy(r.algorithms, algorithms)
}

// Names returns the registered names, sorted.
func (r *AlgorithmRegistry) Names() []string {
	return slices.Sorted(maps.Keys(r.algorithms))
}

// Has reports whether name is registered.
func (r *AlgorithmRegistry) Has(name string) bool {
	_, ok := r.algorithms[name]

	return ok
}

// NewAlgorithm creates a new eviction policy.
func (r *AlgorithmRegistry) NewAlgorithm(algorithmName string, params Params) (Policy, error) {
	// Check the parameters.
	if algorithmName == "" {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "algorithmName")
	}

	if params.Capacity <= 0 {
		return nil, ewrap.Wrapf(sentinel.ErrInvalidCapacity, "capacity %d", params.Capacity)
	}

	createFunc, ok := r.algorithms[algorithmName]
	if !ok {
		return nil, ewrap.Wrap(sentinel.ErrAlgorithmNotFound, algorithmName)
	}

	return createFunc(params)
}

// NewEvictionAlgorithm creates a new eviction policy from the default registry.
// It uses a new registry instance with default algorithms for each call.
func NewEvictionAlgorithm(algorithmName string, params Params) (Policy, error) {
	registry := NewAlgorithmRegistry()

	return registry.NewAlgorithm(algorithmName, params)
}

func validateCapacity(capacity int) error {
	if capacity <= 0 {
		return ewrap.Wrapf(sentinel.ErrInvalidCapacity, "capacity %d", capacity)
	}

	return nil
}

func validateK(k int) error {
	if k < 1 {
		return ewrap.Wrapf(sentinel.ErrInvalidK, "k %d", k)
	}

	return nil
}

// invariant panics when cond is false. Broken invariants are programming errors:
// continuing would silently produce wrong eviction decisions.
func invariant(cond bool, policy, format string, args ...any) {
	if cond {
		return
	}

	panic(ewrap.Wrapf(sentinel.ErrInvariantViolation, policy+": "+format, args...))
}
