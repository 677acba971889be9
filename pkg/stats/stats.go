// Package stats accumulates per-run and per-comparison statistics.
package stats

import (
	"maps"
	"slices"
	"sync"
)

// Run contains the statistics of one replayed policy.
type Run struct {
	Label            string  `json:"label"`
	Policy           string  `json:"policy"`
	Rate             float64 `json:"rate"`
	Seen             uint64  `json:"seen"`
	ConsideredLoads  uint64  `json:"considered_loads"`
	ConsideredStores uint64  `json:"considered_stores"`
	Faults           uint64  `json:"faults"`
	FaultDistance    uint64  `json:"fault_distance_sum"`
	NonFaultDistance uint64  `json:"non_fault_distance_sum"`
	Done             bool    `json:"done"`
}

// Considered returns the number of accesses consumed by the policy.
func (r Run) Considered() uint64 { return r.ConsideredLoads + r.ConsideredStores }

// FaultDistanceAverage returns the mean order change per considered fault.
func (r Run) FaultDistanceAverage() float64 {
	return average(r.FaultDistance, r.Faults)
}

// NonFaultDistanceAverage returns the mean order change per considered hit.
func (r Run) NonFaultDistanceAverage() float64 {
	return average(r.NonFaultDistance, r.Considered()-r.Faults)
}

// Comparison contains the statistics of one comparator.
type Comparison struct {
	Name        string `json:"name"`
	Records     uint64 `json:"records"`
	DistanceSum uint64 `json:"distance_sum"`
	MaxDistance uint64 `json:"max_distance"`
	Done        bool   `json:"done"`
}

// Add accounts one compared position.
func (c *Comparison) Add(distance uint64) {
	c.Records++
	c.DistanceSum += distance
	c.MaxDistance = max(c.MaxDistance, distance)
}

// Average returns the mean distance over all compared positions.
func (c Comparison) Average() float64 {
	return average(c.DistanceSum, c.Records)
}

func average(sum, n uint64) float64 {
	if n == 0 {
		return 0
	}

	return float64(sum) / float64(n)
}

// Summary is a point-in-time copy of a Collector.
type Summary struct {
	Runs        []Run        `json:"runs"`
	Comparisons []Comparison `json:"comparisons"`
}

// Collector is a struct for collecting bench statistics from concurrent producers and comparators.
type Collector struct {
	mu          sync.RWMutex
	runs        map[string]Run
	comparisons map[string]Comparison
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{
		runs:        make(map[string]Run),
		comparisons: make(map[string]Comparison),
	}
}

// PutRun stores the latest statistics of a run.
func (c *Collector) PutRun(run Run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runs[run.Label] = run
}

// PutComparison stores the latest statistics of a comparison.
func (c *Collector) PutComparison(cmp Comparison) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.comparisons[cmp.Name] = cmp
}

// Run returns the statistics of the run with the given label.
func (c *Collector) Run(label string) (Run, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	run, ok := c.runs[label]

	return run, ok
}

// Comparison returns the statistics of the named comparison.
func (c *Collector) Comparison(name string) (Comparison, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cmp, ok := c.comparisons[name]

	return cmp, ok
}

// Summary returns a copy of everything collected, sorted by label and name.
func (c *Collector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := Summary{
		Runs:        make([]Run, 0, len(c.runs)),
		Comparisons: make([]Comparison, 0, len(c.comparisons)),
	}

	for _, label := range slices.Sorted(maps.Keys(c.runs)) {
		summary.Runs = append(summary.Runs, c.runs[label])
	}

	for _, name := range slices.Sorted(maps.Keys(c.comparisons)) {
		summary.Comparisons = append(summary.Comparisons, c.comparisons[name])
	}

	return summary
}
