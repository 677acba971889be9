package stats

import (
	"sync"
	"testing"

	"github.com/longbridgeapp/assert"
)

func TestRun_Averages(t *testing.T) {
	run := Run{ConsideredLoads: 6, ConsideredStores: 4, Faults: 4, FaultDistance: 10, NonFaultDistance: 3}

	assert.Equal(t, uint64(10), run.Considered())
	assert.Equal(t, 2.5, run.FaultDistanceAverage())
	assert.Equal(t, 0.5, run.NonFaultDistanceAverage())
	assert.Equal(t, 0.0, Run{}.FaultDistanceAverage())
}

func TestComparison_Add(t *testing.T) {
	var cmp Comparison

	for _, d := range []uint64{3, 0, 9} {
		cmp.Add(d)
	}

	assert.Equal(t, uint64(3), cmp.Records)
	assert.Equal(t, uint64(9), cmp.MaxDistance)
	assert.Equal(t, 4.0, cmp.Average())
}

func TestCollector_ConcurrentPuts(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup

	for _, label := range []string{"kernel/ARC_1.00", "kernel/CAR_1.00", "userspace/ARC_0.01"} {
		wg.Go(func() {
			for i := range 100 {
				c.PutRun(Run{Label: label, Seen: uint64(i + 1)})
			}
		})
	}

	wg.Go(func() {
		c.PutComparison(Comparison{Name: "comp/kernel/ARC_1.00_vs_CAR_1.00", Records: 1})
	})

	wg.Wait()

	summary := c.Summary()
	assert.Equal(t, 3, len(summary.Runs))
	assert.Equal(t, "kernel/ARC_1.00", summary.Runs[0].Label)
	assert.Equal(t, uint64(100), summary.Runs[0].Seen)
	assert.Equal(t, 1, len(summary.Comparisons))

	run, ok := c.Run("userspace/ARC_0.01")
	assert.True(t, ok)
	assert.Equal(t, uint64(100), run.Seen)

	_, ok = c.Comparison("missing")
	assert.False(t, ok)
}
