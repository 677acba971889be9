package eviction_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/hashicorp/golang-lru/arc/v2"

	"github.com/hyp3rd/pagetemp/pkg/eviction"
	"github.com/hyp3rd/pagetemp/pkg/page"
)

type (
	// pager is the common surface of the policies and the reference ARC cache.
	pager interface {
		// access returns true on a hit and admits the page on a miss.
		access(pg page.Page) bool
	}
	pagerCtor      = func(capacity int, b *testing.B) pager
	namedPagerCtor struct {
		name string
		new  pagerCtor
	}
	patternGen    = func(capacity int) []page.Page
	accessPattern struct {
		name string
		gen  patternGen
	}

	policyPager struct{ eviction.Policy }
	arcPager    struct {
		*arc.ARCCache[page.Page, struct{}]
	}
)

func (p policyPager) access(pg page.Page) bool {
	hit := !p.IsPageFault(pg)
	p.Consume(pg)

	return hit
}

func (a arcPager) access(pg page.Page) bool {
	if _, ok := a.Get(pg); ok {
		return true
	}

	a.Add(pg, struct{}{})

	return false
}

const (
	rngSeed = 1
	seqLen  = 1 << 16
)

func BenchmarkPolicies(b *testing.B) {
	capacities := []int{128, 512, 2048}

	for _, pattern := range accessPatterns() {
		b.Run(pattern.name, func(b *testing.B) {
			for _, capacity := range capacities {
				sequence := pattern.gen(capacity)

				b.Run(fmt.Sprintf("Cap%d", capacity), func(b *testing.B) {
					for _, ctor := range pagerConstructors() {
						b.Run(ctor.name, benchPager(ctor.new, capacity, sequence))
					}
				})
			}
		})
	}
}

func pagerConstructors() []namedPagerCtor {
	ctors := []namedPagerCtor{
		{
			"hashicorp-ARC",
			func(capacity int, b *testing.B) pager {
				cache, err := arc.NewARC[page.Page, struct{}](capacity)
				if err != nil {
					b.Fatal(err)
				}

				return arcPager{ARCCache: cache}
			},
		},
	}

	registry := eviction.NewAlgorithmRegistry()
	for _, name := range registry.Names() {
		ctors = append(ctors, namedPagerCtor{
			name,
			func(capacity int, b *testing.B) pager {
				policy, err := registry.NewAlgorithm(name, eviction.DefaultParams(capacity))
				if err != nil {
					b.Fatal(err)
				}

				return policyPager{Policy: policy}
			},
		})
	}

	return ctors
}

func accessPatterns() []accessPattern {
	return []accessPattern{
		{
			"Sequential scan",
			func(int) []page.Page {
				const universe = 1 << 16

				seq := make([]page.Page, seqLen)
				for i := range seq {
					seq[i] = page.Page(uint64(i%universe) << 12)
				}

				return seq
			},
		},
		{
			"Loop working set",
			func(capacity int) []page.Page {
				const (
					universe = 8192
					hotRatio = 0.9
				)

				rng := rand.New(rand.NewPCG(rngSeed, rngSeed))
				hot := uint64(max(1, capacity))
				cold := uint64(max(1, universe-capacity))

				seq := make([]page.Page, seqLen)
				for i := range seq {
					if rng.Float64() < hotRatio {
						seq[i] = page.Page(rng.Uint64N(hot) << 12)
					} else {
						seq[i] = page.Page((hot + rng.Uint64N(cold)) << 12)
					}
				}

				return seq
			},
		},
		{
			"Zipf",
			func(int) []page.Page {
				const (
					universe = 16384
					skew     = 1.2
					bias     = 1.0
				)

				rng := rand.New(rand.NewPCG(rngSeed, rngSeed))
				zipf := rand.NewZipf(rng, skew, bias, universe-1)

				seq := make([]page.Page, seqLen)
				for i := range seq {
					seq[i] = page.Page(zipf.Uint64() << 12)
				}

				return seq
			},
		},
	}
}

func benchPager(ctor pagerCtor, capacity int, sequence []page.Page) func(b *testing.B) {
	return func(b *testing.B) {
		p := ctor(capacity, b)
		for _, pg := range sequence {
			p.access(pg)
		}

		b.ReportAllocs()
		b.ResetTimer()

		var (
			hits, misses int64
			seqMask      = len(sequence) - 1
		)

		for i := 0; b.Loop(); i++ {
			if p.access(sequence[i&seqMask]) {
				hits++
			} else {
				misses++
			}
		}

		b.StopTimer()

		total := float64(hits + misses)
		b.ReportMetric(float64(hits)/total*100.0, "hit_rate_pct")
	}
}
