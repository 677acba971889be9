package eviction

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/hyp3rd/pagetemp/internal/sentinel"
	"github.com/hyp3rd/pagetemp/pkg/page"
)

func pages(ids ...uint64) []page.Page {
	out := make([]page.Page, len(ids))
	for i, id := range ids {
		out[i] = page.Page(id << 12)
	}

	return out
}

func newPolicies(t *testing.T, capacity int) []Policy {
	t.Helper()

	var out []Policy

	for _, name := range NewAlgorithmRegistry().Names() {
		p, err := NewEvictionAlgorithm(name, DefaultParams(capacity))
		if err != nil {
			t.Fatalf("NewEvictionAlgorithm(%q) error: %v", name, err)
		}

		out = append(out, p)
	}

	lruk1, err := NewLRUK(capacity, 1, true)
	if err != nil {
		t.Fatalf("NewLRUK error: %v", err)
	}

	clock1, err := NewClock(capacity, 1)
	if err != nil {
		t.Fatalf("NewClock error: %v", err)
	}

	return append(out, lruk1, clock1)
}

func TestRegistry_DefaultNames(t *testing.T) {
	names := NewAlgorithmRegistry().Names()
	want := []string{"arc", "car", "gclock", "lfu", "lru-k"}

	if !slices.Equal(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewAlgorithmRegistry()

	if _, err := reg.NewAlgorithm("", DefaultParams(4)); !errors.Is(err, sentinel.ErrParamCannotBeEmpty) {
		t.Fatalf("expected ErrParamCannotBeEmpty, got %v", err)
	}

	if _, err := reg.NewAlgorithm("mru", DefaultParams(4)); !errors.Is(err, sentinel.ErrAlgorithmNotFound) {
		t.Fatalf("expected ErrAlgorithmNotFound, got %v", err)
	}

	if _, err := reg.NewAlgorithm("arc", DefaultParams(0)); !errors.Is(err, sentinel.ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}

	if _, err := reg.NewAlgorithm("gclock", Params{Capacity: 4}); !errors.Is(err, sentinel.ErrInvalidK) {
		t.Fatalf("expected ErrInvalidK for K=0, got %v", err)
	}
}

func TestRegistry_CustomAlgorithm(t *testing.T) {
	reg := NewEmptyAlgorithmRegistry()
	if reg.Has("arc") {
		t.Fatalf("empty registry should not know arc")
	}

	reg.Register("lru-3", func(params Params) (Policy, error) {
		return NewLRUK(params.Capacity, 3, false)
	})

	p, err := reg.NewAlgorithm("lru-3", DefaultParams(8))
	if err != nil {
		t.Fatalf("NewAlgorithm error: %v", err)
	}

	if p.Name() != "LRU_3" {
		t.Fatalf("expected LRU_3, got %s", p.Name())
	}
}

func TestConstructors_RejectInvalidParams(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewARC(capacity); !errors.Is(err, sentinel.ErrInvalidCapacity) {
			t.Fatalf("NewARC(%d): expected ErrInvalidCapacity, got %v", capacity, err)
		}

		if _, err := NewCAR(capacity); !errors.Is(err, sentinel.ErrInvalidCapacity) {
			t.Fatalf("NewCAR(%d): expected ErrInvalidCapacity, got %v", capacity, err)
		}

		if _, err := NewLFU(capacity); !errors.Is(err, sentinel.ErrInvalidCapacity) {
			t.Fatalf("NewLFU(%d): expected ErrInvalidCapacity, got %v", capacity, err)
		}

		if _, err := NewLRUK(capacity, 2, false); !errors.Is(err, sentinel.ErrInvalidCapacity) {
			t.Fatalf("NewLRUK(%d): expected ErrInvalidCapacity, got %v", capacity, err)
		}

		if _, err := NewClock(capacity, 2); !errors.Is(err, sentinel.ErrInvalidCapacity) {
			t.Fatalf("NewClock(%d): expected ErrInvalidCapacity, got %v", capacity, err)
		}
	}

	if _, err := NewLRUK(4, 0, false); !errors.Is(err, sentinel.ErrInvalidK) {
		t.Fatalf("NewLRUK K=0: expected ErrInvalidK, got %v", err)
	}

	if _, err := NewClock(4, 0); !errors.Is(err, sentinel.ErrInvalidK) {
		t.Fatalf("NewClock K=0: expected ErrInvalidK, got %v", err)
	}
}

func TestPolicies_Names(t *testing.T) {
	want := map[string]string{"arc": "ARC", "car": "CAR", "gclock": "GCLOCK", "lfu": "LFU", "lru-k": "LRU_2"}

	for name, label := range want {
		p, err := NewEvictionAlgorithm(name, DefaultParams(2))
		if err != nil {
			t.Fatalf("NewEvictionAlgorithm(%q) error: %v", name, err)
		}

		if p.Name() != label {
			t.Fatalf("%s: expected name %s, got %s", name, label, p.Name())
		}
	}
}

func TestPolicies_FaultThenHit(t *testing.T) {
	for _, p := range newPolicies(t, 3) {
		x := page.Page(0x5000)

		if !p.IsPageFault(x) {
			t.Fatalf("%s: expected fault before first access", p.Name())
		}

		p.Consume(x)

		if p.IsPageFault(x) {
			t.Fatalf("%s: expected hit after access", p.Name())
		}
	}
}

func TestPolicies_WarmUpAndForcedEviction(t *testing.T) {
	const capacity = 4

	for _, p := range newPolicies(t, capacity) {
		for i, pg := range pages(1, 2, 3, 4) {
			p.Consume(pg)

			if p.Len() != i+1 {
				t.Fatalf("%s: expected %d residents during warm-up, got %d", p.Name(), i+1, p.Len())
			}
		}

		for _, pg := range pages(1, 2, 3, 4) {
			if p.IsPageFault(pg) {
				t.Fatalf("%s: page %s evicted during warm-up", p.Name(), pg)
			}
		}

		extra := pages(5)[0]
		p.Consume(extra)

		if p.Len() != capacity {
			t.Fatalf("%s: expected %d residents after forced eviction, got %d", p.Name(), capacity, p.Len())
		}

		evicted := 0

		for _, pg := range pages(1, 2, 3, 4) {
			if p.IsPageFault(pg) {
				evicted++
			}
		}

		if evicted != 1 || p.IsPageFault(extra) {
			t.Fatalf("%s: expected exactly one eviction and %s resident, got %d evictions", p.Name(), extra, evicted)
		}
	}
}

func TestPolicies_HitIdempotence(t *testing.T) {
	for _, p := range newPolicies(t, 3) {
		for _, pg := range pages(1, 2) {
			p.Consume(pg)
		}

		for range 10 {
			p.Consume(pages(2)[0])

			if p.Len() != 2 {
				t.Fatalf("%s: resident count changed on hit: %d", p.Name(), p.Len())
			}
		}
	}
}

// TestPolicies_RandomTraceContract drives every policy through a skewed random
// trace and checks the shared contract after each access.
func TestPolicies_RandomTraceContract(t *testing.T) {
	const (
		capacity = 16
		universe = 48
		accesses = 20_000
	)

	for _, p := range newPolicies(t, capacity) {
		rng := rand.New(rand.NewPCG(7, 11))

		for i := range accesses {
			var id uint64
			if rng.IntN(4) == 0 {
				id = rng.Uint64N(universe)
			} else {
				id = rng.Uint64N(capacity / 2)
			}

			pg := page.Page(id << 12)
			before := p.Len()
			fault := p.IsPageFault(pg)

			p.Consume(pg)

			if p.IsPageFault(pg) {
				t.Fatalf("%s: step %d: page %s not resident after access", p.Name(), i, pg)
			}

			switch {
			case !fault && p.Len() != before:
				t.Fatalf("%s: step %d: hit changed resident count %d -> %d", p.Name(), i, before, p.Len())
			case fault && before < capacity && p.Len() != before+1:
				t.Fatalf("%s: step %d: warm-up miss did not admit (%d -> %d)", p.Name(), i, before, p.Len())
			case fault && before == capacity && p.Len() != capacity:
				t.Fatalf("%s: step %d: full miss changed resident count to %d", p.Name(), i, p.Len())
			}

			assertTemperatureOrder(t, p)
		}
	}
}

func assertTemperatureOrder(t *testing.T, p Policy) {
	t.Helper()

	order := p.TemperatureOrder()
	if len(order) != p.Len() {
		t.Fatalf("%s: temperature order has %d pages, %d resident", p.Name(), len(order), p.Len())
	}

	seen := make(map[page.Page]struct{}, len(order))
	for _, pg := range order {
		if _, dup := seen[pg]; dup {
			t.Fatalf("%s: page %s appears twice in temperature order", p.Name(), pg)
		}

		if p.IsPageFault(pg) {
			t.Fatalf("%s: non-resident page %s in temperature order", p.Name(), pg)
		}

		seen[pg] = struct{}{}
	}
}

func TestInvariant_PanicsWithSentinel(t *testing.T) {
	defer func() {
		r := recover()

		err, ok := r.(error)
		if !ok || !errors.Is(err, sentinel.ErrInvariantViolation) {
			t.Fatalf("expected panic wrapping ErrInvariantViolation, got %v", r)
		}
	}()

	invariant(false, "TEST", "broken %d", 1)
}
