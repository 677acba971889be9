package eviction

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/hyp3rd/pagetemp/pkg/page"
)

func (a *ARC) assertState(t *testing.T, t1, t2, b1, b2 []page.Page) {
	t.Helper()

	assertPartitions(t, a.capacity, a.index, &a.t1, &a.t2, &a.b1, &a.b2)

	for _, tc := range []struct {
		l    *pageList
		want []page.Page
	}{{&a.t1, t1}, {&a.t2, t2}, {&a.b1, b1}, {&a.b2, b2}} {
		if got := listPages(t, tc.l); !slices.Equal(got, tc.want) {
			t.Fatalf("%s (MRU first): expected %v, got %v", tc.l.id, tc.want, got)
		}
	}
}

func TestARC_Scenario(t *testing.T) {
	arc, err := NewARC(2)
	if err != nil {
		t.Fatalf("NewARC error: %v", err)
	}

	A, B, C, D, E := page.Page(0xa000), page.Page(0xb000), page.Page(0xc000), page.Page(0xd000), page.Page(0xe000)

	steps := []struct {
		pg    page.Page
		fault bool
		order []page.Page
		p     float64
	}{
		{A, true, []page.Page{A}, 0},
		{A, false, []page.Page{A}, 0},   // T1 hit promotes to T2
		{B, true, []page.Page{B, A}, 0}, // T1 is colder than T2
		{C, true, []page.Page{C, A}, 0}, // B demoted to B1
		{B, true, []page.Page{C, B}, 1}, // B1 ghost hit, A demoted to B2
		{A, true, []page.Page{B, A}, 0}, // B2 ghost hit, C demoted to B1
		{D, true, []page.Page{D, A}, 0}, // B demoted to B2
		{E, true, []page.Page{E, A}, 0}, // |T1|+|B1|=C: C dropped, D demoted
	}

	for i, st := range steps {
		if fault := arc.IsPageFault(st.pg); fault != st.fault {
			t.Fatalf("step %d: expected fault=%v for %s, got %v", i, st.fault, st.pg, fault)
		}

		arc.Consume(st.pg)

		if got := arc.TemperatureOrder(); !slices.Equal(got, st.order) {
			t.Fatalf("step %d: expected order %v, got %v", i, st.order, got)
		}

		if arc.P() != st.p {
			t.Fatalf("step %d: expected p=%v, got %v", i, st.p, arc.P())
		}
	}

	arc.assertState(t, []page.Page{E}, []page.Page{A}, []page.Page{D}, []page.Page{B})

	if _, ok := arc.index[C]; ok {
		t.Fatalf("expected C to be forgotten")
	}
}

// newARCWithLists builds an ARC in a given state; lists are MRU first.
func newARCWithLists(t *testing.T, capacity int, p float64, t1, t2, b1, b2 []page.Page) *ARC {
	t.Helper()

	arc, err := NewARC(capacity)
	if err != nil {
		t.Fatalf("NewARC error: %v", err)
	}

	arc.p = p

	for _, tc := range []struct {
		l     *pageList
		pages []page.Page
	}{{&arc.t1, t1}, {&arc.t2, t2}, {&arc.b1, b1}, {&arc.b2, b2}} {
		for i := len(tc.pages) - 1; i >= 0; i-- {
			node := &pageNode{page: tc.pages[i]}
			tc.l.pushFront(node)
			arc.index[node.page] = node
		}
	}

	return arc
}

func TestARC_ReplaceTieOnB2HitTakesFromT1(t *testing.T) {
	a, x, y, z, g := page.Page(0xa000), page.Page(0x1000), page.Page(0x2000), page.Page(0x3000), page.Page(0x9000)

	// p drops from 2 to 1, leaving |T1| == p.
	arc := newARCWithLists(t, 4, 2, []page.Page{a}, []page.Page{x, y, z}, nil, []page.Page{g})
	arc.Consume(g)

	if arc.P() != 1 {
		t.Fatalf("expected p=1 after B2 hit, got %v", arc.P())
	}

	arc.assertState(t, nil, []page.Page{g, x, y, z}, []page.Page{a}, nil)
}

func TestARC_ReplaceTieOnB1HitTakesFromT2(t *testing.T) {
	a, x, y, z, g := page.Page(0xa000), page.Page(0x1000), page.Page(0x2000), page.Page(0x3000), page.Page(0x9000)

	// p grows from 0 to 1, leaving |T1| == p.
	arc := newARCWithLists(t, 4, 0, []page.Page{a}, []page.Page{x, y, z}, []page.Page{g}, nil)
	arc.Consume(g)

	if arc.P() != 1 {
		t.Fatalf("expected p=1 after B1 hit, got %v", arc.P())
	}

	arc.assertState(t, []page.Page{a}, []page.Page{g, x, y}, nil, []page.Page{z})
}

func TestARC_ReplaceTieOnMissTakesFromT2(t *testing.T) {
	a, x, y, z, n := page.Page(0xa000), page.Page(0x1000), page.Page(0x2000), page.Page(0x3000), page.Page(0x9000)

	arc := newARCWithLists(t, 4, 1, []page.Page{a}, []page.Page{x, y, z}, nil, nil)
	arc.Consume(n)

	if arc.P() != 1 {
		t.Fatalf("expected p unchanged by a miss, got %v", arc.P())
	}

	arc.assertState(t, []page.Page{n, a}, []page.Page{x, y}, nil, []page.Page{z})
}

func TestARC_FullT1DropsWithoutGhost(t *testing.T) {
	arc, err := NewARC(2)
	if err != nil {
		t.Fatalf("NewARC error: %v", err)
	}

	for _, pg := range pages(1, 2, 3) {
		arc.Consume(pg)
	}

	p := pages(1, 2, 3)
	arc.assertState(t, []page.Page{p[2], p[1]}, nil, nil, nil)
}

func TestARC_AdaptationRatio(t *testing.T) {
	arc, err := NewARC(4)
	if err != nil {
		t.Fatalf("NewARC error: %v", err)
	}

	// Build B2 = 2 ghosts and B1 = 1 ghost, then hit B1: p grows by |B2|/|B1| = 2.
	arc.b1.pushFront(&pageNode{page: 0x1000})
	arc.b2.pushFront(&pageNode{page: 0x2000})
	arc.b2.pushFront(&pageNode{page: 0x3000})

	for _, n := range []*pageNode{arc.b1.head, arc.b2.head, arc.b2.tail} {
		arc.index[n.page] = n
	}

	for _, pg := range pages(10, 11, 12, 13) {
		node := &pageNode{page: pg}
		arc.t2.pushFront(node)
		arc.index[pg] = node
	}

	arc.Consume(0x1000)

	if arc.P() != 2 {
		t.Fatalf("expected p=2 after B1 hit with |B2|/|B1|=2, got %v", arc.P())
	}

	if arc.IsPageFault(0x1000) || arc.Len() != 4 {
		t.Fatalf("expected ghost hit to readmit with full cache, len=%d", arc.Len())
	}
}

func TestARC_RandomTracePartitions(t *testing.T) {
	const capacity = 8

	arc, err := NewARC(capacity)
	if err != nil {
		t.Fatalf("NewARC error: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))

	for range 5000 {
		arc.Consume(page.Page(rng.Uint64N(3*capacity) << 12))
		arc.assertState(t,
			listPages(t, &arc.t1), listPages(t, &arc.t2),
			listPages(t, &arc.b1), listPages(t, &arc.b2))
	}
}
