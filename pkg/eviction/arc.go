package eviction

import (
	"github.com/hyp3rd/pagetemp/pkg/page"
)

// ARC implements the Adaptive Replacement Cache (resident T1/T2 and ghost B1/B2).
//
// Every list keeps its MRU page at the head and its LRU page at the tail.
// A single index maps each tracked page to its record; the record's tag names
// the list it is in, so membership checks never scan.
type ARC struct {
	capacity int
	p        float64 // target size for T1, in [0, capacity]

	// resident lists
	t1 pageList
	t2 pageList

	// ghost lists
	b1 pageList
	b2 pageList

	index map[page.Page]*pageNode
}

// NewARC creates a new ARC with capacity.
func NewARC(capacity int) (*ARC, error) {
	err := validateCapacity(capacity)
	if err != nil {
		return nil, err
	}

	return &ARC{
		capacity: capacity,
		t1:       pageList{id: listT1},
		t2:       pageList{id: listT2},
		b1:       pageList{id: listB1},
		b2:       pageList{id: listB2},
		index:    make(map[page.Page]*pageNode, 2*capacity),
	}, nil
}

// Name returns "ARC".
func (*ARC) Name() string { return "ARC" }

// Capacity returns the maximum number of resident pages.
func (a *ARC) Capacity() int { return a.capacity }

// Len returns |T1| + |T2|.
func (a *ARC) Len() int { return a.t1.len + a.t2.len }

// P returns the current target size of T1.
func (a *ARC) P() float64 { return a.p }

// IsPageFault reports whether pg is outside T1 and T2. Ghosts are not resident.
func (a *ARC) IsPageFault(pg page.Page) bool {
	node, ok := a.index[pg]

	return !ok || !node.list.resident()
}

// Consume applies one access according to ARC rules.
func (a *ARC) Consume(pg page.Page) {
	node, ok := a.index[pg]

	switch {
	case !ok:
		a.admit(pg)

	case node.list.resident():
		// promote (or refresh) to T2 MRU
		a.listOf(node.list).remove(node)
		a.t2.pushFront(node)

	case node.list == listB1:
		a.p = min(a.p+a.delta(a.b1.len, a.b2.len), float64(a.capacity))
		a.replace(false)

		a.b1.remove(node)
		a.t2.pushFront(node)

	case node.list == listB2:
		a.p = max(a.p-a.delta(a.b2.len, a.b1.len), 0)
		a.replace(true)

		a.b2.remove(node)
		a.t2.pushFront(node)
	}

	a.checkInvariants()
}

// TemperatureOrder returns T1 from LRU to MRU followed by T2 from LRU to MRU.
func (a *ARC) TemperatureOrder() []page.Page {
	order := make([]page.Page, 0, a.Len())

	for node := range a.t1.backward() {
		order = append(order, node.page)
	}

	for node := range a.t2.backward() {
		order = append(order, node.page)
	}

	return order
}

// delta is the adaptation step after a hit in the ghost list of size hit,
// the other ghost list having size other.
func (*ARC) delta(hit, other int) float64 {
	if hit >= other {
		return 1
	}

	return ratio(other, hit)
}

// admit handles a page tracked by none of the four lists.
func (a *ARC) admit(pg page.Page) {
	if a.t1.len+a.b1.len == a.capacity {
		if a.t1.len < a.capacity {
			a.discard(&a.b1)
			a.replace(false)
		} else {
			a.discard(&a.t1)
		}
	} else {
		total := a.t1.len + a.t2.len + a.b1.len + a.b2.len
		if total >= a.capacity {
			if total == 2*a.capacity {
				a.discard(&a.b2)
			}

			a.replace(false)
		}
	}

	node := &pageNode{page: pg}
	a.t1.pushFront(node)

	a.index[pg] = node
}

// replace demotes one resident into its ghost list: the LRU of T1 when T1 exceeds
// its target (or meets it on a B2 hit), the LRU of T2 otherwise.
func (a *ARC) replace(inB2 bool) {
	t1 := float64(a.t1.len)
	if a.t1.len != 0 && (t1 > a.p || (inB2 && t1 == a.p)) {
		a.b1.pushFront(a.t1.popBack())

		return
	}

	invariant(a.t2.len != 0, "ARC", "replace with empty T2 (|T1|=%d p=%.2f)", a.t1.len, a.p)
	a.b2.pushFront(a.t2.popBack())
}

// discard drops the LRU record of l and forgets the page entirely.
func (a *ARC) discard(l *pageList) {
	node := l.popBack()
	invariant(node != nil, "ARC", "discard from empty %s", l.id)

	delete(a.index, node.page)
}

func (a *ARC) listOf(id listID) *pageList {
	switch id {
	case listT1:
		return &a.t1
	case listT2:
		return &a.t2
	case listB1:
		return &a.b1
	case listB2:
		return &a.b2
	default:
		invariant(false, "ARC", "record without list")

		return nil
	}
}

func (a *ARC) checkInvariants() {
	resident := a.t1.len + a.t2.len
	total := resident + a.b1.len + a.b2.len

	invariant(resident <= a.capacity, "ARC", "|T1|+|T2|=%d exceeds capacity %d", resident, a.capacity)
	invariant(total <= 2*a.capacity, "ARC", "directory size %d exceeds %d", total, 2*a.capacity)
	invariant(total == len(a.index), "ARC", "lists hold %d records, index %d", total, len(a.index))
	invariant(a.p >= 0 && a.p <= float64(a.capacity), "ARC", "p=%.2f outside [0, %d]", a.p, a.capacity)
}
