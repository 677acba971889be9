package eviction

import (
	"github.com/hyp3rd/pagetemp/pkg/page"
)

// CAR implements CLOCK with Adaptive Replacement.
//
// T1 and T2 are FIFO clocks: the head is the next page the hand inspects, new
// pages join at the tail. Residents carry a reference bit, so a hit is O(1)
// with no list movement. B1 and B2 keep their MRU ghost at the head and the
// LRU ghost at the tail, like ARC.
type CAR struct {
	capacity int
	p        float64 // target size for T1, in [0, capacity]

	t1 pageList
	t2 pageList
	b1 pageList
	b2 pageList

	index map[page.Page]*pageNode
}

// NewCAR creates a new CAR with capacity.
func NewCAR(capacity int) (*CAR, error) {
	err := validateCapacity(capacity)
	if err != nil {
		return nil, err
	}

	return &CAR{
		capacity: capacity,
		t1:       pageList{id: listT1},
		t2:       pageList{id: listT2},
		b1:       pageList{id: listB1},
		b2:       pageList{id: listB2},
		index:    make(map[page.Page]*pageNode, 2*capacity),
	}, nil
}

// Name returns "CAR".
func (*CAR) Name() string { return "CAR" }

// Capacity returns the maximum number of resident pages.
func (c *CAR) Capacity() int { return c.capacity }

// Len returns |T1| + |T2|.
func (c *CAR) Len() int { return c.t1.len + c.t2.len }

// P returns the current target size of T1.
func (c *CAR) P() float64 { return c.p }

// IsPageFault reports whether pg is outside T1 and T2.
func (c *CAR) IsPageFault(pg page.Page) bool {
	node, ok := c.index[pg]

	return !ok || !node.list.resident()
}

// Consume applies one access according to CAR rules.
func (c *CAR) Consume(pg page.Page) {
	node, ok := c.index[pg]
	if ok && node.list.resident() {
		node.referenced = true

		return
	}

	if c.t1.len+c.t2.len == c.capacity {
		c.replace()

		// history replacement, only on a genuine history miss
		if !ok {
			if c.t1.len+c.b1.len == c.capacity {
				c.discard(&c.b1)
			} else if c.t1.len+c.t2.len+c.b1.len+c.b2.len == 2*c.capacity {
				c.discard(&c.b2)
			}
		}
	}

	node, ok = c.index[pg]

	switch {
	case !ok:
		node = &pageNode{page: pg}
		c.t1.pushBack(node)

		c.index[pg] = node

	case node.list == listB1:
		c.p = min(c.p+max(1, ratio(c.b2.len, c.b1.len)), float64(c.capacity))

		c.b1.remove(node)
		node.referenced = false
		c.t2.pushBack(node)

	default:
		invariant(node.list == listB2, "CAR", "history hit on page in %s", node.list)

		c.p = max(c.p-max(1, ratio(c.b1.len, c.b2.len)), 0)

		c.b2.remove(node)
		node.referenced = false
		c.t2.pushBack(node)
	}

	c.checkInvariants()
}

// TemperatureOrder returns unreferenced T1 pages, unreferenced T2 pages,
// referenced T1 pages and referenced T2 pages, each group in clock order.
func (c *CAR) TemperatureOrder() []page.Page {
	order := make([]page.Page, 0, c.Len())

	for _, referenced := range []bool{false, true} {
		for _, l := range []*pageList{&c.t1, &c.t2} {
			for node := range l.forward() {
				if node.referenced == referenced {
					order = append(order, node.page)
				}
			}
		}
	}

	return order
}

// replace sweeps the clocks until one unreferenced resident is demoted to a ghost list.
// Referenced T1 heads earn a second chance in T2; referenced T2 heads go round again.
func (c *CAR) replace() {
	for {
		if float64(c.t1.len) >= max(1, c.p) {
			node := c.t1.popFront()
			if !node.referenced {
				c.b1.pushFront(node)

				return
			}

			node.referenced = false
			c.t2.pushBack(node)

			continue
		}

		node := c.t2.popFront()
		invariant(node != nil, "CAR", "replace with empty T2 (|T1|=%d p=%.2f)", c.t1.len, c.p)

		if !node.referenced {
			c.b2.pushFront(node)

			return
		}

		node.referenced = false
		c.t2.pushBack(node)
	}
}

// discard drops the LRU ghost of l and forgets the page entirely.
func (c *CAR) discard(l *pageList) {
	node := l.popBack()
	invariant(node != nil, "CAR", "discard from empty %s", l.id)

	delete(c.index, node.page)
}

func (c *CAR) checkInvariants() {
	resident := c.t1.len + c.t2.len
	total := resident + c.b1.len + c.b2.len

	invariant(resident <= c.capacity, "CAR", "|T1|+|T2|=%d exceeds capacity %d", resident, c.capacity)
	invariant(total <= 2*c.capacity, "CAR", "directory size %d exceeds %d", total, 2*c.capacity)
	invariant(total == len(c.index), "CAR", "lists hold %d records, index %d", total, len(c.index))
	invariant(c.p >= 0 && c.p <= float64(c.capacity), "CAR", "p=%.2f outside [0, %d]", c.p, c.capacity)
}
