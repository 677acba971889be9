package eviction

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/hyp3rd/pagetemp/pkg/page"
)

// LFU is an eviction policy that evicts the least frequently used page,
// breaking frequency ties by least recent access.
type LFU struct {
	items map[page.Page]*Node
	freqs *FrequencyHeap
	cap   int
	seq   uint64 // monotonic sequence to break frequency ties by recency (LRU on ties)
}

// Node is a resident page tracked by LFU.
type Node struct {
	page  page.Page
	count int
	index int
	last  uint64 // last access sequence (higher = more recent)
}

// FrequencyHeap is a heap of Nodes.
//
//nolint:recvcheck
type FrequencyHeap []*Node

// Len returns the length of the heap.
func (fh FrequencyHeap) Len() int { return len(fh) }

// Less returns true if the node at index i is colder than the node at index j.
func (fh FrequencyHeap) Less(i, j int) bool { return colder(fh[i], fh[j]) < 0 }

// Swap swaps the nodes at index i and j.
func (fh FrequencyHeap) Swap(i, j int) {
	fh[i], fh[j] = fh[j], fh[i]
	fh[i].index = i
	fh[j].index = j
}

// Push adds a node to the heap.
func (fh *FrequencyHeap) Push(x any) {
	n := len(*fh)

	node, ok := x.(*Node)
	if ok {
		node.index = n
		*fh = append(*fh, node)
	}
}

// Pop removes the last node from the heap.
func (fh *FrequencyHeap) Pop() any {
	old := *fh
	n := len(old)
	node := old[n-1]

	node.index = -1
	*fh = old[0 : n-1]

	return node
}

// colder orders nodes by ascending frequency, then ascending recency.
func colder(a, b *Node) int {
	if c := cmp.Compare(a.count, b.count); c != 0 {
		return c
	}

	return cmp.Compare(a.last, b.last)
}

// NewLFU creates a new LFU policy with the given capacity.
func NewLFU(capacity int) (*LFU, error) {
	err := validateCapacity(capacity)
	if err != nil {
		return nil, err
	}

	return &LFU{
		items: make(map[page.Page]*Node, capacity),
		freqs: &FrequencyHeap{},
		cap:   capacity,
	}, nil
}

// Name returns "LFU".
func (*LFU) Name() string { return "LFU" }

// Capacity returns the maximum number of resident pages.
func (l *LFU) Capacity() int { return l.cap }

// Len returns the number of resident pages.
func (l *LFU) Len() int { return len(l.items) }

// IsPageFault reports whether pg is not resident.
func (l *LFU) IsPageFault(pg page.Page) bool {
	_, ok := l.items[pg]

	return !ok
}

// Consume increments the frequency of a resident page, or admits pg with
// frequency 1 after evicting the coldest resident when full.
func (l *LFU) Consume(pg page.Page) {
	l.seq++

	if node, ok := l.items[pg]; ok {
		node.count++
		node.last = l.seq
		heap.Fix(l.freqs, node.index)

		return
	}

	if len(l.items) == l.cap {
		victim, ok := heap.Pop(l.freqs).(*Node)
		invariant(ok, "LFU", "heap returned a non-node")
		delete(l.items, victim.page)
	}

	node := &Node{
		page:  pg,
		count: 1,
		last:  l.seq,
	}

	l.items[pg] = node
	heap.Push(l.freqs, node)
}

// TemperatureOrder returns residents by ascending frequency, least recent first on ties.
func (l *LFU) TemperatureOrder() []page.Page {
	nodes := slices.Clone(*l.freqs)
	slices.SortFunc(nodes, colder)

	order := make([]page.Page, len(nodes))
	for i, n := range nodes {
		order[i] = n.page
	}

	return order
}
