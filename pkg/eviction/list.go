package eviction

import (
	"iter"

	"github.com/hyp3rd/pagetemp/pkg/page"
)

// listID names the partition a record currently belongs to.
type listID uint8

const (
	listNone listID = iota
	listT1
	listT2
	listB1
	listB2
)

func (id listID) String() string {
	switch id {
	case listT1:
		return "T1"
	case listT2:
		return "T2"
	case listB1:
		return "B1"
	case listB2:
		return "B2"
	default:
		return "none"
	}
}

// resident reports whether a record in this partition is held in the cache.
func (id listID) resident() bool { return id == listT1 || id == listT2 }

// pageNode is the single record kept per tracked page by ARC and CAR.
// It lives in exactly one partition, tagged by list.
type pageNode struct {
	page       page.Page
	list       listID
	referenced bool // CAR reference bit
	prev       *pageNode
	next       *pageNode
}

// pageList is an intrusive doubly-linked list with O(1) insertion at either
// end and O(1) removal of any member.
type pageList struct {
	id   listID
	head *pageNode
	tail *pageNode
	len  int
}

func (l *pageList) pushFront(node *pageNode) {
	node.list = l.id
	node.prev = nil

	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}

	l.head = node
	if l.tail == nil {
		l.tail = node
	}

	l.len++
}

func (l *pageList) pushBack(node *pageNode) {
	node.list = l.id
	node.next = nil

	node.prev = l.tail
	if l.tail != nil {
		l.tail.next = node
	}

	l.tail = node
	if l.head == nil {
		l.head = node
	}

	l.len++
}

func (l *pageList) remove(node *pageNode) {
	switch {
	case l.head == l.tail:
		l.head = nil
		l.tail = nil

	case node == l.head:
		l.head = node.next
		l.head.prev = nil

	case node == l.tail:
		l.tail = node.prev
		l.tail.next = nil

	default:
		node.prev.next = node.next
		node.next.prev = node.prev
	}

	node.prev = nil
	node.next = nil
	node.list = listNone
	l.len--
}

func (l *pageList) popFront() *pageNode {
	if l.head == nil {
		return nil
	}

	h := l.head
	l.remove(h)

	return h
}

func (l *pageList) popBack() *pageNode {
	if l.tail == nil {
		return nil
	}

	t := l.tail
	l.remove(t)

	return t
}

// forward yields members from head to tail.
func (l *pageList) forward() iter.Seq[*pageNode] {
	return func(yield func(*pageNode) bool) {
		for n := l.head; n != nil; n = n.next {
			if !yield(n) {
				return
			}
		}
	}
}

// backward yields members from tail to head.
func (l *pageList) backward() iter.Seq[*pageNode] {
	return func(yield func(*pageNode) bool) {
		for n := l.tail; n != nil; n = n.prev {
			if !yield(n) {
				return
			}
		}
	}
}

// ratio returns num/den, or 1 when den is zero.
func ratio(num, den int) float64 {
	if den == 0 {
		return 1
	}

	return float64(num) / float64(den)
}
