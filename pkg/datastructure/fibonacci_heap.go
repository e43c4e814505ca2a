package datastructure

import (
	"math"

	"github.com/pandu-maps/pandu/pkg/util"
)

// Entry is one node of a Fibonacci heap. Callers keep the pointer
// returned by Insert to drive DecreaseKey later.
type Entry[T any] struct {
	degree   int
	isMarked bool

	next   *Entry[T]
	prev   *Entry[T]
	child  *Entry[T]
	parent *Entry[T]

	elem     T
	priority float64
}

func newEntry[T any](elem T, priority float64) *Entry[T] {
	e := &Entry[T]{
		elem:     elem,
		priority: priority,
	}
	e.next = e
	e.prev = e
	return e
}

func (e *Entry[T]) GetPriority() float64 {
	return e.priority
}

func (e *Entry[T]) GetElem() T {
	return e.elem
}

// FibonacciHeap gives O(1) amortized Insert/DecreaseKey and O(log n)
// amortized ExtractMin, which pays off in searches that decrease keys
// far more often than they pop (witness search, pruned labeling).
type FibonacciHeap[T any] struct {
	mMin  *Entry[T]
	mSize int
}

func NewFibonacciHeap[T any]() *FibonacciHeap[T] {
	return &FibonacciHeap[T]{}
}

func (f *FibonacciHeap[T]) Size() int {
	return f.mSize
}

func (f *FibonacciHeap[T]) IsEmpty() bool {
	return f.mSize == 0
}

func (f *FibonacciHeap[T]) GetMin() *Entry[T] {
	return f.mMin
}

// GetMinRank returns the smallest priority in the heap, +inf when empty.
func (f *FibonacciHeap[T]) GetMinRank() float64 {
	if f.mMin == nil {
		return math.MaxFloat64
	}
	return f.mMin.priority
}

func (f *FibonacciHeap[T]) Insert(value T, priority float64) *Entry[T] {
	entry := newEntry(value, priority)
	f.mMin = mergeRootLists(f.mMin, entry)
	f.mSize++
	return entry
}

// mergeRootLists splices two circular doubly linked lists and returns
// the entry with the smaller priority.
func mergeRootLists[T any](one, two *Entry[T]) *Entry[T] {
	if one == nil {
		return two
	}
	if two == nil {
		return one
	}

	oneNext := one.next
	one.next = two.next
	one.next.prev = one
	two.next = oneNext
	two.next.prev = two

	if one.priority < two.priority {
		return one
	}
	return two
}

func (f *FibonacciHeap[T]) DecreaseKey(entry *Entry[T], newPriority float64) {
	util.AssertPanic(newPriority <= entry.priority, "new priority must be less or equal than old priority")
	entry.priority = newPriority

	if entry.parent != nil && entry.priority <= entry.parent.priority {
		f.cutFromParent(entry)
	}
	if entry.priority < f.mMin.priority {
		f.mMin = entry
	}
}

// cutFromParent moves entry to the root list and walks up performing
// the cascading cut over marked ancestors.
func (f *FibonacciHeap[T]) cutFromParent(entry *Entry[T]) {
	for entry != nil {
		entry.isMarked = false

		parent := entry.parent
		if parent == nil {
			return
		}

		// unlink entry from its sibling ring
		entry.next.prev = entry.prev
		entry.prev.next = entry.next
		if parent.child == entry {
			if entry.next != entry {
				parent.child = entry.next
			} else {
				parent.child = nil
			}
		}
		parent.degree--

		entry.prev = entry
		entry.next = entry
		entry.parent = nil
		f.mMin = mergeRootLists(f.mMin, entry)

		if !parent.isMarked {
			parent.isMarked = true
			return
		}
		entry = parent
	}
}

func (f *FibonacciHeap[T]) ExtractMin() *Entry[T] {
	util.AssertPanic(f.mMin != nil, "heap is empty")

	f.mSize--
	minEntry := f.mMin

	if f.mMin.next == f.mMin {
		f.mMin = nil
	} else {
		f.mMin.prev.next = f.mMin.next
		f.mMin.next.prev = f.mMin.prev
		f.mMin = f.mMin.next
	}

	if minEntry.child != nil {
		curr := minEntry.child
		for {
			curr.parent = nil
			curr = curr.next
			if curr == minEntry.child {
				break
			}
		}
	}

	f.mMin = mergeRootLists(f.mMin, minEntry.child)
	minEntry.child = nil
	if f.mMin == nil {
		return minEntry
	}

	f.consolidate()
	return minEntry
}

// consolidate links root trees of equal degree until every degree
// appears at most once, then fixes up the min pointer.
func (f *FibonacciHeap[T]) consolidate() {
	degreeTable := make([]*Entry[T], 0)

	roots := make([]*Entry[T], 0)
	for curr := f.mMin; len(roots) == 0 || roots[0] != curr; curr = curr.next {
		roots = append(roots, curr)
	}

	for _, curr := range roots {
		for {
			for curr.degree >= len(degreeTable) {
				degreeTable = append(degreeTable, nil)
			}
			if degreeTable[curr.degree] == nil {
				degreeTable[curr.degree] = curr
				break
			}

			other := degreeTable[curr.degree]
			degreeTable[curr.degree] = nil

			smaller, larger := other, curr
			if curr.priority < other.priority {
				smaller, larger = curr, other
			}

			// detach larger from the root ring, make it a child of smaller
			larger.next.prev = larger.prev
			larger.prev.next = larger.next
			larger.next = larger
			larger.prev = larger
			smaller.child = mergeRootLists(smaller.child, larger)
			larger.parent = smaller
			larger.isMarked = false
			smaller.degree++

			curr = smaller
		}

		if curr.priority <= f.mMin.priority {
			f.mMin = curr
		}
	}
}
