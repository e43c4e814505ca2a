package datastructure

import "errors"

var (
	ErrHeapEmpty    = errors.New("heap is empty")
	ErrItemNotFound = errors.New("item not found in heap")
)

type PriorityQueueNode[T comparable] struct {
	Rank float64
	Item T
}

func NewPriorityQueueNode[T comparable](rank float64, item T) PriorityQueueNode[T] {
	return PriorityQueueNode[T]{Rank: rank, Item: item}
}

// MinHeap is a binary min-heap keyed by Rank with an item index map so
// DecreaseKey runs in O(log n). Each item may appear at most once.
type MinHeap[T comparable] struct {
	heap    []PriorityQueueNode[T]
	indexes map[T]int
}

func NewMinHeap[T comparable]() *MinHeap[T] {
	return &MinHeap[T]{
		heap:    make([]PriorityQueueNode[T], 0),
		indexes: make(map[T]int),
	}
}

func (h *MinHeap[T]) Size() int {
	return len(h.heap)
}

func (h *MinHeap[T]) IsEmpty() bool {
	return len(h.heap) == 0
}

func (h *MinHeap[T]) Contains(item T) bool {
	_, ok := h.indexes[item]
	return ok
}

func (h *MinHeap[T]) GetMin() (PriorityQueueNode[T], error) {
	if len(h.heap) == 0 {
		return PriorityQueueNode[T]{}, ErrHeapEmpty
	}
	return h.heap[0], nil
}

func (h *MinHeap[T]) Insert(item PriorityQueueNode[T]) {
	h.heap = append(h.heap, item)
	h.indexes[item.Item] = len(h.heap) - 1
	h.up(len(h.heap) - 1)
}

func (h *MinHeap[T]) ExtractMin() (PriorityQueueNode[T], error) {
	if len(h.heap) == 0 {
		return PriorityQueueNode[T]{}, ErrHeapEmpty
	}
	min := h.heap[0]
	last := len(h.heap) - 1
	h.swap(0, last)
	h.heap = h.heap[:last]
	delete(h.indexes, min.Item)
	if last > 0 {
		h.down(0)
	}
	return min, nil
}

// DecreaseKey moves an already inserted item up to its new, lower rank.
func (h *MinHeap[T]) DecreaseKey(item PriorityQueueNode[T]) error {
	idx, ok := h.indexes[item.Item]
	if !ok {
		return ErrItemNotFound
	}
	h.heap[idx].Rank = item.Rank
	h.up(idx)
	return nil
}

func (h *MinHeap[T]) up(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if h.heap[parent].Rank <= h.heap[idx].Rank {
			break
		}
		h.swap(idx, parent)
		idx = parent
	}
}

func (h *MinHeap[T]) down(idx int) {
	n := len(h.heap)
	for {
		left := 2*idx + 1
		right := 2*idx + 2
		smallest := idx
		if left < n && h.heap[left].Rank < h.heap[smallest].Rank {
			smallest = left
		}
		if right < n && h.heap[right].Rank < h.heap[smallest].Rank {
			smallest = right
		}
		if smallest == idx {
			return
		}
		h.swap(idx, smallest)
		idx = smallest
	}
}

func (h *MinHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.indexes[h.heap[i].Item] = i
	h.indexes[h.heap[j].Item] = j
}
