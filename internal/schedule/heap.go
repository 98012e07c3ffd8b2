package schedule

import "container/heap"

// wakeHeap implements container/heap.Interface for entries, ordered by
// wake time (earliest first).
type wakeHeap []entry

func (h wakeHeap) Len() int           { return len(h) }
func (h wakeHeap) Less(i, j int) bool { return h[i].wakeAt.Before(h[j].wakeAt) }
func (h wakeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *wakeHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *wakeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapPush(h *wakeHeap, e entry) {
	heap.Push(h, e)
}

// heapPop removes and returns the entry with the earliest wake time.
// Panics if the heap is empty.
func heapPop(h *wakeHeap) entry {
	return heap.Pop(h).(entry)
}

// heapRemoveByKey removes the entry with the given key, if present.
func heapRemoveByKey(h *wakeHeap, key string) bool {
	for i, e := range *h {
		if e.key == key {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
