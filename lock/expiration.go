package lock

import (
	"container/heap"
	"time"

	"github.com/jathurchan/davlock/types"
)

// expirationItem represents a finite lock tracked within the expiration heap.
type expirationItem struct {
	token     types.StateToken
	expiresAt time.Time

	// Position of the item in the heap (used by heap.Interface). -1 once removed.
	index int
}

// expirationHeap is a min-heap of expirationItems ordered by expiresAt,
// giving O(1) access to the next lock due for reclamation.
// Infinite locks are never pushed.
type expirationHeap []*expirationItem

func (h expirationHeap) Len() int { return len(h) }

func (h expirationHeap) Less(i, j int) bool {
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h expirationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expirationHeap) Push(x any) {
	item := x.(*expirationItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// peek returns the item expiring soonest, or nil if the heap is empty.
func (h expirationHeap) peek() *expirationItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// track adds a new item for token and returns it.
func (h *expirationHeap) track(token types.StateToken, expiresAt time.Time) *expirationItem {
	item := &expirationItem{token: token, expiresAt: expiresAt}
	heap.Push(h, item)
	return item
}

// reschedule moves an existing item to a new expiry.
func (h *expirationHeap) reschedule(item *expirationItem, expiresAt time.Time) {
	item.expiresAt = expiresAt
	heap.Fix(h, item.index)
}

// untrack removes item if it is still in the heap.
func (h *expirationHeap) untrack(item *expirationItem) {
	if item == nil || item.index < 0 || item.index >= h.Len() {
		return
	}
	heap.Remove(h, item.index)
}
