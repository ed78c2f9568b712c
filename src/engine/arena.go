package engine

import "sync"

// Handle identifies a resting order in an Arena. Handles are never reused.
type Handle uint64

// Arena owns resting orders. Books and the aggregator keep handles, so a
// volume change made while matching is seen by every index.
type Arena struct {
	orders map[Handle]*Order
	next   Handle
	mu     sync.RWMutex
}

func NewArena() *Arena {
	return &Arena{
		orders: make(map[Handle]*Order),
	}
}

func (a *Arena) Store(order *Order) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.next++
	a.orders[a.next] = order
	return a.next
}

func (a *Arena) Get(h Handle) (*Order, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	order, ok := a.orders[h]
	return order, ok
}

// Release frees a handle. Books call it only while evicting their own entry
// under the book lock, so a handle held by a book always resolves.
func (a *Arena) Release(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.orders, h)
}

func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.orders)
}
