package board

import (
	"errors"
	"sync"
	"time"

	"storefront/backend/internal/domain"
)

var (
	ErrUnknownOrder  = errors.New("order not loaded")
	ErrPendingChange = errors.New("order already has a pending status change")
	ErrNoPending     = errors.New("order has no pending status change")
)

// Board is a seller's loaded order collection. Status changes go through
// Begin, then Confirm once the backend acknowledges or Revert when it does
// not; an order's visible status never changes before confirmation.
type Board struct {
	mu       sync.RWMutex
	orders   []domain.Order
	index    map[string]int
	pending  map[string]domain.PendingChange
	loadedAt time.Time
}

func New() *Board {
	return &Board{
		index:   make(map[string]int),
		pending: make(map[string]domain.PendingChange),
	}
}

// Replace installs a freshly fetched collection. Pending flags for orders that
// are still present survive the refresh.
func (b *Board) Replace(orders []domain.Order, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.orders = make([]domain.Order, len(orders))
	copy(b.orders, orders)
	b.index = make(map[string]int, len(orders))
	for i, o := range b.orders {
		b.index[o.ID] = i
	}
	for id := range b.pending {
		if _, ok := b.index[id]; !ok {
			delete(b.pending, id)
		}
	}
	b.loadedAt = at
}

func (b *Board) LoadedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadedAt
}

func (b *Board) Orders() []domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

func (b *Board) Order(id string) (domain.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[id]
	if !ok {
		return domain.Order{}, false
	}
	return b.orders[i], true
}

func (b *Board) Pending() map[string]domain.PendingChange {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]domain.PendingChange, len(b.pending))
	for id, change := range b.pending {
		out[id] = change
	}
	return out
}

func (b *Board) Begin(id string, to domain.OrderStatus) (domain.PendingChange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[id]
	if !ok {
		return domain.PendingChange{}, ErrUnknownOrder
	}
	if _, busy := b.pending[id]; busy {
		return domain.PendingChange{}, ErrPendingChange
	}
	change := domain.PendingChange{OrderID: id, From: b.orders[i].Status, To: to}
	b.pending[id] = change
	return change, nil
}

// Confirm applies the pending status. The backend's echoed order, when given,
// wins over the locally requested status.
func (b *Board) Confirm(id string, acknowledged *domain.Order) (domain.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	change, ok := b.pending[id]
	if !ok {
		return domain.Order{}, ErrNoPending
	}
	delete(b.pending, id)

	i, ok := b.index[id]
	if !ok {
		return domain.Order{}, ErrUnknownOrder
	}
	if acknowledged != nil && acknowledged.ID == id {
		b.orders[i] = *acknowledged
	} else {
		b.orders[i].Status = change.To
	}
	return b.orders[i], nil
}

func (b *Board) Revert(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; !ok {
		return ErrNoPending
	}
	delete(b.pending, id)
	return nil
}

// Registry hands out one board per seller.
type Registry struct {
	mu     sync.Mutex
	boards map[string]*Board
}

func NewRegistry() *Registry {
	return &Registry{boards: make(map[string]*Board)}
}

func (r *Registry) For(sellerID string) *Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[sellerID]
	if !ok {
		b = New()
		r.boards[sellerID] = b
	}
	return b
}

func (r *Registry) Drop(sellerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boards, sellerID)
}
