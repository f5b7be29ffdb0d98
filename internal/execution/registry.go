package execution

import (
	"sync"

	"github.com/google/uuid"

	"github.com/celikh/agentflux/internal/domain"
)

// Registry tracks every order the Execution Core has dispatched but not
// yet resolved to a terminal status. STOP_LOSS and TAKE_PROFIT orders
// placed alongside a parent MARKET/LIMIT order are tracked in this same
// registry, linked via Order.ParentOrderID rather than a separate bracket
// structure -- the resolution adopted for the Open Question on how bracket
// orders should be represented.
type Registry struct {
	mu      sync.RWMutex
	pending map[uuid.UUID]*domain.Order
	// children indexes STOP_LOSS/TAKE_PROFIT orders by their parent's ID
	// for fast bracket cancellation once the parent resolves.
	children map[uuid.UUID][]uuid.UUID
}

// NewRegistry constructs an empty pending-order registry.
func NewRegistry() *Registry {
	return &Registry{
		pending:  make(map[uuid.UUID]*domain.Order),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Add registers an order as pending. If order.ParentOrderID is set the
// order is indexed as a bracket child.
func (r *Registry) Add(order *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[order.ID] = order
	if order.ParentOrderID != nil {
		r.children[*order.ParentOrderID] = append(r.children[*order.ParentOrderID], order.ID)
	}
}

// Get returns the pending order by ID, if still tracked.
func (r *Registry) Get(orderID uuid.UUID) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.pending[orderID]
	return o, ok
}

// UpdateStatus transitions an order's status. Terminal statuses remove it
// from the registry and return its bracket children (if any) so the
// caller can cancel the sibling STOP_LOSS/TAKE_PROFIT order once one leg
// of the bracket fills.
func (r *Registry) UpdateStatus(orderID uuid.UUID, status domain.OrderStatus) (children []uuid.UUID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.pending[orderID]
	if !exists {
		return nil, false
	}
	order.Status = status

	if !status.IsTerminal() {
		return nil, true
	}

	children = r.children[orderID]
	delete(r.children, orderID)
	delete(r.pending, orderID)
	return children, true
}

// Children returns the STOP_LOSS/TAKE_PROFIT order IDs bracketed under a
// parent order, without mutating the registry.
func (r *Registry) Children(parentOrderID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, len(r.children[parentOrderID]))
	copy(out, r.children[parentOrderID])
	return out
}

// Pending returns every order still tracked, for periodic reconciliation
// against the exchange (spec §4.4.3).
func (r *Registry) Pending() []*domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Order, 0, len(r.pending))
	for _, o := range r.pending {
		out = append(out, o)
	}
	return out
}
