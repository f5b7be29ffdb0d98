package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celikh/agentflux/internal/domain"
)

func TestRegistryTracksBracketChildren(t *testing.T) {
	r := NewRegistry()
	parent := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusOpen}
	r.Add(parent)

	parentID := parent.ID
	child := &domain.Order{ID: uuid.New(), ParentOrderID: &parentID, OrderType: domain.OrderTypeStopLoss, Status: domain.OrderStatusOpen}
	r.Add(child)

	children := r.Children(parentID)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0])
}

func TestRegistryUpdateStatusRemovesOnTerminal(t *testing.T) {
	r := NewRegistry()
	order := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusOpen}
	r.Add(order)

	_, ok := r.UpdateStatus(order.ID, domain.OrderStatusPartial)
	assert.True(t, ok)
	_, stillTracked := r.Get(order.ID)
	assert.True(t, stillTracked)

	children, ok := r.UpdateStatus(order.ID, domain.OrderStatusFilled)
	assert.True(t, ok)
	assert.Empty(t, children)

	_, tracked := r.Get(order.ID)
	assert.False(t, tracked)
}

func TestRegistryUpdateStatusReturnsChildrenOnTerminal(t *testing.T) {
	r := NewRegistry()
	parent := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusOpen}
	r.Add(parent)
	parentID := parent.ID
	child := &domain.Order{ID: uuid.New(), ParentOrderID: &parentID, Status: domain.OrderStatusOpen}
	r.Add(child)

	children, ok := r.UpdateStatus(parentID, domain.OrderStatusFilled)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{child.ID}, children)
}
