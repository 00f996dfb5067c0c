package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/mecsis-mcp/pkg/types"
)

func TestOrderCache_DropsFillAfterInvalidation(t *testing.T) {
	cache := newOrderCache(4)

	ticket := cache.ticket()
	cache.invalidate(1)
	assert.False(t, cache.putIfCurrent(&types.Order{ID: 1}, ticket))
	_, ok := cache.get(1)
	assert.False(t, ok, "stale fill must not be cached")

	// A write to a different order still drops the fill
	ticket = cache.ticket()
	cache.invalidate(2)
	assert.False(t, cache.putIfCurrent(&types.Order{ID: 1}, ticket))

	ticket = cache.ticket()
	assert.True(t, cache.putIfCurrent(&types.Order{ID: 1}, ticket))
	_, ok = cache.get(1)
	assert.True(t, ok)
}

func TestCloneOrder_CopiesPointers(t *testing.T) {
	responsible := int64(7)
	delivery := "2026-05-10"
	cache := newOrderCache(4)
	require.True(t, cache.putIfCurrent(&types.Order{
		ID:               1,
		ResponsibleID:    &responsible,
		ExpectedDelivery: &delivery,
		Items:            []types.OrderItem{{ServiceID: 3, Quantity: 1}},
	}, cache.ticket()))

	got, ok := cache.get(1)
	require.True(t, ok)
	*got.ResponsibleID = 99
	*got.ExpectedDelivery = "2030-01-01"
	got.Items[0].Quantity = 5

	again, ok := cache.get(1)
	require.True(t, ok)
	assert.Equal(t, int64(7), *again.ResponsibleID)
	assert.Equal(t, "2026-05-10", *again.ExpectedDelivery)
	assert.Equal(t, 1, again.Items[0].Quantity)

	// The caller's original is not shared either
	responsible = 42
	again, _ = cache.get(1)
	assert.Equal(t, int64(7), *again.ResponsibleID)
}
