package service

import (
	"testing"

	"basket-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOrderCreatedCommitsStockOnce(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	basket := f.newBasket(t)

	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID), Quantity: intPtr(2)})
	require.NoError(t, err)
	_, err = f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(f.ctx, basket.UUID, "")
	require.NoError(t, err)

	events := f.publisher.orderCreated()
	require.Len(t, events, 1)

	require.NoError(t, f.fulfillment.HandleOrderCreated(f.ctx, events[0]))
	require.NoError(t, f.fulfillment.HandleOrderCreated(f.ctx, events[0]))

	inv, err := f.store.GetInventory(f.ctx, f.stocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Available)
	assert.Equal(t, 0, inv.Reserved)

	processed, err := f.store.IsEventProcessed(f.ctx, events[0].EventID)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, f.publisher.count(models.EventTypeOrderStockCommitted))
}
