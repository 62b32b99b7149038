package service

import (
	"strconv"
	"testing"
	"time"

	"basket-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderRequiresMethods(t *testing.T) {
	f := newFixture(t, Options{})
	basket := f.newBasket(t)
	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(f.ctx, basket.UUID, "")
	e := requireServiceError(t, err, KindInvalid)
	assert.NotEmpty(t, e.Errors)

	view, err := f.baskets.Get(f.ctx, basket.UUID)
	require.NoError(t, err)
	assert.False(t, view.Finished)
}

func TestCreateOrderEmptyBasket(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	basket := f.newBasket(t)

	_, err := f.orders.CreateOrder(f.ctx, basket.UUID, "")
	e := requireServiceError(t, err, KindInvalid)
	assert.Equal(t, []string{"Basket is empty"}, e.Errors)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.AddShippingMethod(models.ShippingMethod{ShopID: f.shop.ID, Name: "Post", Enabled: true, Price: decimalFromString(t, "5")})
	f.store.AddPaymentMethod(models.PaymentMethod{ShopID: f.shop.ID, Name: "Invoice", Enabled: true, Price: decimalFromString(t, "2")})
	basket := f.newBasket(t)

	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	require.NoError(t, err)
	_, err = f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID), Quantity: intPtr(2)})
	require.NoError(t, err)
	_, err = f.baskets.SetShippingAddress(f.ctx, basket.UUID, AddressRequest{
		Name: "Buyer", Street: "Main 1", City: "Helsinki", Country: "FI",
	})
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(f.ctx, basket.UUID, "")
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.NotEmpty(t, order.ReferenceNumber)
	assert.Equal(t, models.OrderStatusInitial, order.Status)
	assert.Equal(t, models.PaymentStatusNotPaid, order.PaymentStatus)
	assert.Equal(t, models.ShippingStatusNotShipped, order.ShippingStatus)
	// unselected methods are neither attached nor charged
	decimalEqual(t, "22", order.TaxfulTotalPrice)
	assert.Nil(t, order.ShippingMethodID)
	assert.Nil(t, order.PaymentMethodID)
	require.NotNil(t, order.ShippingAddress)
	assert.Equal(t, "Helsinki", order.ShippingAddress.City)
	require.NotNil(t, order.OrdererID)
	assert.Equal(t, requesterID, *order.OrdererID)
	assert.Len(t, order.Lines, 2)

	view, err := f.baskets.Get(f.ctx, basket.UUID)
	require.NoError(t, err)
	assert.True(t, view.Finished)

	inv, err := f.store.GetInventory(f.ctx, f.stocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Available)
	assert.Equal(t, 2, inv.Reserved)

	events := f.publisher.orderCreated()
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].OrderID)
	assert.Len(t, events[0].Lines, 2)

	_, err = f.orders.CreateOrder(f.ctx, basket.UUID, "")
	e := requireServiceError(t, err, KindInvalid)
	assert.Equal(t, MsgBasketFinished, e.Message)

	_, err = f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	requireServiceError(t, err, KindInvalid)
	_, err = f.baskets.Clear(f.ctx, basket.UUID)
	requireServiceError(t, err, KindInvalid)
}

func TestCreateOrderWithCodeAndMethodPrices(t *testing.T) {
	f := newFixture(t, Options{})
	f.addCampaignCode("HALF", 50)
	sm, _ := f.addMethods()
	express := f.store.AddShippingMethod(models.ShippingMethod{
		ShopID: f.shop.ID, Name: "Express", Enabled: true, Price: sm.Price.Add(decimalFromString(t, "4.90")),
	})
	basket := f.newBasket(t)

	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID), Quantity: intPtr(2)})
	require.NoError(t, err)
	_, err = f.baskets.AddCode(f.ctx, basket.UUID, "HALF")
	require.NoError(t, err)
	_, err = f.baskets.SetShippingMethod(f.ctx, basket.UUID, express.ID)
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(f.ctx, basket.UUID, "")
	require.NoError(t, err)
	decimalEqual(t, "15.40", order.TaxfulTotalPrice)
	assert.Equal(t, models.StringList{"HALF"}, order.Codes)
	require.NotNil(t, order.ShippingMethodID)
	assert.Equal(t, express.ID, *order.ShippingMethodID)
	assert.Nil(t, order.PaymentMethodID)
}

func TestCreateOrderChargesSelectedPaymentMethod(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	card := f.store.AddPaymentMethod(models.PaymentMethod{
		ShopID: f.shop.ID, Name: "Card", Enabled: true, Price: decimalFromString(t, "1.25"),
	})
	basket := f.newBasket(t)

	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID)})
	require.NoError(t, err)
	_, err = f.baskets.SetPaymentMethod(f.ctx, basket.UUID, card.ID)
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(f.ctx, basket.UUID, "")
	require.NoError(t, err)
	decimalEqual(t, "11.75", order.TaxfulTotalPrice)
	assert.Nil(t, order.ShippingMethodID)
	require.NotNil(t, order.PaymentMethodID)
	assert.Equal(t, card.ID, *order.PaymentMethodID)
}

func TestCreateOrderReservationFailureLeavesBasketOpen(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	basket := f.newBasket(t)

	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID), Quantity: intPtr(5)})
	require.NoError(t, err)

	// another basket takes the stock first
	f.store.SetInventory(f.stocked.ID, 1, 4)

	_, err = f.orders.CreateOrder(f.ctx, basket.UUID, "")
	e := requireServiceError(t, err, KindInvalid)
	require.NotEmpty(t, e.Errors)
	assert.Contains(t, e.Errors[0], MsgInsufficientStock)

	view, err := f.baskets.Get(f.ctx, basket.UUID)
	require.NoError(t, err)
	assert.False(t, view.Finished)
	assert.Empty(t, f.publisher.orderCreated())
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	basket := f.newBasket(t)
	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	require.NoError(t, err)

	first, err := f.orders.CreateOrder(f.ctx, basket.UUID, "checkout-1")
	require.NoError(t, err)

	second, err := f.orders.CreateOrder(f.ctx, basket.UUID, "checkout-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.publisher.orderCreated(), 1)

	shopID, key, err := ParseBasketID(basket.UUID)
	require.NoError(t, err)
	stored, ok, err := f.locker.GetIdempotencyKey(f.ctx, idempotencyScope(shopID, key, "checkout-1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(first.ID, 10), stored)
}

func TestIdempotencyKeyIsScopedToBasket(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()

	first := f.newBasket(t)
	_, err := f.baskets.AddItem(f.ctx, first.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	require.NoError(t, err)
	second := f.newBasket(t)
	_, err = f.baskets.AddItem(f.ctx, second.UUID, AddItemRequest{ShopProductID: int64Ptr(f.shopProduct.ID)})
	require.NoError(t, err)

	firstOrder, err := f.orders.CreateOrder(f.ctx, first.UUID, "checkout-1")
	require.NoError(t, err)
	secondOrder, err := f.orders.CreateOrder(f.ctx, second.UUID, "checkout-1")
	require.NoError(t, err)

	assert.NotEqual(t, firstOrder.ID, secondOrder.ID)
	assert.Equal(t, second.Key, secondOrder.BasketKey)
	assert.Len(t, f.publisher.orderCreated(), 2)

	view, err := f.baskets.Get(f.ctx, second.UUID)
	require.NoError(t, err)
	assert.True(t, view.Finished)
}

func TestCreateOrderRegeneratesTakenReference(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	f.store.AddOrder(models.Order{ShopID: f.shop.ID, ReferenceNumber: "taken"}, nil)

	refs := []string{"taken", "taken", "fresh"}
	calls := 0
	f.orders.newReference = func(int64, time.Time) string {
		ref := refs[calls]
		calls++
		return ref
	}

	basket := f.newBasket(t)
	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID), Quantity: intPtr(2)})
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(f.ctx, basket.UUID, "")
	require.NoError(t, err)
	assert.Equal(t, "fresh", order.ReferenceNumber)
	assert.Equal(t, 3, calls)

	inv, err := f.store.GetInventory(f.ctx, f.stocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Reserved)
}

func TestCreateOrderGivesUpOnPersistentReferenceCollision(t *testing.T) {
	f := newFixture(t, Options{})
	f.addMethods()
	f.store.AddOrder(models.Order{ShopID: f.shop.ID, ReferenceNumber: "taken"}, nil)
	f.orders.newReference = func(int64, time.Time) string { return "taken" }

	basket := f.newBasket(t)
	_, err := f.baskets.AddItem(f.ctx, basket.UUID, AddItemRequest{ShopProductID: int64Ptr(f.stockedSP.ID), Quantity: intPtr(2)})
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(f.ctx, basket.UUID, "")
	require.Error(t, err)

	// reservations are released and the basket stays open
	inv, err := f.store.GetInventory(f.ctx, f.stocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, inv.Available)
	assert.Equal(t, 0, inv.Reserved)

	view, err := f.baskets.Get(f.ctx, basket.UUID)
	require.NoError(t, err)
	assert.False(t, view.Finished)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.orders.GetOrder(f.ctx, 404)
	requireServiceError(t, err, KindNotFound)

	order := f.store.AddOrder(models.Order{ShopID: f.shop.ID, ReferenceNumber: "R1"}, nil)
	view, err := f.orders.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "R1", view.ReferenceNumber)
	assert.NotNil(t, view.Lines)
}

func TestReferenceNumber(t *testing.T) {
	ref := generateReferenceNumber(3, mustTime(t, "2024-05-17T10:00:00Z"))

	require.Len(t, ref, 1+6+6+1)
	assert.Equal(t, "3240517", ref[:7])
	check, err := strconv.Atoi(ref[len(ref)-1:])
	require.NoError(t, err)
	assert.Equal(t, luhnCheckDigit(ref[:len(ref)-1]), check)
}

func TestLuhnCheckDigit(t *testing.T) {
	assert.Equal(t, 3, luhnCheckDigit("7992739871"))
	assert.Equal(t, 0, luhnCheckDigit("0"))
}
