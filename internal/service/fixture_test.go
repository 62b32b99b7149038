package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"basket-service/internal/broker"
	"basket-service/internal/models"
	"basket-service/internal/store"
	"basket-service/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) orderCreated() []*models.OrderCreatedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OrderCreatedEvent
	for _, e := range r.events {
		if ev, ok := e.(*models.OrderCreatedEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingPublisher) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		var t string
		switch ev := e.(type) {
		case *models.BasketCreatedEvent:
			t = ev.EventType
		case *models.BasketUpdatedEvent:
			t = ev.EventType
		case *models.OrderCreatedEvent:
			t = ev.EventType
		case *models.OrderStockCommittedEvent:
			t = ev.EventType
		}
		if t == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	ctx         context.Context
	store       *store.MemoryStore
	locker      *LocalLocker
	publisher   *recordingPublisher
	inventory   *InventoryClient
	baskets     *BasketService
	orders      *OrderConverter
	fulfillment *FulfillmentHandler

	shop      models.Shop
	otherShop models.Shop

	product     models.Product
	shopProduct models.ShopProduct

	stocked     models.Product
	stockedSP   models.ShopProduct
	otherShopSP models.ShopProduct
}

const requesterID int64 = 42

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	util.SetLogger(zap.NewNop())

	ms := store.NewMemoryStore()
	f := &fixture{
		ctx:       WithRequester(context.Background(), requesterID),
		store:     ms,
		locker:    NewLocalLocker(),
		publisher: &recordingPublisher{},
	}

	f.shop = ms.AddShop(models.Shop{Identifier: "default", Name: "Default", Currency: "EUR", Enabled: true})
	f.otherShop = ms.AddShop(models.Shop{Identifier: "second", Name: "Second", Currency: "EUR", Enabled: true})

	f.product = ms.AddProduct(models.Product{SKU: "sku-1", Name: "Mug"})
	f.shopProduct = ms.AddShopProduct(models.ShopProduct{
		ShopID: f.shop.ID, ProductID: f.product.ID, DefaultPrice: decimal.NewFromInt(1), Orderable: true,
	})
	f.otherShopSP = ms.AddShopProduct(models.ShopProduct{
		ShopID: f.otherShop.ID, ProductID: f.product.ID, DefaultPrice: decimal.NewFromInt(2), Orderable: true,
	})

	f.stocked = ms.AddProduct(models.Product{SKU: "sku-2", Name: "Kettle", StockBehavior: models.StockBehaviorStocked})
	f.stockedSP = ms.AddShopProduct(models.ShopProduct{
		ShopID: f.shop.ID, ProductID: f.stocked.ID, DefaultPrice: decimal.RequireFromString("10.50"), Orderable: true,
	})
	ms.SetInventory(f.stocked.ID, 5, 0)

	events := broker.NewEventPublisher(f.publisher)
	f.inventory = NewInventoryClient(ms, nil)
	f.baskets = NewBasketService(ms, f.inventory, f.locker, events, opts)
	f.orders = NewOrderConverter(f.baskets, ms, f.inventory, f.locker, events)
	f.fulfillment = NewFulfillmentHandler(ms, f.inventory, events)
	return f
}

func (f *fixture) addMethods() (models.ShippingMethod, models.PaymentMethod) {
	sm := f.store.AddShippingMethod(models.ShippingMethod{ShopID: f.shop.ID, Name: "Post", Enabled: true})
	pm := f.store.AddPaymentMethod(models.PaymentMethod{ShopID: f.shop.ID, Name: "Invoice", Enabled: true})
	return sm, pm
}

func (f *fixture) newBasket(t *testing.T) *BasketView {
	t.Helper()
	view, err := f.baskets.NewBasket(f.ctx, nil)
	require.NoError(t, err)
	return view
}

func (f *fixture) addCampaignCode(code string, percentage int64) {
	campaign := f.store.AddCampaign(models.Campaign{
		ShopID:             f.shop.ID,
		Name:               code,
		Active:             true,
		DiscountPercentage: decimal.NewNullDecimal(decimal.NewFromInt(percentage)),
	})
	f.store.AddCoupon(models.Coupon{Code: code, Active: true, CampaignID: &campaign.ID})
}

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }

func requireServiceError(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected service error, got %v", err)
	assert.Equal(t, kind, e.Kind)
	return e
}

func decimalEqual(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
