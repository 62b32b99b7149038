package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"basket-service/internal/models"
)

// MemoryStore is an in-process Repository used for local development and tests.
// Values are copied on the way in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu sync.RWMutex

	shops           map[int64]models.Shop
	products        map[int64]models.Product
	shopProducts    map[int64]models.ShopProduct
	inventory       map[int64]models.Inventory
	addresses       map[int64]models.Address
	coupons         map[int64]models.Coupon
	campaigns       map[int64]models.Campaign
	shippingMethods map[int64]models.ShippingMethod
	paymentMethods  map[int64]models.PaymentMethod
	baskets         map[string]models.Basket
	orders          map[int64]models.Order
	orderLines      map[int64][]models.OrderLine
	processedEvents map[string]string

	seq map[string]int64
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shops:           make(map[int64]models.Shop),
		products:        make(map[int64]models.Product),
		shopProducts:    make(map[int64]models.ShopProduct),
		inventory:       make(map[int64]models.Inventory),
		addresses:       make(map[int64]models.Address),
		coupons:         make(map[int64]models.Coupon),
		campaigns:       make(map[int64]models.Campaign),
		shippingMethods: make(map[int64]models.ShippingMethod),
		paymentMethods:  make(map[int64]models.PaymentMethod),
		baskets:         make(map[string]models.Basket),
		orders:          make(map[int64]models.Order),
		orderLines:      make(map[int64][]models.OrderLine),
		processedEvents: make(map[string]string),
		seq:             make(map[string]int64),
	}
}

// nextID assigns id when it is zero and keeps the sequence ahead of explicit ids.
// Callers must hold the write lock.
func (m *MemoryStore) nextID(table string, id int64) int64 {
	if id == 0 {
		m.seq[table]++
		return m.seq[table]
	}
	if id > m.seq[table] {
		m.seq[table] = id
	}
	return id
}

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// AddShop stores a shop and returns it with its assigned ID
func (m *MemoryStore) AddShop(shop models.Shop) models.Shop {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop.ID = m.nextID("shops", shop.ID)
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}
	m.shops[shop.ID] = shop
	return shop
}

// AddProduct stores a product and returns it with its assigned ID
func (m *MemoryStore) AddProduct(product models.Product) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.ID = m.nextID("products", product.ID)
	if product.StockBehavior == "" {
		product.StockBehavior = models.StockBehaviorUnstocked
	}
	m.products[product.ID] = product
	return product
}

// AddShopProduct stores a shop listing and returns it with its assigned ID
func (m *MemoryStore) AddShopProduct(sp models.ShopProduct) models.ShopProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp.ID = m.nextID("shop_products", sp.ID)
	m.shopProducts[sp.ID] = sp
	return sp
}

// SetInventory overwrites the stock counters of a product
func (m *MemoryStore) SetInventory(productID int64, available, reserved int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory[productID] = models.Inventory{
		ProductID: productID,
		Available: available,
		Reserved:  reserved,
		UpdatedAt: time.Now().UTC(),
	}
}

// AddCampaign stores a campaign and returns it with its assigned ID
func (m *MemoryStore) AddCampaign(c models.Campaign) models.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("campaigns", c.ID)
	m.campaigns[c.ID] = c
	return c
}

// AddCoupon stores a coupon and returns it with its assigned ID
func (m *MemoryStore) AddCoupon(c models.Coupon) models.Coupon {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("coupons", c.ID)
	m.coupons[c.ID] = c
	return c
}

// AddShippingMethod stores a shipping method and returns it with its assigned ID
func (m *MemoryStore) AddShippingMethod(sm models.ShippingMethod) models.ShippingMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm.ID = m.nextID("shipping_methods", sm.ID)
	m.shippingMethods[sm.ID] = sm
	return sm
}

// AddPaymentMethod stores a payment method and returns it with its assigned ID
func (m *MemoryStore) AddPaymentMethod(pm models.PaymentMethod) models.PaymentMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm.ID = m.nextID("payment_methods", pm.ID)
	m.paymentMethods[pm.ID] = pm
	return pm
}

// AddOrder stores an order with its lines, bypassing basket conversion
func (m *MemoryStore) AddOrder(order models.Order, lines []models.OrderLine) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertOrder(&order, lines)
	return order
}

func (m *MemoryStore) insertOrder(order *models.Order, lines []models.OrderLine) {
	order.ID = m.nextID("orders", order.ID)
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	stored := make([]models.OrderLine, len(lines))
	for i := range lines {
		lines[i].OrderID = order.ID
		lines[i].ID = m.nextID("order_lines", lines[i].ID)
		stored[i] = lines[i]
	}
	m.orders[order.ID] = *order
	m.orderLines[order.ID] = stored
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

// GetShop retrieves a shop by ID
func (m *MemoryStore) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shop, ok := m.shops[id]
	if !ok {
		return nil, notFound("shop %d", id)
	}
	return &shop, nil
}

// GetDefaultShop retrieves the enabled shop with the lowest ID
func (m *MemoryStore) GetDefaultShop(ctx context.Context) (*models.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *models.Shop
	for id := range m.shops {
		shop := m.shops[id]
		if !shop.Enabled {
			continue
		}
		if found == nil || shop.ID < found.ID {
			found = &shop
		}
	}
	if found == nil {
		return nil, notFound("default shop")
	}
	return found, nil
}

// GetProductByID retrieves a product by ID
func (m *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, notFound("product %d", id)
	}
	return &p, nil
}

// GetProducts retrieves all products ordered by ID
func (m *MemoryStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetShopProductByID retrieves a shop product by ID
func (m *MemoryStore) GetShopProductByID(ctx context.Context, id int64) (*models.ShopProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sp, ok := m.shopProducts[id]
	if !ok {
		return nil, notFound("shop product %d", id)
	}
	return &sp, nil
}

// GetShopProduct retrieves the listing of a product in a shop
func (m *MemoryStore) GetShopProduct(ctx context.Context, shopID, productID int64) (*models.ShopProduct, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sp := range m.shopProducts {
		if sp.ShopID == shopID && sp.ProductID == productID {
			return &sp, nil
		}
	}
	return nil, notFound("shop product for product %d in shop %d", productID, shopID)
}

// GetInventory retrieves inventory for a product
func (m *MemoryStore) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.inventory[productID]
	if !ok {
		return nil, notFound("inventory for product %d", productID)
	}
	return &inv, nil
}

// ReserveStockTx moves quantity from available to reserved
func (m *MemoryStore) ReserveStockTx(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[productID]
	if !ok {
		return notFound("inventory for product %d", productID)
	}
	if inv.Available < quantity {
		return fmt.Errorf("available=%d, requested=%d: %w", inv.Available, quantity, ErrInsufficientStock)
	}
	inv.Available -= quantity
	inv.Reserved += quantity
	inv.UpdatedAt = time.Now().UTC()
	m.inventory[productID] = inv
	return nil
}

// ReleaseStock moves quantity from reserved back to available
func (m *MemoryStore) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[productID]
	if !ok {
		return nil
	}
	inv.Available += quantity
	inv.Reserved -= quantity
	inv.UpdatedAt = time.Now().UTC()
	m.inventory[productID] = inv
	return nil
}

// CommitStock deducts quantity from reserved
func (m *MemoryStore) CommitStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.inventory[productID]
	if !ok {
		return nil
	}
	inv.Reserved -= quantity
	inv.UpdatedAt = time.Now().UTC()
	m.inventory[productID] = inv
	return nil
}

// GetAddress retrieves an address by ID
func (m *MemoryStore) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr, ok := m.addresses[id]
	if !ok {
		return nil, notFound("address %d", id)
	}
	return &addr, nil
}

// CreateAddress stores a new address and assigns its ID
func (m *MemoryStore) CreateAddress(ctx context.Context, addr *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr.ID = m.nextID("addresses", addr.ID)
	addr.CreatedAt = time.Now().UTC()
	m.addresses[addr.ID] = *addr
	return nil
}

// GetCouponByCode retrieves a coupon by its code, case-insensitively
func (m *MemoryStore) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.coupons {
		if strings.EqualFold(c.Code, code) {
			return &c, nil
		}
	}
	return nil, notFound("coupon %q", code)
}

// GetCampaign retrieves a campaign by ID
func (m *MemoryStore) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, notFound("campaign %d", id)
	}
	return &c, nil
}

// GetShippingMethod retrieves a shipping method by ID
func (m *MemoryStore) GetShippingMethod(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.shippingMethods[id]
	if !ok {
		return nil, notFound("shipping method %d", id)
	}
	return &sm, nil
}

// GetPaymentMethod retrieves a payment method by ID
func (m *MemoryStore) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pm, ok := m.paymentMethods[id]
	if !ok {
		return nil, notFound("payment method %d", id)
	}
	return &pm, nil
}

// ListShippingMethods retrieves the enabled shipping methods of a shop
func (m *MemoryStore) ListShippingMethods(ctx context.Context, shopID int64) ([]models.ShippingMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ShippingMethod
	for _, sm := range m.shippingMethods {
		if sm.ShopID == shopID && sm.Enabled {
			out = append(out, sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListPaymentMethods retrieves the enabled payment methods of a shop
func (m *MemoryStore) ListPaymentMethods(ctx context.Context, shopID int64) ([]models.PaymentMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PaymentMethod
	for _, pm := range m.paymentMethods {
		if pm.ShopID == shopID && pm.Enabled {
			out = append(out, pm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyBasket(b models.Basket) models.Basket {
	b.Data = b.Data.Clone()
	return b
}

// CreateBasket stores a new basket
func (m *MemoryStore) CreateBasket(ctx context.Context, basket *models.Basket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.baskets[basket.Key]; exists {
		return fmt.Errorf("basket %s already exists", basket.Key)
	}
	now := time.Now().UTC()
	basket.CreatedAt = now
	basket.UpdatedAt = now
	m.baskets[basket.Key] = copyBasket(*basket)
	return nil
}

// GetBasket retrieves a basket by key
func (m *MemoryStore) GetBasket(ctx context.Context, key string) (*models.Basket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.baskets[key]
	if !ok {
		return nil, notFound("basket %s", key)
	}
	b = copyBasket(b)
	return &b, nil
}

// UpdateBasket overwrites an unfinished basket
func (m *MemoryStore) UpdateBasket(ctx context.Context, basket *models.Basket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.baskets[basket.Key]
	if !ok {
		return notFound("basket %s", basket.Key)
	}
	if current.Finished {
		return fmt.Errorf("basket %s: %w", basket.Key, ErrBasketFinished)
	}
	basket.UpdatedAt = time.Now().UTC()
	basket.CreatedAt = current.CreatedAt
	m.baskets[basket.Key] = copyBasket(*basket)
	return nil
}

// CreateOrderFromBasket stores the order and its lines and finishes the basket atomically
func (m *MemoryStore) CreateOrderFromBasket(ctx context.Context, order *models.Order, lines []models.OrderLine, basket *models.Basket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.baskets[basket.Key]
	if !ok {
		return notFound("basket %s", basket.Key)
	}
	if current.Finished {
		return fmt.Errorf("basket %s: %w", basket.Key, ErrBasketFinished)
	}
	for _, existing := range m.orders {
		if existing.ReferenceNumber == order.ReferenceNumber {
			return fmt.Errorf("reference %s: %w", order.ReferenceNumber, ErrDuplicateReference)
		}
	}
	m.insertOrder(order, lines)
	current.Finished = true
	current.UpdatedAt = time.Now().UTC()
	m.baskets[basket.Key] = current
	basket.Finished = true
	return nil
}

// GetOrderByID retrieves an order by ID
func (m *MemoryStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, notFound("order %d", id)
	}
	return &o, nil
}

// GetOrderLines retrieves all lines of an order
func (m *MemoryStore) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines := m.orderLines[orderID]
	out := make([]models.OrderLine, len(lines))
	copy(out, lines)
	return out, nil
}

// IsEventProcessed checks if an event has been processed
func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processedEvents[eventID]
	return ok, nil
}

// MarkEventProcessed marks an event as processed
func (m *MemoryStore) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processedEvents[eventID] = eventType
	return nil
}
