package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"basket-service/internal/broker"
	"basket-service/internal/models"
	"basket-service/internal/store"
	"basket-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BasketService handles basket business logic
type BasketService struct {
	store          store.Repository
	inventory      *InventoryClient
	locker         Locker
	eventPublisher *broker.EventPublisher
	multipleShops  bool
	lockTTL        time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// Options tunes BasketService behaviour
type Options struct {
	MultipleShops bool
	LockTTL       time.Duration
}

// NewBasketService creates a new basket service
func NewBasketService(
	store store.Repository,
	inventory *InventoryClient,
	locker Locker,
	eventPublisher *broker.EventPublisher,
	opts Options,
) *BasketService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	return &BasketService{
		store:          store,
		inventory:      inventory,
		locker:         locker,
		eventPublisher: eventPublisher,
		multipleShops:  opts.MultipleShops,
		lockTTL:        opts.LockTTL,
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// LineView is a basket line as returned to clients
type LineView struct {
	LineID      string          `json:"line_id"`
	ShopProduct int64           `json:"shop_product"`
	Product     int64           `json:"product"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// BasketView is the full basket representation returned by every basket operation
type BasketView struct {
	UUID                      string                 `json:"uuid"`
	Key                       string                 `json:"key"`
	Shop                      int64                  `json:"shop"`
	Creator                   *int64                 `json:"creator"`
	Customer                  *int64                 `json:"customer"`
	Items                     []LineView             `json:"items"`
	Codes                     []string               `json:"codes"`
	ShippingAddress           *models.Address        `json:"shipping_address"`
	BillingAddress            *models.Address        `json:"billing_address"`
	ShippingMethod            *models.ShippingMethod `json:"shipping_method"`
	PaymentMethod             *models.PaymentMethod  `json:"payment_method"`
	TotalPriceBeforeDiscounts decimal.Decimal        `json:"total_price_before_discounts"`
	DiscountAmount            decimal.Decimal        `json:"discount_amount"`
	TotalPrice                decimal.Decimal        `json:"total_price"`
	ProductCount              int                    `json:"product_count"`
	Finished                  bool                   `json:"finished"`
	ValidationErrors          []string               `json:"validation_errors"`
}

// AddItemRequest references the product to add either directly by shop
// product or by product (and optionally shop)
type AddItemRequest struct {
	ShopProductID *int64
	ProductID     *int64
	ShopID        *int64
	Quantity      *int
}

// AddressRequest selects an existing address by ID or describes a new one
type AddressRequest struct {
	ID         *int64
	Prefix     string
	Name       string
	Street     string
	PostalCode string
	City       string
	Country    string
}

// NewBasket opens an empty basket in the given shop, or in the default shop
// when shopID is nil and the service runs in single-shop mode
func (s *BasketService) NewBasket(ctx context.Context, shopID *int64) (*BasketView, error) {
	ctx, span := util.StartSpan(ctx, "BasketService.NewBasket")
	defer span.End()

	shop, err := s.resolveShop(ctx, shopID)
	if err != nil {
		util.RecordError(span, err)
		util.BasketOperationsFailedTotal.WithLabelValues("new", reason(err)).Inc()
		return nil, err
	}

	requester := RequesterFrom(ctx)
	basket := &models.Basket{
		Key:        newBasketKey(),
		ShopID:     shop.ID,
		CreatorID:  requester,
		CustomerID: requester,
	}

	if err := s.store.CreateBasket(ctx, basket); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create basket: %w", err)
	}

	util.BasketsCreatedTotal.WithLabelValues(strconv.FormatInt(shop.ID, 10)).Inc()
	s.logger.Info("Basket created",
		zap.String("basket", basket.ID()),
		zap.Int64("shop_id", shop.ID))

	event := &models.BasketCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBasketCreated,
			Timestamp: s.now(),
		},
		BasketID:  basket.ID(),
		ShopID:    basket.ShopID,
		CreatorID: basket.CreatorID,
	}
	if err := s.eventPublisher.PublishBasketCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BasketCreated event", zap.Error(err))
	}

	return s.view(ctx, basket)
}

func (s *BasketService) resolveShop(ctx context.Context, shopID *int64) (*models.Shop, error) {
	if shopID == nil {
		if s.multipleShops {
			return nil, invalidField("shop", MsgFieldRequired)
		}
		shop, err := s.store.GetDefaultShop(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("No default shop configured")
		}
		return shop, err
	}

	shop, err := s.store.GetShop(ctx, *shopID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !shop.Enabled) {
		return nil, notFound("Shop %d does not exist", *shopID)
	}
	return shop, err
}

// Get returns the current state of a basket
func (s *BasketService) Get(ctx context.Context, id string) (*BasketView, error) {
	ctx, span := util.StartSpan(ctx, "BasketService.Get", attribute.String("basket.id", id))
	defer span.End()

	basket, err := s.loadBasket(ctx, id)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return s.view(ctx, basket)
}

// AddItem adds a product to the basket, merging with an existing line of the same shop product
func (s *BasketService) AddItem(ctx context.Context, id string, req AddItemRequest) (*BasketView, error) {
	return s.mutate(ctx, id, "add", func(ctx context.Context, basket *models.Basket) error {
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
		if quantity < 1 {
			return invalidField("quantity", "Ensure this value is greater than or equal to 1.")
		}

		sp, product, err := s.resolveShopProduct(ctx, basket, req)
		if err != nil {
			return err
		}
		return s.addLine(ctx, basket, sp, product, quantity)
	})
}

// AddFromOrder replaces the basket lines with the lines of a previous order
func (s *BasketService) AddFromOrder(ctx context.Context, id string, orderID int64) (*BasketView, error) {
	return s.mutate(ctx, id, "add_from_order", func(ctx context.Context, basket *models.Basket) error {
		order, err := s.store.GetOrderByID(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return objectDoesNotExist("order", orderID)
		}
		if err != nil {
			return err
		}
		if order.ShopID != basket.ShopID {
			return invalidField("order", MsgDifferentShop)
		}
		if order.CustomerID != nil {
			requester := RequesterFrom(ctx)
			if requester == nil || *requester != *order.CustomerID {
				return invalidField("order", "Order belongs to a different customer")
			}
		}

		lines, err := s.store.GetOrderLines(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to load order lines: %w", err)
		}

		basket.Data.Lines = nil
		for _, line := range lines {
			if line.Quantity <= 0 {
				continue
			}
			sp, err := s.store.GetShopProduct(ctx, basket.ShopID, line.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return invalidField("order", fmt.Sprintf("Product %d is no longer available", line.ProductID))
			}
			if err != nil {
				return err
			}
			product, err := s.store.GetProductByID(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
			}
			if err := s.addLine(ctx, basket, sp, product, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateQuantity sets the quantity of a line; zero removes it
func (s *BasketService) UpdateQuantity(ctx context.Context, id, lineID string, quantity int) (*BasketView, error) {
	return s.mutate(ctx, id, "update_quantity", func(ctx context.Context, basket *models.Basket) error {
		if quantity < 0 {
			return invalidField("quantity", "Ensure this value is greater than or equal to 0.")
		}
		idx, err := lineIndex(basket, lineID)
		if err != nil {
			return err
		}

		if quantity == 0 {
			basket.Data.Lines = append(basket.Data.Lines[:idx], basket.Data.Lines[idx+1:]...)
			return nil
		}
		if err := checkQuantityBound(basket.Data.Lines, idx, quantity); err != nil {
			return err
		}

		product, err := s.store.GetProductByID(ctx, basket.Data.Lines[idx].ProductID)
		if err != nil {
			return fmt.Errorf("failed to load product: %w", err)
		}
		if err := s.checkStock(ctx, product, quantity); err != nil {
			return err
		}
		basket.Data.Lines[idx].Quantity = quantity
		return nil
	})
}

// RemoveLine deletes a line from the basket
func (s *BasketService) RemoveLine(ctx context.Context, id, lineID string) (*BasketView, error) {
	return s.mutate(ctx, id, "remove", func(ctx context.Context, basket *models.Basket) error {
		idx, err := lineIndex(basket, lineID)
		if err != nil {
			return err
		}
		basket.Data.Lines = append(basket.Data.Lines[:idx], basket.Data.Lines[idx+1:]...)
		return nil
	})
}

// Clear removes every line from the basket
func (s *BasketService) Clear(ctx context.Context, id string) (*BasketView, error) {
	return s.mutate(ctx, id, "clear", func(ctx context.Context, basket *models.Basket) error {
		basket.Data.Lines = nil
		return nil
	})
}

// AddCode applies a coupon code; applying a code twice is a no-op
func (s *BasketService) AddCode(ctx context.Context, id, code string) (*BasketView, error) {
	applied := false
	view, err := s.mutate(ctx, id, "add_code", func(ctx context.Context, basket *models.Basket) error {
		code = strings.TrimSpace(code)
		if code == "" {
			return invalidField("code", MsgFieldRequired)
		}
		coupon, _, err := s.resolveCoupon(ctx, basket.ShopID, code)
		if err != nil {
			return err
		}
		if codeIndex(basket.Data.Codes, coupon.Code) >= 0 {
			return nil
		}
		basket.Data.Codes = append(basket.Data.Codes, coupon.Code)
		applied = true
		return nil
	})
	if err == nil && applied {
		util.CodesAppliedTotal.Inc()
	}
	return view, err
}

// RemoveCode withdraws a previously applied coupon code
func (s *BasketService) RemoveCode(ctx context.Context, id, code string) (*BasketView, error) {
	return s.mutate(ctx, id, "remove_code", func(ctx context.Context, basket *models.Basket) error {
		code = strings.TrimSpace(code)
		if code == "" {
			return invalidField("code", MsgFieldRequired)
		}
		idx := codeIndex(basket.Data.Codes, code)
		if idx < 0 {
			return invalidField("code", fmt.Sprintf("Code %q is not applied to this basket", code))
		}
		basket.Data.Codes = append(basket.Data.Codes[:idx], basket.Data.Codes[idx+1:]...)
		return nil
	})
}

// SetShippingAddress attaches an existing or new address as the shipping address
func (s *BasketService) SetShippingAddress(ctx context.Context, id string, req AddressRequest) (*BasketView, error) {
	return s.mutate(ctx, id, "set_shipping_address", func(ctx context.Context, basket *models.Basket) error {
		addr, err := s.resolveAddress(ctx, req)
		if err != nil {
			return err
		}
		basket.ShippingAddrID = &addr.ID
		return nil
	})
}

// SetBillingAddress attaches an existing or new address as the billing address
func (s *BasketService) SetBillingAddress(ctx context.Context, id string, req AddressRequest) (*BasketView, error) {
	return s.mutate(ctx, id, "set_billing_address", func(ctx context.Context, basket *models.Basket) error {
		addr, err := s.resolveAddress(ctx, req)
		if err != nil {
			return err
		}
		basket.BillingAddrID = &addr.ID
		return nil
	})
}

// SetShippingMethod selects an enabled shipping method of the basket's shop
func (s *BasketService) SetShippingMethod(ctx context.Context, id string, methodID int64) (*BasketView, error) {
	return s.mutate(ctx, id, "set_shipping_method", func(ctx context.Context, basket *models.Basket) error {
		m, err := s.store.GetShippingMethod(ctx, methodID)
		if errors.Is(err, store.ErrNotFound) {
			return objectDoesNotExist("id", methodID)
		}
		if err != nil {
			return err
		}
		if m.ShopID != basket.ShopID {
			return invalidField("id", MsgDifferentShop)
		}
		if !m.Enabled {
			return invalidField("id", fmt.Sprintf("Shipping method %d is not available", methodID))
		}
		basket.ShippingMethodID = &m.ID
		return nil
	})
}

// SetPaymentMethod selects an enabled payment method of the basket's shop
func (s *BasketService) SetPaymentMethod(ctx context.Context, id string, methodID int64) (*BasketView, error) {
	return s.mutate(ctx, id, "set_payment_method", func(ctx context.Context, basket *models.Basket) error {
		m, err := s.store.GetPaymentMethod(ctx, methodID)
		if errors.Is(err, store.ErrNotFound) {
			return objectDoesNotExist("id", methodID)
		}
		if err != nil {
			return err
		}
		if m.ShopID != basket.ShopID {
			return invalidField("id", MsgDifferentShop)
		}
		if !m.Enabled {
			return invalidField("id", fmt.Sprintf("Payment method %d is not available", methodID))
		}
		basket.PaymentMethodID = &m.ID
		return nil
	})
}

// mutate runs fn against a locked, unfinished basket and persists the result.
// When fn fails nothing is written.
func (s *BasketService) mutate(
	ctx context.Context,
	id, op string,
	fn func(context.Context, *models.Basket) error,
) (*BasketView, error) {
	ctx, span := util.StartSpan(ctx, "BasketService."+op, attribute.String("basket.id", id))
	defer span.End()

	view, err := s.mutateLocked(ctx, id, op, fn)
	if err != nil {
		util.RecordError(span, err)
		util.BasketOperationsFailedTotal.WithLabelValues(op, reason(err)).Inc()
		s.logger.Debug("Basket operation rejected",
			zap.String("basket", id),
			zap.String("operation", op),
			zap.Error(err))
		return nil, err
	}

	util.BasketOperationsTotal.WithLabelValues(op).Inc()
	return view, nil
}

func (s *BasketService) mutateLocked(
	ctx context.Context,
	id, op string,
	fn func(context.Context, *models.Basket) error,
) (*BasketView, error) {
	if _, _, err := ParseBasketID(id); err != nil {
		return nil, malformedID(id)
	}

	unlock, err := s.lockBasket(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	basket, err := s.loadBasket(ctx, id)
	if err != nil {
		return nil, err
	}
	if basket.Finished {
		return nil, invalid(MsgBasketFinished)
	}

	if err := fn(ctx, basket); err != nil {
		return nil, err
	}
	basket.ProductCount = productCount(basket.Data.Lines)

	if err := s.store.UpdateBasket(ctx, basket); err != nil {
		if errors.Is(err, store.ErrBasketFinished) {
			return nil, invalid(MsgBasketFinished)
		}
		return nil, fmt.Errorf("failed to update basket: %w", err)
	}

	view, err := s.view(ctx, basket)
	if err != nil {
		return nil, err
	}

	event := &models.BasketUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBasketUpdated,
			Timestamp: s.now(),
		},
		BasketID:     basket.ID(),
		ShopID:       basket.ShopID,
		Operation:    op,
		ProductCount: basket.ProductCount,
		TotalPrice:   view.TotalPrice,
	}
	if err := s.eventPublisher.PublishBasketUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BasketUpdated event", zap.Error(err))
	}

	return view, nil
}

// lockBasket takes the per-basket lock and returns its release func
func (s *BasketService) lockBasket(ctx context.Context, id string) (func(), error) {
	key := "basket:" + id
	token, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire basket lock: %w", err)
	}
	if !ok {
		util.BasketLockContentionTotal.Inc()
		return nil, &Error{Kind: KindConflict, Message: MsgBasketLocked}
	}

	return func() {
		if err := s.locker.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Error("Failed to release basket lock",
				zap.String("basket", id),
				zap.Error(err))
		}
	}, nil
}

func malformedID(id string) *Error {
	return invalid("Malformed basket id %q", id)
}

// loadBasket resolves an external basket identifier
func (s *BasketService) loadBasket(ctx context.Context, id string) (*models.Basket, error) {
	shopID, key, err := ParseBasketID(id)
	if err != nil {
		return nil, malformedID(id)
	}

	basket, err := s.store.GetBasket(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Basket %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load basket: %w", err)
	}
	if basket.ShopID != shopID {
		return nil, invalid("Basket %s belongs to a different shop", id)
	}
	return basket, nil
}

func (s *BasketService) resolveShopProduct(ctx context.Context, basket *models.Basket, req AddItemRequest) (*models.ShopProduct, *models.Product, error) {
	var sp *models.ShopProduct

	switch {
	case req.ShopProductID != nil:
		found, err := s.store.GetShopProductByID(ctx, *req.ShopProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, objectDoesNotExist("shop_product", *req.ShopProductID)
		}
		if err != nil {
			return nil, nil, err
		}
		if found.ShopID != basket.ShopID {
			return nil, nil, invalidField("shop_product", MsgDifferentShop)
		}
		sp = found

	case req.ProductID != nil:
		if _, err := s.store.GetProductByID(ctx, *req.ProductID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, objectDoesNotExist("product", *req.ProductID)
			}
			return nil, nil, err
		}

		shopID := basket.ShopID
		if req.ShopID != nil {
			if _, err := s.store.GetShop(ctx, *req.ShopID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, objectDoesNotExist("shop", *req.ShopID)
				}
				return nil, nil, err
			}
			shopID = *req.ShopID
		}
		if shopID != basket.ShopID {
			return nil, nil, invalidField("product", MsgDifferentShop)
		}

		found, err := s.store.GetShopProduct(ctx, shopID, *req.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, invalidField("product",
				fmt.Sprintf("Product %d is not available in shop %d", *req.ProductID, shopID))
		}
		if err != nil {
			return nil, nil, err
		}
		sp = found

	default:
		return nil, nil, invalidField("product", MsgFieldRequired)
	}

	product, err := s.store.GetProductByID(ctx, sp.ProductID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load product %d: %w", sp.ProductID, err)
	}
	return sp, product, nil
}

// addLine merges quantity into the line of the shop product or appends a new line
func (s *BasketService) addLine(ctx context.Context, basket *models.Basket, sp *models.ShopProduct, product *models.Product, quantity int) error {
	if !sp.Orderable {
		return invalidField("product", fmt.Sprintf("Product %d is not orderable", product.ID))
	}

	if quantity > MaxQuantity {
		return quantityTooLarge()
	}
	idx := findShopProductLine(basket.Data.Lines, sp.ID)
	total := quantity
	if idx >= 0 {
		total += basket.Data.Lines[idx].Quantity
	}
	if err := checkQuantityBound(basket.Data.Lines, idx, total); err != nil {
		return err
	}
	if err := s.checkStock(ctx, product, total); err != nil {
		return err
	}

	if idx >= 0 {
		basket.Data.Lines[idx].Quantity = total
		basket.Data.Lines[idx].UnitPrice = sp.DefaultPrice
		return nil
	}

	basket.Data.Lines = append(basket.Data.Lines, models.BasketLine{
		LineID:        uuid.New().String(),
		ShopProductID: sp.ID,
		ProductID:     product.ID,
		Quantity:      quantity,
		UnitPrice:     sp.DefaultPrice,
	})
	return nil
}

func (s *BasketService) checkStock(ctx context.Context, product *models.Product, quantity int) error {
	ok, err := s.inventory.CheckAvailable(ctx, product, quantity)
	if err != nil {
		return fmt.Errorf("failed to check stock: %w", err)
	}
	if !ok {
		return invalidField("quantity", MsgInsufficientStock)
	}
	return nil
}

func lineIndex(basket *models.Basket, lineID string) (int, error) {
	if lineID == "" {
		return -1, invalidField("line_id", MsgFieldRequired)
	}
	idx := findLine(basket.Data.Lines, lineID)
	if idx < 0 {
		return -1, invalidField("line_id", fmt.Sprintf("Line %q not found", lineID))
	}
	return idx, nil
}

func codeIndex(codes []string, code string) int {
	for i, c := range codes {
		if strings.EqualFold(c, code) {
			return i
		}
	}
	return -1
}

// resolveCoupon returns the coupon and campaign behind a code usable in shopID
func (s *BasketService) resolveCoupon(ctx context.Context, shopID int64, code string) (*models.Coupon, *models.Campaign, error) {
	coupon, err := s.store.GetCouponByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, invalidField("code", MsgInvalidCode)
	}
	if err != nil {
		return nil, nil, err
	}
	if !coupon.Active || coupon.CampaignID == nil {
		return nil, nil, invalidField("code", MsgInvalidCode)
	}

	campaign, err := s.store.GetCampaign(ctx, *coupon.CampaignID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, invalidField("code", MsgInvalidCode)
	}
	if err != nil {
		return nil, nil, err
	}
	if campaign.ShopID != shopID || !campaign.IsAvailable(s.now()) {
		return nil, nil, invalidField("code", MsgInvalidCode)
	}
	return coupon, campaign, nil
}

// campaigns returns the campaigns of the basket's codes that are still usable
func (s *BasketService) campaigns(ctx context.Context, basket *models.Basket) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, code := range basket.Data.Codes {
		_, campaign, err := s.resolveCoupon(ctx, basket.ShopID, code)
		if err != nil {
			if _, ok := AsError(err); ok {
				continue
			}
			return nil, err
		}
		out = append(out, *campaign)
	}
	return out, nil
}

func (s *BasketService) resolveAddress(ctx context.Context, req AddressRequest) (*models.Address, error) {
	if req.ID != nil {
		addr, err := s.store.GetAddress(ctx, *req.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, objectDoesNotExist("id", *req.ID)
		}
		return addr, err
	}

	addr := &models.Address{
		Prefix:     strings.TrimSpace(req.Prefix),
		Name:       strings.TrimSpace(req.Name),
		Street:     strings.TrimSpace(req.Street),
		PostalCode: strings.TrimSpace(req.PostalCode),
		City:       strings.TrimSpace(req.City),
		Country:    strings.ToUpper(strings.TrimSpace(req.Country)),
	}

	fields := make(map[string]string)
	required := []struct{ name, value string }{
		{"name", addr.Name},
		{"street", addr.Street},
		{"city", addr.City},
		{"country", addr.Country},
	}
	for _, f := range required {
		if f.value == "" {
			fields[f.name] = MsgFieldRequired
		}
	}
	if addr.Country != "" && !isCountryCode(addr.Country) {
		fields["country"] = fmt.Sprintf("%q is not a valid choice.", req.Country)
	}
	if len(fields) > 0 {
		return nil, &Error{Kind: KindInvalid, Message: "Invalid address", Fields: fields}
	}

	if err := s.store.CreateAddress(ctx, addr); err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return addr, nil
}

func isCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// validationErrors lists the reasons the basket cannot be ordered right now
func (s *BasketService) validationErrors(ctx context.Context, basket *models.Basket) ([]string, error) {
	errs := []string{}

	for _, line := range basket.Data.Lines {
		product, err := s.store.GetProductByID(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			errs = append(errs, fmt.Sprintf("Product %d no longer exists", line.ProductID))
			continue
		}
		if err != nil {
			return nil, err
		}
		ok, err := s.inventory.CheckAvailable(ctx, product, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to check stock: %w", err)
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: %s", product.Name, MsgInsufficientStock))
		}
	}

	if basket.ShippingMethodID != nil {
		m, err := s.store.GetShippingMethod(ctx, *basket.ShippingMethodID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err != nil || !m.Enabled || m.ShopID != basket.ShopID {
			errs = append(errs, "Shipping method is not available")
		}
	} else {
		methods, err := s.store.ListShippingMethods(ctx, basket.ShopID)
		if err != nil {
			return nil, err
		}
		if len(methods) == 0 {
			errs = append(errs, "No shipping method available")
		}
	}

	if basket.PaymentMethodID != nil {
		m, err := s.store.GetPaymentMethod(ctx, *basket.PaymentMethodID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err != nil || !m.Enabled || m.ShopID != basket.ShopID {
			errs = append(errs, "Payment method is not available")
		}
	} else {
		methods, err := s.store.ListPaymentMethods(ctx, basket.ShopID)
		if err != nil {
			return nil, err
		}
		if len(methods) == 0 {
			errs = append(errs, "No payment method available")
		}
	}

	return errs, nil
}

// view renders the client representation with totals and validation errors
func (s *BasketService) view(ctx context.Context, basket *models.Basket) (*BasketView, error) {
	campaigns, err := s.campaigns(ctx, basket)
	if err != nil {
		return nil, err
	}
	totals := CalculateTotals(basket.Data.Lines, campaigns)

	items := make([]LineView, 0, len(basket.Data.Lines))
	for _, line := range basket.Data.Lines {
		items = append(items, LineView{
			LineID:      line.LineID,
			ShopProduct: line.ShopProductID,
			Product:     line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  lineTotal(line),
		})
	}

	v := &BasketView{
		UUID:                      basket.ID(),
		Key:                       basket.Key,
		Shop:                      basket.ShopID,
		Creator:                   basket.CreatorID,
		Customer:                  basket.CustomerID,
		Items:                     items,
		Codes:                     append([]string{}, basket.Data.Codes...),
		TotalPriceBeforeDiscounts: totals.Subtotal,
		DiscountAmount:            totals.Discount,
		TotalPrice:                totals.Total,
		ProductCount:              productCount(basket.Data.Lines),
		Finished:                  basket.Finished,
	}

	if v.ShippingAddress, err = s.optionalAddress(ctx, basket.ShippingAddrID); err != nil {
		return nil, err
	}
	if v.BillingAddress, err = s.optionalAddress(ctx, basket.BillingAddrID); err != nil {
		return nil, err
	}
	if basket.ShippingMethodID != nil {
		m, err := s.store.GetShippingMethod(ctx, *basket.ShippingMethodID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		v.ShippingMethod = m
	}
	if basket.PaymentMethodID != nil {
		m, err := s.store.GetPaymentMethod(ctx, *basket.PaymentMethodID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		v.PaymentMethod = m
	}

	if basket.Finished {
		v.ValidationErrors = []string{}
		return v, nil
	}
	if v.ValidationErrors, err = s.validationErrors(ctx, basket); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *BasketService) optionalAddress(ctx context.Context, id *int64) (*models.Address, error) {
	if id == nil {
		return nil, nil
	}
	addr, err := s.store.GetAddress(ctx, *id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return addr, err
}
