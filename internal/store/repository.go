package store

import (
	"context"
	"errors"

	"basket-service/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock is returned when a reservation exceeds available stock
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrBasketFinished is returned when a finished basket is written to
	ErrBasketFinished = errors.New("basket already finished")
	// ErrDuplicateReference is returned when an order reference number is already taken
	ErrDuplicateReference = errors.New("duplicate order reference number")
)

// Repository is the persistence contract of the basket service.
// Store (PostgreSQL) and MemoryStore implement it.
type Repository interface {
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	GetDefaultShop(ctx context.Context) (*models.Shop, error)

	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetShopProductByID(ctx context.Context, id int64) (*models.ShopProduct, error)
	GetShopProduct(ctx context.Context, shopID, productID int64) (*models.ShopProduct, error)

	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
	ReserveStockTx(ctx context.Context, productID int64, quantity int) error
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error

	GetAddress(ctx context.Context, id int64) (*models.Address, error)
	CreateAddress(ctx context.Context, addr *models.Address) error

	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)

	GetShippingMethod(ctx context.Context, id int64) (*models.ShippingMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error)
	ListShippingMethods(ctx context.Context, shopID int64) ([]models.ShippingMethod, error)
	ListPaymentMethods(ctx context.Context, shopID int64) ([]models.PaymentMethod, error)

	CreateBasket(ctx context.Context, basket *models.Basket) error
	GetBasket(ctx context.Context, key string) (*models.Basket, error)
	UpdateBasket(ctx context.Context, basket *models.Basket) error

	CreateOrderFromBasket(ctx context.Context, order *models.Order, lines []models.OrderLine, basket *models.Basket) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*MemoryStore)(nil)
)
