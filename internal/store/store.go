package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"basket-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// getOne runs a single-row query and maps sql.ErrNoRows to ErrNotFound
func (s *Store) getOne(ctx context.Context, dest interface{}, what string, query string, args ...interface{}) error {
	err := s.db.GetContext(ctx, dest, query, args...)
	if isNoRows(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

// GetShop retrieves a shop by ID
func (s *Store) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	if err := s.getOne(ctx, &shop, fmt.Sprintf("shop %d", id), "SELECT * FROM shops WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetDefaultShop retrieves the first enabled shop
func (s *Store) GetDefaultShop(ctx context.Context) (*models.Shop, error) {
	var shop models.Shop
	if err := s.getOne(ctx, &shop, "default shop",
		"SELECT * FROM shops WHERE enabled ORDER BY id LIMIT 1"); err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.getOne(ctx, &product, fmt.Sprintf("product %d", id), "SELECT * FROM products WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetShopProductByID retrieves a shop product by ID
func (s *Store) GetShopProductByID(ctx context.Context, id int64) (*models.ShopProduct, error) {
	var sp models.ShopProduct
	if err := s.getOne(ctx, &sp, fmt.Sprintf("shop product %d", id),
		"SELECT * FROM shop_products WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &sp, nil
}

// GetShopProduct retrieves the listing of a product in a shop
func (s *Store) GetShopProduct(ctx context.Context, shopID, productID int64) (*models.ShopProduct, error) {
	var sp models.ShopProduct
	if err := s.getOne(ctx, &sp, fmt.Sprintf("shop product for product %d in shop %d", productID, shopID),
		"SELECT * FROM shop_products WHERE shop_id = $1 AND product_id = $2", shopID, productID); err != nil {
		return nil, err
	}
	return &sp, nil
}

// GetInventory retrieves inventory for a product
func (s *Store) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	var inv models.Inventory
	if err := s.getOne(ctx, &inv, fmt.Sprintf("inventory for product %d", productID),
		"SELECT * FROM inventory WHERE product_id = $1", productID); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ReserveStockTx reserves stock within a transaction (FOR UPDATE lock)
func (s *Store) ReserveStockTx(ctx context.Context, productID int64, quantity int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var available int
	err = tx.GetContext(ctx, &available,
		"SELECT available FROM inventory WHERE product_id = $1 FOR UPDATE", productID)
	if isNoRows(err) {
		return fmt.Errorf("inventory for product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock inventory: %w", err)
	}

	if available < quantity {
		return fmt.Errorf("available=%d, requested=%d: %w", available, quantity, ErrInsufficientStock)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE inventory SET available = available - $1, reserved = reserved + $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	return tx.Commit()
}

// ReleaseStock releases reserved stock (compensation)
func (s *Store) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE inventory SET available = available + $1, reserved = reserved - $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	return err
}

// CommitStock commits reserved stock (final deduction)
func (s *Store) CommitStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE inventory SET reserved = reserved - $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	return err
}

// GetAddress retrieves an address by ID
func (s *Store) GetAddress(ctx context.Context, id int64) (*models.Address, error) {
	var addr models.Address
	if err := s.getOne(ctx, &addr, fmt.Sprintf("address %d", id), "SELECT * FROM addresses WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &addr, nil
}

// CreateAddress inserts a new address
func (s *Store) CreateAddress(ctx context.Context, addr *models.Address) error {
	query := `
		INSERT INTO addresses (prefix, name, street, postal_code, city, country)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.QueryRowxContext(ctx, query,
		addr.Prefix, addr.Name, addr.Street, addr.PostalCode, addr.City, addr.Country,
	).Scan(&addr.ID, &addr.CreatedAt)
}

// GetCouponByCode retrieves a coupon by its code, case-insensitively
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.getOne(ctx, &coupon, fmt.Sprintf("coupon %q", code),
		"SELECT * FROM coupons WHERE UPPER(code) = UPPER($1)", code); err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetCampaign retrieves a campaign by ID
func (s *Store) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.getOne(ctx, &campaign, fmt.Sprintf("campaign %d", id), "SELECT * FROM campaigns WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetShippingMethod retrieves a shipping method by ID
func (s *Store) GetShippingMethod(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	var m models.ShippingMethod
	if err := s.getOne(ctx, &m, fmt.Sprintf("shipping method %d", id),
		"SELECT * FROM shipping_methods WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetPaymentMethod retrieves a payment method by ID
func (s *Store) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	if err := s.getOne(ctx, &m, fmt.Sprintf("payment method %d", id),
		"SELECT * FROM payment_methods WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListShippingMethods retrieves the enabled shipping methods of a shop
func (s *Store) ListShippingMethods(ctx context.Context, shopID int64) ([]models.ShippingMethod, error) {
	var methods []models.ShippingMethod
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM shipping_methods WHERE shop_id = $1 AND enabled ORDER BY id", shopID)
	return methods, err
}

// ListPaymentMethods retrieves the enabled payment methods of a shop
func (s *Store) ListPaymentMethods(ctx context.Context, shopID int64) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM payment_methods WHERE shop_id = $1 AND enabled ORDER BY id", shopID)
	return methods, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
