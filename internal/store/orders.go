package store

import (
	"context"
	"fmt"

	"basket-service/internal/models"
)

// CreateBasket inserts a new basket
func (s *Store) CreateBasket(ctx context.Context, basket *models.Basket) error {
	query := `
		INSERT INTO baskets (key, shop_id, creator_id, customer_id, data, product_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		basket.Key, basket.ShopID, basket.CreatorID, basket.CustomerID, basket.Data, basket.ProductCount,
	).Scan(&basket.CreatedAt, &basket.UpdatedAt)
}

// GetBasket retrieves a basket by key
func (s *Store) GetBasket(ctx context.Context, key string) (*models.Basket, error) {
	var basket models.Basket
	if err := s.getOne(ctx, &basket, fmt.Sprintf("basket %s", key), "SELECT * FROM baskets WHERE key = $1", key); err != nil {
		return nil, err
	}
	return &basket, nil
}

// UpdateBasket persists lines, codes, addresses and methods of an unfinished basket
func (s *Store) UpdateBasket(ctx context.Context, basket *models.Basket) error {
	query := `
		UPDATE baskets SET
			customer_id = $1, data = $2, shipping_address_id = $3, billing_address_id = $4,
			shipping_method_id = $5, payment_method_id = $6, product_count = $7, updated_at = NOW()
		WHERE key = $8 AND NOT finished
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		basket.CustomerID, basket.Data, basket.ShippingAddrID, basket.BillingAddrID,
		basket.ShippingMethodID, basket.PaymentMethodID, basket.ProductCount, basket.Key,
	).Scan(&basket.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("basket %s: %w", basket.Key, ErrBasketFinished)
		}
		return err
	}
	return nil
}

// CreateOrderFromBasket inserts the order and its lines and finishes the basket in one transaction
func (s *Store) CreateOrderFromBasket(ctx context.Context, order *models.Order, lines []models.OrderLine, basket *models.Basket) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE baskets SET finished = TRUE, updated_at = NOW() WHERE key = $1 AND NOT finished", basket.Key)
	if err != nil {
		return fmt.Errorf("failed to finish basket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("basket %s: %w", basket.Key, ErrBasketFinished)
	}

	query := `
		INSERT INTO orders (reference_number, shop_id, basket_key, customer_id, orderer_id, creator_id,
			status, payment_status, shipping_status, shipping_method_id, payment_method_id,
			taxful_total_price, shipping_address, billing_address, codes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`

	err = tx.QueryRowxContext(ctx, query,
		order.ReferenceNumber, order.ShopID, order.BasketKey, order.CustomerID, order.OrdererID, order.CreatorID,
		order.Status, order.PaymentStatus, order.ShippingStatus, order.ShippingMethodID, order.PaymentMethodID,
		order.TaxfulTotalPrice, order.ShippingAddress, order.BillingAddress, order.Codes,
	).Scan(&order.ID, &order.CreatedAt)
	if isUniqueViolation(err, "orders_reference_number_key") {
		return fmt.Errorf("reference %s: %w", order.ReferenceNumber, ErrDuplicateReference)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range lines {
		lines[i].OrderID = order.ID
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, shop_product_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			lines[i].OrderID, lines[i].ProductID, lines[i].ShopProductID,
			lines[i].Quantity, lines[i].UnitPrice, lines[i].TotalPrice,
		).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	basket.Finished = true
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.getOne(ctx, &order, fmt.Sprintf("order %d", id), "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderLines retrieves all lines of an order
func (s *Store) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY id", orderID)
	return lines, err
}
