package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"basket-service/internal/models"
	"basket-service/internal/store"
	"basket-service/internal/util"

	"go.uber.org/zap"
)

// StockCache is the fast-path stock counter, implemented by redisclient.Client
type StockCache interface {
	ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error)
	ReleaseStock(ctx context.Context, productID int64, quantity int) error
	CommitStock(ctx context.Context, productID int64, quantity int) error
	InitInventory(ctx context.Context, productID int64, available, reserved int) error
	GetInventory(ctx context.Context, productID int64) (available, reserved int, err error)
}

// InventoryClient handles inventory operations
type InventoryClient struct {
	store  store.Repository
	cache  StockCache
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client. cache may be nil,
// in which case every call goes to the store.
func NewInventoryClient(store store.Repository, cache StockCache) *InventoryClient {
	return &InventoryClient{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// Available returns the quantity of a product that can still be reserved
func (ic *InventoryClient) Available(ctx context.Context, productID int64) (int, error) {
	if ic.cache != nil {
		available, _, err := ic.cache.GetInventory(ctx, productID)
		if err == nil {
			return available, nil
		}
		ic.logger.Debug("Stock cache miss, reading from DB",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}

	inv, err := ic.store.GetInventory(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return inv.Available, nil
}

// CheckAvailable reports whether quantity units of product can be put in a basket
func (ic *InventoryClient) CheckAvailable(ctx context.Context, product *models.Product, quantity int) (bool, error) {
	if !product.IsStocked() {
		return true, nil
	}
	available, err := ic.Available(ctx, product.ID)
	if err != nil {
		return false, err
	}
	return quantity <= available, nil
}

// ReserveStock reserves stock for a product (fast path via Redis)
func (ic *InventoryClient) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReserveStock")
	defer span.End()

	start := time.Now()
	defer func() {
		util.InventoryReserveLatency.Observe(time.Since(start).Seconds())
	}()

	if ic.cache == nil {
		return ic.reserveStockDB(ctx, productID, quantity)
	}

	success, err := ic.cache.ReserveStock(ctx, productID, quantity)
	if err != nil {
		ic.logger.Warn("Redis reservation failed, falling back to DB",
			zap.Int64("product_id", productID),
			zap.Error(err))

		return ic.reserveStockDB(ctx, productID, quantity)
	}

	if !success {
		return false, nil
	}

	// The database stays authoritative; undo the cached reservation if it disagrees.
	ok, err := ic.reserveStockDB(ctx, productID, quantity)
	if err != nil || !ok {
		if relErr := ic.cache.ReleaseStock(ctx, productID, quantity); relErr != nil {
			ic.logger.Error("Failed to undo Redis reservation",
				zap.Int64("product_id", productID),
				zap.Error(relErr))
		}
	}
	return ok, err
}

// reserveStockDB reserves stock using database transaction (fallback)
func (ic *InventoryClient) reserveStockDB(ctx context.Context, productID int64, quantity int) (bool, error) {
	err := ic.store.ReserveStockTx(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) || errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleaseStock releases reserved stock (compensation)
func (ic *InventoryClient) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.ReleaseStock")
	defer span.End()

	if ic.cache != nil {
		if err := ic.cache.ReleaseStock(ctx, productID, quantity); err != nil {
			ic.logger.Error("Failed to release stock in Redis",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return ic.store.ReleaseStock(ctx, productID, quantity)
}

// CommitStock commits reserved stock (final deduction)
func (ic *InventoryClient) CommitStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.CommitStock")
	defer span.End()

	if ic.cache != nil {
		if err := ic.cache.CommitStock(ctx, productID, quantity); err != nil {
			ic.logger.Error("Failed to commit stock in Redis",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return ic.store.CommitStock(ctx, productID, quantity)
}

// SyncInventoryToRedis synchronizes database inventory to Redis
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	if ic.cache == nil {
		return nil
	}
	ic.logger.Info("Starting inventory sync to Redis")

	products, err := ic.store.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	synced := 0
	for _, product := range products {
		if !product.IsStocked() {
			continue
		}
		inv, err := ic.store.GetInventory(ctx, product.ID)
		if err != nil {
			ic.logger.Error("Failed to get inventory",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
			continue
		}

		if err := ic.cache.InitInventory(ctx, product.ID, inv.Available, inv.Reserved); err != nil {
			ic.logger.Error("Failed to init Redis inventory",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
			continue
		}
		synced++
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", synced))
	return nil
}
