package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Shop represents a storefront that owns baskets, listings and orders
type Shop struct {
	ID         int64     `db:"id" json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	Name       string    `db:"name" json:"name"`
	Currency   string    `db:"currency" json:"currency"`
	Enabled    bool      `db:"enabled" json:"enabled"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID            int64     `db:"id" json:"id"`
	SKU           string    `db:"sku" json:"sku"`
	Name          string    `db:"name" json:"name"`
	StockBehavior string    `db:"stock_behavior" json:"stock_behavior"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// IsStocked reports whether quantities of the product are limited by inventory
func (p *Product) IsStocked() bool {
	return p.StockBehavior == StockBehaviorStocked
}

// ShopProduct is a product's listing in a specific shop
type ShopProduct struct {
	ID           int64           `db:"id" json:"id"`
	ShopID       int64           `db:"shop_id" json:"shop"`
	ProductID    int64           `db:"product_id" json:"product"`
	DefaultPrice decimal.Decimal `db:"default_price" json:"default_price"`
	Orderable    bool            `db:"orderable" json:"orderable"`
}

// Inventory represents product stock
type Inventory struct {
	ProductID int64     `db:"product_id" json:"product_id"`
	Available int       `db:"available" json:"available"`
	Reserved  int       `db:"reserved" json:"reserved"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Address is a postal address snapshot usable for shipping or billing
type Address struct {
	ID         int64     `db:"id" json:"id"`
	Prefix     string    `db:"prefix" json:"prefix"`
	Name       string    `db:"name" json:"name"`
	Street     string    `db:"street" json:"street"`
	PostalCode string    `db:"postal_code" json:"postal_code"`
	City       string    `db:"city" json:"city"`
	Country    string    `db:"country" json:"country"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
}

// Campaign is a shop discount unlocked by one or more coupon codes
type Campaign struct {
	ID                 int64               `db:"id" json:"id"`
	ShopID             int64               `db:"shop_id" json:"shop"`
	Name               string              `db:"name" json:"name"`
	Active             bool                `db:"active" json:"active"`
	StartAt            *time.Time          `db:"start_at" json:"start_at,omitempty"`
	EndAt              *time.Time          `db:"end_at" json:"end_at,omitempty"`
	DiscountPercentage decimal.NullDecimal `db:"discount_percentage" json:"discount_percentage"`
	DiscountAmount     decimal.NullDecimal `db:"discount_amount" json:"discount_amount"`
}

// IsAvailable reports whether the campaign can be applied at the given moment
func (c *Campaign) IsAvailable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.StartAt != nil && now.Before(*c.StartAt) {
		return false
	}
	if c.EndAt != nil && now.After(*c.EndAt) {
		return false
	}
	return true
}

// Coupon is a code that activates a campaign
type Coupon struct {
	ID         int64  `db:"id" json:"id"`
	Code       string `db:"code" json:"code"`
	Active     bool   `db:"active" json:"active"`
	CampaignID *int64 `db:"campaign_id" json:"campaign,omitempty"`
}

// ShippingMethod is a delivery option of a shop
type ShippingMethod struct {
	ID      int64           `db:"id" json:"id"`
	ShopID  int64           `db:"shop_id" json:"shop"`
	Name    string          `db:"name" json:"name"`
	Enabled bool            `db:"enabled" json:"enabled"`
	Price   decimal.Decimal `db:"price" json:"price"`
}

// PaymentMethod is a payment option of a shop
type PaymentMethod struct {
	ID      int64           `db:"id" json:"id"`
	ShopID  int64           `db:"shop_id" json:"shop"`
	Name    string          `db:"name" json:"name"`
	Enabled bool            `db:"enabled" json:"enabled"`
	Price   decimal.Decimal `db:"price" json:"price"`
}

// Basket is a mutable pre-order collection of lines scoped to a shop
type Basket struct {
	Key              string     `db:"key" json:"key"`
	ShopID           int64      `db:"shop_id" json:"shop"`
	CreatorID        *int64     `db:"creator_id" json:"creator"`
	CustomerID       *int64     `db:"customer_id" json:"customer"`
	Data             BasketData `db:"data" json:"-"`
	ShippingAddrID   *int64     `db:"shipping_address_id" json:"-"`
	BillingAddrID    *int64     `db:"billing_address_id" json:"-"`
	ShippingMethodID *int64     `db:"shipping_method_id" json:"-"`
	PaymentMethodID  *int64     `db:"payment_method_id" json:"-"`
	ProductCount     int        `db:"product_count" json:"product_count"`
	Finished         bool       `db:"finished" json:"finished"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ID returns the external composite identifier "{shop}-{key}"
func (b *Basket) ID() string {
	return fmt.Sprintf("%d-%s", b.ShopID, b.Key)
}

// BasketData is the JSON document holding basket lines and codes
type BasketData struct {
	Lines []BasketLine `json:"lines"`
	Codes []string     `json:"codes"`
}

// BasketLine represents one product entry in a basket
type BasketLine struct {
	LineID        string          `json:"line_id"`
	ShopProductID int64           `json:"shop_product"`
	ProductID     int64           `json:"product"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// Value implements driver.Valuer for the JSONB column
func (d BasketData) Value() (driver.Value, error) {
	if d.Lines == nil {
		d.Lines = []BasketLine{}
	}
	if d.Codes == nil {
		d.Codes = []string{}
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for the JSONB column
func (d *BasketData) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = BasketData{}
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("unsupported basket data type %T", src)
	}
}

// Clone returns a deep copy so callers can validate mutations before applying them
func (d BasketData) Clone() BasketData {
	out := BasketData{
		Lines: make([]BasketLine, len(d.Lines)),
		Codes: make([]string, len(d.Codes)),
	}
	copy(out.Lines, d.Lines)
	copy(out.Codes, d.Codes)
	return out
}

// Order represents an order materialized from a finished basket
type Order struct {
	ID               int64           `db:"id" json:"id"`
	ReferenceNumber  string          `db:"reference_number" json:"reference_number"`
	ShopID           int64           `db:"shop_id" json:"shop"`
	BasketKey        string          `db:"basket_key" json:"basket_key"`
	CustomerID       *int64          `db:"customer_id" json:"customer"`
	OrdererID        *int64          `db:"orderer_id" json:"orderer"`
	CreatorID        *int64          `db:"creator_id" json:"creator"`
	Status           string          `db:"status" json:"status"`
	PaymentStatus    string          `db:"payment_status" json:"payment_status"`
	ShippingStatus   string          `db:"shipping_status" json:"shipping_status"`
	ShippingMethodID *int64          `db:"shipping_method_id" json:"shipping_method"`
	PaymentMethodID  *int64          `db:"payment_method_id" json:"payment_method"`
	TaxfulTotalPrice decimal.Decimal `db:"taxful_total_price" json:"taxful_total_price"`
	ShippingAddress  *AddressData    `db:"shipping_address" json:"shipping_address"`
	BillingAddress   *AddressData    `db:"billing_address" json:"billing_address"`
	Codes            StringList      `db:"codes" json:"codes"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// OrderLine represents a product line of an order
type OrderLine struct {
	ID            int64           `db:"id" json:"id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	ProductID     int64           `db:"product_id" json:"product"`
	ShopProductID int64           `db:"shop_product_id" json:"shop_product"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice    decimal.Decimal `db:"total_price" json:"total_price"`
}

// AddressData is an address copied onto an order, stored as JSONB
type AddressData Address

// Value implements driver.Valuer
func (a AddressData) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *AddressData) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported address data type %T", src)
	}
}

// StringList is a JSONB encoded list of strings
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported string list type %T", src)
	}
}

// Stock behaviors
const (
	StockBehaviorUnstocked = "UNSTOCKED"
	StockBehaviorStocked   = "STOCKED"
)

// Order statuses
const (
	OrderStatusInitial   = "initial"
	OrderStatusComplete  = "complete"
	OrderStatusCancelled = "cancelled"
)

// Payment statuses
const (
	PaymentStatusNotPaid = "NOT_PAID"
	PaymentStatusPaid    = "FULLY_PAID"
)

// Shipping statuses
const (
	ShippingStatusNotShipped = "NOT_SHIPPED"
	ShippingStatusShipped    = "FULLY_SHIPPED"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
