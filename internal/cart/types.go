// Package cart is the per-buyer cart: line items, UI flags, the single
// notification slot, and the shipping selection. Every mutation goes through
// the rules engine and is persisted immediately.
package cart

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wholesale-cart/internal/rules"
	"wholesale-cart/internal/shipping"
)

// Product is the catalog view of a product at the moment it was added.
type Product struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug,omitempty"`
	SKU        string   `json:"sku,omitempty"`
	Price      float64  `json:"price"`
	Image      string   `json:"image,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Variation is a purchasable variant of a variable product.
type Variation struct {
	ID         int               `json:"id"`
	Name       string            `json:"name,omitempty"`
	SKU        string            `json:"sku,omitempty"`
	Price      float64           `json:"price"`
	Image      string            `json:"image,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// LineItem is a line from a past order, used for reorders.
type LineItem struct {
	ProductID   int     `json:"product_id"`
	VariationID int     `json:"variation_id,omitempty"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
}

// SourceKind tags where a cart line's display data came from.
type SourceKind string

const (
	SourceCatalog  SourceKind = "catalog"
	SourceSnapshot SourceKind = "snapshot"
)

// LineSource is either a CatalogSource or a SnapshotSource.
type LineSource interface {
	Kind() SourceKind
	Title() string
	Thumbnail() string
	// Categories is nil for snapshots; their categories are unknown.
	Categories() []string
}

// CatalogSource is a line added from the live catalog.
type CatalogSource struct {
	Product   Product    `json:"product"`
	Variation *Variation `json:"variation,omitempty"`
}

func (CatalogSource) Kind() SourceKind { return SourceCatalog }

func (c CatalogSource) Title() string {
	if c.Variation != nil && c.Variation.Name != "" {
		return c.Product.Name + " - " + c.Variation.Name
	}
	return c.Product.Name
}

func (c CatalogSource) Thumbnail() string {
	if c.Variation != nil && c.Variation.Image != "" {
		return c.Variation.Image
	}
	return c.Product.Image
}

func (c CatalogSource) Categories() []string { return c.Product.Categories }

// SnapshotSource is a line rebuilt from order history without a catalog lookup.
type SnapshotSource struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

func (SnapshotSource) Kind() SourceKind     { return SourceSnapshot }
func (s SnapshotSource) Title() string      { return s.Name }
func (s SnapshotSource) Thumbnail() string  { return s.Image }
func (SnapshotSource) Categories() []string { return nil }

// CartItem is one line. Price is the unit base price captured when the line
// was created; discounts are applied on top of it at read time.
type CartItem struct {
	Key         string     `json:"key"`
	ProductID   int        `json:"product_id"`
	VariationID int        `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity"`
	Price       float64    `json:"price"`
	Source      LineSource `json:"source"`
}

// ItemKey derives a line key: "161" or "161-204".
func ItemKey(productID, variationID int) string {
	if variationID > 0 {
		return strconv.Itoa(productID) + "-" + strconv.Itoa(variationID)
	}
	return strconv.Itoa(productID)
}

type cartItemJSON struct {
	Key         string          `json:"key"`
	ProductID   int             `json:"product_id"`
	VariationID int             `json:"variation_id,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       float64         `json:"price"`
	Source      json.RawMessage `json:"source"`
}

// MarshalJSON writes Source with a "kind" discriminator.
func (i CartItem) MarshalJSON() ([]byte, error) {
	var src any
	switch s := i.Source.(type) {
	case CatalogSource:
		src = struct {
			Kind SourceKind `json:"kind"`
			CatalogSource
		}{SourceCatalog, s}
	case SnapshotSource:
		src = struct {
			Kind SourceKind `json:"kind"`
			SnapshotSource
		}{SourceSnapshot, s}
	case nil:
		src = nil
	default:
		return nil, fmt.Errorf("cart item %s: unknown source %T", i.Key, i.Source)
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cartItemJSON{
		Key:         i.Key,
		ProductID:   i.ProductID,
		VariationID: i.VariationID,
		Quantity:    i.Quantity,
		Price:       i.Price,
		Source:      raw,
	})
}

// UnmarshalJSON reads the "kind"-tagged Source back into its concrete type.
func (i *CartItem) UnmarshalJSON(data []byte) error {
	var w cartItemJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*i = CartItem{
		Key:         w.Key,
		ProductID:   w.ProductID,
		VariationID: w.VariationID,
		Quantity:    w.Quantity,
		Price:       w.Price,
	}
	if len(w.Source) == 0 || string(w.Source) == "null" {
		return nil
	}

	var head struct {
		Kind SourceKind `json:"kind"`
	}
	if err := json.Unmarshal(w.Source, &head); err != nil {
		return err
	}
	switch head.Kind {
	case SourceCatalog:
		var s CatalogSource
		if err := json.Unmarshal(w.Source, &s); err != nil {
			return err
		}
		i.Source = s
	case SourceSnapshot:
		var s SnapshotSource
		if err := json.Unmarshal(w.Source, &s); err != nil {
			return err
		}
		i.Source = s
	default:
		return fmt.Errorf("cart item %s: unknown source kind %q", w.Key, head.Kind)
	}
	return nil
}

// NotificationType classifies a notification for display.
type NotificationType string

const (
	NotifyError   NotificationType = "error"
	NotifyWarning NotificationType = "warning"
	NotifyInfo    NotificationType = "info"
)

// Notification is the single most recent message for the buyer.
type Notification struct {
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
}

type (
	ShippingAddress   = shipping.Address
	ShippingMethod    = shipping.Method
	RestrictedProduct = shipping.RestrictedProduct
)

// State is the whole cart aggregate.
type State struct {
	Items        []CartItem    `json:"items"`
	IsOpen       bool          `json:"is_open"`
	Notification *Notification `json:"notification,omitempty"`

	ShippingAddress          *ShippingAddress    `json:"shipping_address,omitempty"`
	SelectedShippingMethod   *ShippingMethod     `json:"selected_shipping_method,omitempty"`
	AvailableShippingMethods []ShippingMethod    `json:"available_shipping_methods"`
	RestrictedProducts       []RestrictedProduct `json:"restricted_products"`
	MinimumOrder             float64             `json:"minimum_order,omitempty"`
	MinimumOrderMet          bool                `json:"minimum_order_met"`
	IsCalculatingShipping    bool                `json:"is_calculating_shipping"`
}

// PricingSource says which strategy priced a line.
type PricingSource string

const (
	PricedByQuantityDiscount PricingSource = "quantity_discount"
	PricedByWholesaleTier    PricingSource = "wholesale_tier"
	PricedByBase             PricingSource = "base"
)

// LinePrice is the priced view of one CartItem.
type LinePrice struct {
	Key       string                        `json:"key"`
	Quantity  int                           `json:"quantity"`
	BasePrice float64                       `json:"base_price"`
	UnitPrice float64                       `json:"unit_price"`
	LineTotal float64                       `json:"line_total"`
	Savings   float64                       `json:"savings"`
	Label     string                        `json:"label,omitempty"`
	Source    PricingSource                 `json:"pricing"`
	Discount  *rules.QuantityDiscountResult `json:"discount,omitempty"`
}

// Totals aggregates a cart for display or checkout.
type Totals struct {
	Lines           []LinePrice `json:"lines"`
	TotalItems      int         `json:"total_items"`
	Subtotal        float64     `json:"subtotal"`
	Savings         float64     `json:"savings"`
	ShippingCost    float64     `json:"shipping_cost"`
	Total           float64     `json:"total"`
	MinimumOrder    float64     `json:"minimum_order,omitempty"`
	MinimumOrderMet bool        `json:"minimum_order_met"`
}
