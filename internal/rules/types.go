// Package rules holds the storefront's commerce rule tables and the pure
// functions that turn (product, quantity, base price) into pricing and
// validation decisions. An Engine owns no mutable state.
package rules

// QuantityLimit is a hard ceiling on units of one product per order.
type QuantityLimit struct {
	ProductID   int `json:"product_id"`
	MaxQuantity int `json:"max_quantity"`
}

// MOQRule overrides the global minimum order quantity for one product.
type MOQRule struct {
	ProductID   int    `json:"product_id"`
	MinQuantity int    `json:"min_quantity"`
	Reason      string `json:"reason,omitempty"`
}

// WholesaleTier grants a flat fractional discount to wholesale buyers once
// the order quantity reaches MinQuantity. Discount 0.1 means 10% off.
type WholesaleTier struct {
	MinQuantity int     `json:"min_quantity"`
	Discount    float64 `json:"discount"`
	Label       string  `json:"label"`
}

// DiscountTier is one contiguous band of a product's quantity pricing.
// MaxQuantity nil means open-ended (only valid on the last band).
type DiscountTier struct {
	MinQuantity int     `json:"min_quantity"`
	MaxQuantity *int    `json:"max_quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Label       string  `json:"label"`
}

// Contains reports whether quantity falls inside the band.
func (t DiscountTier) Contains(quantity int) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}

// ProgressiveDiscount takes DiscountPercent off the tier price for every
// QuantityStep units ordered beyond StartAfterQuantity. Steps add linearly.
type ProgressiveDiscount struct {
	StartAfterQuantity int     `json:"start_after_quantity"`
	QuantityStep       int     `json:"quantity_step"`
	DiscountPercent    float64 `json:"discount_percent"`
}

// QuantityDiscountRule is the per-product pricing schedule.
type QuantityDiscountRule struct {
	ProductID           int                  `json:"product_id"`
	Name                string               `json:"name,omitempty"`
	BasePrice           float64              `json:"base_price"`
	FloorPrice          float64              `json:"floor_price"`
	Tiers               []DiscountTier       `json:"tiers"`
	ProgressiveDiscount *ProgressiveDiscount `json:"progressive_discount,omitempty"`
}

// ShippingRestriction blocks a product from a zone when the zone is listed
// and either one of its categories or its id is listed.
type ShippingRestriction struct {
	RestrictedZones      []string `json:"restricted_zones"`
	RestrictedCategories []string `json:"restricted_categories"`
	RestrictedProductIDs []int    `json:"restricted_product_ids"`
}

// Config is the full rule set handed to New.
type Config struct {
	SchemaVersion        string                 `json:"schema_version"`
	GlobalMOQ            int                    `json:"global_moq"` // 0 means no global minimum
	QuantityLimits       []QuantityLimit        `json:"quantity_limits"`
	MOQRules             []MOQRule              `json:"moq_rules"`
	WholesaleTiers       []WholesaleTier        `json:"wholesale_tiers"`
	QuantityDiscounts    []QuantityDiscountRule `json:"quantity_discounts"`
	ShippingRestrictions ShippingRestriction    `json:"shipping_restrictions"`
}

// AddCheck is the outcome of CanAddQuantity. MaxQuantity is 0 when the
// product is unrestricted.
type AddCheck struct {
	Allowed     bool   `json:"allowed"`
	MaxQuantity int    `json:"max_quantity,omitempty"`
	Message     string `json:"message,omitempty"`
}

// TieredPrice is a wholesale-tier quote. Matched is false when no tier
// applies; a matched tier may still have an empty Label.
type TieredPrice struct {
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
	Label     string  `json:"label,omitempty"`
	Matched   bool    `json:"matched"`
}

// MOQCheck is the outcome of CheckMOQ.
type MOQCheck struct {
	Met         bool `json:"met"`
	MinRequired int  `json:"min_required"`
}

// NextTierSuggestion nudges the buyer toward a cheaper unit price.
type NextTierSuggestion struct {
	Quantity       int     `json:"quantity"`
	UnitsNeeded    int     `json:"units_needed"`
	UnitPrice      float64 `json:"unit_price"`
	SavingsPercent int     `json:"savings_percent"`
	Message        string  `json:"message"`
}

// QuantityDiscountResult is a full price quote for one product line.
type QuantityDiscountResult struct {
	ProductID                  int                 `json:"product_id"`
	Quantity                   int                 `json:"quantity"`
	BasePrice                  float64             `json:"base_price"`
	UnitPrice                  float64             `json:"unit_price"`
	TotalPrice                 float64             `json:"total_price"`
	Savings                    float64             `json:"savings"`
	SavingsPercent             int                 `json:"savings_percent"`
	TierLabel                  string              `json:"tier_label"`
	ProgressiveDiscountPercent float64             `json:"progressive_discount_percent,omitempty"`
	AtFloor                    bool                `json:"at_floor,omitempty"`
	NextTier                   *NextTierSuggestion `json:"next_tier,omitempty"`
}

// DisplayTier is one row of the pricing table shown next to a product.
type DisplayTier struct {
	MinQuantity    int     `json:"min_quantity"`
	MaxQuantity    *int    `json:"max_quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Label          string  `json:"label"`
	SavingsPercent int     `json:"savings_percent"`
	Progressive    bool    `json:"progressive,omitempty"`
}
