package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"wholesale-cart/internal/model"
)

// Tier labels produced by the engine itself (static tiers carry their own).
const (
	LabelRegularPrice = "Regular Price"
	LabelFloorPrice   = "Best Price (Floor)"
)

// maxProgressiveExamples caps the synthetic rows shown by QuantityDiscountTiers.
const maxProgressiveExamples = 3

// Engine evaluates an immutable rule set. Safe for concurrent use.
type Engine struct {
	globalMOQ int
	limits    map[int]int
	moqs      map[int]MOQRule
	wholesale []WholesaleTier // sorted by MinQuantity, descending
	discounts map[int]QuantityDiscountRule

	restrictedZones      map[string]bool
	restrictedCategories map[string]bool
	restrictedProducts   map[int]bool
}

// New validates cfg and builds an Engine from a private copy of it.
func New(cfg Config) (*Engine, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		globalMOQ:            cfg.GlobalMOQ,
		limits:               make(map[int]int, len(cfg.QuantityLimits)),
		moqs:                 make(map[int]MOQRule, len(cfg.MOQRules)),
		discounts:            make(map[int]QuantityDiscountRule, len(cfg.QuantityDiscounts)),
		restrictedZones:      make(map[string]bool),
		restrictedCategories: make(map[string]bool),
		restrictedProducts:   make(map[int]bool),
	}
	if e.globalMOQ < 1 {
		e.globalMOQ = 1
	}

	for _, l := range cfg.QuantityLimits {
		e.limits[l.ProductID] = l.MaxQuantity
	}
	for _, m := range cfg.MOQRules {
		e.moqs[m.ProductID] = m
	}

	e.wholesale = append([]WholesaleTier(nil), cfg.WholesaleTiers...)
	sort.Slice(e.wholesale, func(i, j int) bool {
		return e.wholesale[i].MinQuantity > e.wholesale[j].MinQuantity
	})

	for _, r := range cfg.QuantityDiscounts {
		e.discounts[r.ProductID] = cloneRule(r)
	}

	for _, z := range cfg.ShippingRestrictions.RestrictedZones {
		e.restrictedZones[normalize(z)] = true
	}
	for _, c := range cfg.ShippingRestrictions.RestrictedCategories {
		e.restrictedCategories[normalize(c)] = true
	}
	for _, id := range cfg.ShippingRestrictions.RestrictedProductIDs {
		e.restrictedProducts[id] = true
	}

	return e, nil
}

// QuantityLimit returns the per-order ceiling for a product.
// ok is false when the product is unrestricted.
func (e *Engine) QuantityLimit(productID int) (limit int, ok bool) {
	limit, ok = e.limits[productID]
	return limit, ok
}

// CanAddQuantity checks whether current+add stays within the product's limit.
// It never clamps; the caller decides what to do with a refusal.
func (e *Engine) CanAddQuantity(productID, currentQuantity, addQuantity int) AddCheck {
	limit, ok := e.limits[productID]
	if !ok {
		return AddCheck{Allowed: true}
	}
	if currentQuantity+addQuantity > limit {
		return AddCheck{
			Allowed:     false,
			MaxQuantity: limit,
			Message: fmt.Sprintf("Maximum %d units allowed per order for this product. You already have %d in your cart.",
				limit, currentQuantity),
		}
	}
	return AddCheck{Allowed: true, MaxQuantity: limit}
}

// TieredPrice applies the wholesale ladder: the tier with the highest
// MinQuantity that quantity reaches wins, and its discount comes off basePrice.
// Retail buyers always get basePrice.
func (e *Engine) TieredPrice(basePrice float64, quantity int, isWholesaleUser bool) TieredPrice {
	if !isWholesaleUser {
		return TieredPrice{UnitPrice: basePrice}
	}
	for _, tier := range e.wholesale {
		if quantity >= tier.MinQuantity {
			unit := decimal.NewFromFloat(basePrice).
				Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(tier.Discount))).
				Round(2)
			return TieredPrice{
				UnitPrice: unit.InexactFloat64(),
				Discount:  tier.Discount,
				Label:     tier.Label,
				Matched:   true,
			}
		}
	}
	return TieredPrice{UnitPrice: basePrice}
}

// MOQ returns the product's minimum order quantity, falling back to the global MOQ.
func (e *Engine) MOQ(productID int) int {
	if rule, ok := e.moqs[productID]; ok {
		return rule.MinQuantity
	}
	return e.globalMOQ
}

// CheckMOQ reports whether quantity satisfies the product's MOQ.
func (e *Engine) CheckMOQ(productID, quantity int) MOQCheck {
	moq := e.MOQ(productID)
	return MOQCheck{Met: quantity >= moq, MinRequired: moq}
}

// HasQuantityDiscount reports whether the product has its own pricing schedule.
func (e *Engine) HasQuantityDiscount(productID int) bool {
	_, ok := e.discounts[productID]
	return ok
}

// QuantityDiscountRule returns a copy of the product's pricing schedule.
func (e *Engine) QuantityDiscountRule(productID int) (QuantityDiscountRule, bool) {
	rule, ok := e.discounts[productID]
	if !ok {
		return QuantityDiscountRule{}, false
	}
	return cloneRule(rule), true
}

// IsRestrictedForShipping reports whether a product may not ship to zone.
// An empty or unrestricted zone is always open.
func (e *Engine) IsRestrictedForShipping(categories []string, productID int, zone string) bool {
	if zone == "" || !e.restrictedZones[normalize(zone)] {
		return false
	}
	for _, c := range categories {
		if e.restrictedCategories[normalize(c)] {
			return true
		}
	}
	return e.restrictedProducts[productID]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func cloneRule(r QuantityDiscountRule) QuantityDiscountRule {
	out := r
	out.Tiers = make([]DiscountTier, len(r.Tiers))
	for i, t := range r.Tiers {
		out.Tiers[i] = t
		if t.MaxQuantity != nil {
			upper := *t.MaxQuantity
			out.Tiers[i].MaxQuantity = &upper
		}
	}
	sort.Slice(out.Tiers, func(i, j int) bool {
		return out.Tiers[i].MinQuantity < out.Tiers[j].MinQuantity
	})
	if r.ProgressiveDiscount != nil {
		pd := *r.ProgressiveDiscount
		out.ProgressiveDiscount = &pd
	}
	return out
}

// percentOfBase is the whole-number saving of price against base.
func percentOfBase(base, price float64) int {
	return model.PercentOf(base-price, base)
}
