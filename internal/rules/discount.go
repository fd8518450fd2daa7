package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"wholesale-cart/internal/model"
)

// =============================================================================
// QUANTITY DISCOUNT PRICING
// =============================================================================
//
// A product with a QuantityDiscountRule is priced in two stages:
//
//   1. Static band: the tier with the largest MinQuantity <= quantity.
//   2. Progressive: for every QuantityStep units beyond StartAfterQuantity,
//      DiscountPercent comes off the band's unit price. Steps add linearly
//      (3 steps of 2% = 6% off), they never compound on each other.
//
// The result is clamped to FloorPrice and rounded to cents once, at the end.
//
// Example (product 161, base 450, floor 370, 50+ band at 380, -2% per 10):
//
//	qty 60  → 380 * 0.98 = 372.40
//	qty 200 → 380 * 0.70 = 266.00 → floor 370.00
//
// =============================================================================

// unitQuote is the price of one unit at a given quantity, before totals.
type unitQuote struct {
	unit           decimal.Decimal
	label          string
	progressivePct float64
	atFloor        bool
}

// CalculateQuantityDiscount prices quantity units of a product that has a
// discount rule. basePrice <= 0 means "use the rule's base price".
// Returns nil when the product has no rule so callers can fall back to
// wholesale tiers or flat pricing.
func (e *Engine) CalculateQuantityDiscount(productID, quantity int, basePrice float64) *QuantityDiscountResult {
	rule, ok := e.discounts[productID]
	if !ok {
		return nil
	}
	if quantity < 0 {
		quantity = 0
	}
	if basePrice <= 0 {
		basePrice = rule.BasePrice
	}

	base := decimal.NewFromFloat(basePrice)
	qty := decimal.NewFromInt(int64(quantity))
	regularTotal := base.Mul(qty)

	quote, found := quoteUnit(rule, quantity)
	if !found {
		return regularPriceResult(rule, productID, quantity, basePrice, regularTotal)
	}

	total := quote.unit.Mul(qty).Round(2)
	savings := regularTotal.Sub(total).Round(2)

	result := &QuantityDiscountResult{
		ProductID:                  productID,
		Quantity:                   quantity,
		BasePrice:                  basePrice,
		UnitPrice:                  quote.unit.InexactFloat64(),
		TotalPrice:                 total.InexactFloat64(),
		Savings:                    savings.InexactFloat64(),
		SavingsPercent:             model.PercentOf(savings.InexactFloat64(), regularTotal.InexactFloat64()),
		TierLabel:                  quote.label,
		ProgressiveDiscountPercent: quote.progressivePct,
		AtFloor:                    quote.atFloor,
	}
	result.NextTier = nextTierSuggestion(rule, quantity, basePrice, quote)
	return result
}

// quoteUnit computes the unit price at quantity. found is false when
// quantity is below every static band.
func quoteUnit(rule QuantityDiscountRule, quantity int) (unitQuote, bool) {
	tier, found := selectTier(rule.Tiers, quantity)
	if !found {
		return unitQuote{}, false
	}

	unit := decimal.NewFromFloat(tier.UnitPrice)
	q := unitQuote{label: tier.Label}

	if steps := progressiveSteps(rule.ProgressiveDiscount, quantity); steps > 0 {
		pct := decimal.NewFromFloat(rule.ProgressiveDiscount.DiscountPercent).Mul(decimal.NewFromInt(int64(steps)))
		factor := decimal.NewFromInt(1).Sub(pct.Div(decimal.NewFromInt(100)))
		unit = unit.Mul(factor)
		q.progressivePct = pct.InexactFloat64()
		q.label = fmt.Sprintf("Volume Discount (-%s%%)", pct.String())
	}

	floor := decimal.NewFromFloat(rule.FloorPrice)
	if unit.LessThan(floor) {
		unit = floor
		q.label = LabelFloorPrice
		q.atFloor = true
	}
	if unit.IsNegative() {
		unit = decimal.Zero
	}

	q.unit = unit.Round(2)
	return q, true
}

// selectTier returns the band with the largest MinQuantity <= quantity.
// Tiers are sorted ascending, so the last qualifying band wins ties.
func selectTier(tiers []DiscountTier, quantity int) (DiscountTier, bool) {
	var (
		best  DiscountTier
		found bool
	)
	for _, t := range tiers {
		if t.MinQuantity <= quantity {
			best = t
			found = true
		}
	}
	return best, found
}

// progressiveSteps is the number of whole steps past StartAfterQuantity.
func progressiveSteps(pd *ProgressiveDiscount, quantity int) int {
	if pd == nil || pd.QuantityStep <= 0 || quantity <= pd.StartAfterQuantity {
		return 0
	}
	return (quantity - pd.StartAfterQuantity) / pd.QuantityStep
}

func regularPriceResult(rule QuantityDiscountRule, productID, quantity int, basePrice float64, regularTotal decimal.Decimal) *QuantityDiscountResult {
	result := &QuantityDiscountResult{
		ProductID:  productID,
		Quantity:   quantity,
		BasePrice:  basePrice,
		UnitPrice:  basePrice,
		TotalPrice: regularTotal.Round(2).InexactFloat64(),
		TierLabel:  LabelRegularPrice,
	}
	if len(rule.Tiers) > 0 {
		first := rule.Tiers[0]
		units := first.MinQuantity - quantity
		result.NextTier = &NextTierSuggestion{
			Quantity:       first.MinQuantity,
			UnitsNeeded:    units,
			UnitPrice:      first.UnitPrice,
			SavingsPercent: percentOfBase(basePrice, first.UnitPrice),
			Message:        fmt.Sprintf("Add %d more to get bulk pricing", units),
		}
	}
	return result
}

// nextTierSuggestion looks, in order, for a higher static band, the next
// progressive step, or the quantity that first enters progressive pricing.
func nextTierSuggestion(rule QuantityDiscountRule, quantity int, basePrice float64, current unitQuote) *NextTierSuggestion {
	for _, t := range rule.Tiers {
		if t.MinQuantity > quantity {
			units := t.MinQuantity - quantity
			pct := percentOfBase(basePrice, t.UnitPrice)
			return &NextTierSuggestion{
				Quantity:       t.MinQuantity,
				UnitsNeeded:    units,
				UnitPrice:      t.UnitPrice,
				SavingsPercent: pct,
				Message:        fmt.Sprintf("Add %d more to save %d%%", units, pct),
			}
		}
	}

	pd := rule.ProgressiveDiscount
	if pd == nil || pd.QuantityStep <= 0 || current.atFloor {
		return nil
	}

	var target int
	if quantity >= pd.StartAfterQuantity {
		target = pd.StartAfterQuantity + (progressiveSteps(pd, quantity)+1)*pd.QuantityStep
	} else {
		target = pd.StartAfterQuantity + pd.QuantityStep
	}

	next, found := quoteUnit(rule, target)
	if !found || !next.unit.LessThan(current.unit) {
		return nil
	}

	units := target - quantity
	price := next.unit.InexactFloat64()
	msg := fmt.Sprintf("Add %d more to pay %s each", units, model.FormatPrice(price))
	if quantity < pd.StartAfterQuantity {
		msg = fmt.Sprintf("Add %d more to unlock volume discounts at %s each", units, model.FormatPrice(price))
	}
	return &NextTierSuggestion{
		Quantity:       target,
		UnitsNeeded:    units,
		UnitPrice:      price,
		SavingsPercent: percentOfBase(basePrice, price),
		Message:        msg,
	}
}

// QuantityDiscountTiers returns the display table for a product: its static
// bands followed by up to three example progressive quantities. The rows are
// illustrative only; checkout pricing always goes through
// CalculateQuantityDiscount.
func (e *Engine) QuantityDiscountTiers(productID int) []DisplayTier {
	rule, ok := e.discounts[productID]
	if !ok {
		return nil
	}

	rows := make([]DisplayTier, 0, len(rule.Tiers)+maxProgressiveExamples)
	for _, t := range rule.Tiers {
		row := DisplayTier{
			MinQuantity:    t.MinQuantity,
			UnitPrice:      t.UnitPrice,
			Label:          t.Label,
			SavingsPercent: percentOfBase(rule.BasePrice, t.UnitPrice),
		}
		if t.MaxQuantity != nil {
			upper := *t.MaxQuantity
			row.MaxQuantity = &upper
		}
		rows = append(rows, row)
	}

	pd := rule.ProgressiveDiscount
	if pd == nil || pd.QuantityStep <= 0 {
		return rows
	}

	for k := 1; k <= maxProgressiveExamples; k++ {
		qty := pd.StartAfterQuantity + k*pd.QuantityStep
		quote, found := quoteUnit(rule, qty)
		if !found {
			break
		}
		price := quote.unit.InexactFloat64()
		rows = append(rows, DisplayTier{
			MinQuantity:    qty,
			UnitPrice:      price,
			Label:          quote.label,
			SavingsPercent: percentOfBase(rule.BasePrice, price),
			Progressive:    true,
		})
		if quote.atFloor {
			break
		}
	}
	return rows
}
