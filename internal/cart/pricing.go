package cart

import (
	"github.com/shopspring/decimal"

	"wholesale-cart/internal/rules"
)

// PriceLineItem prices one line. A product's own quantity-discount schedule
// wins over the wholesale ladder, which wins over the captured base price.
// The two discount strategies are never combined.
func PriceLineItem(engine *rules.Engine, item CartItem, wholesale bool) LinePrice {
	lp := LinePrice{
		Key:       item.Key,
		Quantity:  item.Quantity,
		BasePrice: item.Price,
		UnitPrice: item.Price,
		Source:    PricedByBase,
	}

	if qd := engine.CalculateQuantityDiscount(item.ProductID, item.Quantity, item.Price); qd != nil {
		lp.BasePrice = qd.BasePrice
		lp.UnitPrice = qd.UnitPrice
		lp.Label = qd.TierLabel
		lp.Source = PricedByQuantityDiscount
		lp.Discount = qd
	} else if tp := engine.TieredPrice(item.Price, item.Quantity, wholesale); tp.Matched {
		lp.UnitPrice = tp.UnitPrice
		lp.Label = tp.Label
		lp.Source = PricedByWholesaleTier
	}

	qty := decimal.NewFromInt(int64(item.Quantity))
	total := decimal.NewFromFloat(lp.UnitPrice).Mul(qty).Round(2)
	regular := decimal.NewFromFloat(lp.BasePrice).Mul(qty).Round(2)
	lp.LineTotal = total.InexactFloat64()
	lp.Savings = regular.Sub(total).InexactFloat64()
	return lp
}

// PriceLineItem prices item against this store's rules.
func (s *Store) PriceLineItem(item CartItem, wholesale bool) LinePrice {
	return PriceLineItem(s.rules, item, wholesale)
}

// Subtotal sums the priced lines. It covers both item totals and the
// pre-shipping cart total.
func (s *Store) Subtotal(wholesale bool) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked(wholesale).Subtotal
}

// ShippingCost is the selected method's precomputed total, or 0.
func (s *Store) ShippingCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shippingCostLocked()
}

// Total is Subtotal plus ShippingCost.
func (s *Store) Total(wholesale bool) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked(wholesale).Total
}

// TotalItems counts units across all lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.state.Items {
		n += it.Quantity
	}
	return n
}

// Totals prices every line and aggregates them.
func (s *Store) Totals(wholesale bool) Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked(wholesale)
}

// View returns a snapshot and its totals taken under one lock.
func (s *Store) View(wholesale bool) (State, Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state), s.totalsLocked(wholesale)
}

func (s *Store) shippingCostLocked() float64 {
	if s.state.SelectedShippingMethod == nil {
		return 0
	}
	return s.state.SelectedShippingMethod.Total
}

func (s *Store) totalsLocked(wholesale bool) Totals {
	t := Totals{
		Lines:           make([]LinePrice, 0, len(s.state.Items)),
		MinimumOrder:    s.state.MinimumOrder,
		MinimumOrderMet: s.state.MinimumOrderMet,
	}

	subtotal := decimal.Zero
	savings := decimal.Zero
	for _, it := range s.state.Items {
		lp := PriceLineItem(s.rules, it, wholesale)
		t.Lines = append(t.Lines, lp)
		t.TotalItems += it.Quantity
		subtotal = subtotal.Add(decimal.NewFromFloat(lp.LineTotal))
		savings = savings.Add(decimal.NewFromFloat(lp.Savings))
	}

	shippingCost := decimal.NewFromFloat(s.shippingCostLocked())
	t.Subtotal = subtotal.Round(2).InexactFloat64()
	t.Savings = savings.Round(2).InexactFloat64()
	t.ShippingCost = shippingCost.Round(2).InexactFloat64()
	t.Total = subtotal.Add(shippingCost).Round(2).InexactFloat64()
	return t
}
