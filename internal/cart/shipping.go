package cart

import (
	"context"
	"errors"

	"wholesale-cart/internal/shipping"
)

// =============================================================================
// SHIPPING SUB-STATE
// =============================================================================
//
//	SetShippingAddress ─▶ CalculateShipping ─┬─ ok   ─▶ methods, restrictions,
//	                                         │          first method selected
//	                                         └─ fail ─▶ methods cleared,
//	                                                    selection kept
//
// Each calculation takes a sequence number under the lock and calls the
// calculator without it. A response is applied only if no newer calculation
// (or ClearShipping) has started since; older responses are dropped.
//
// =============================================================================

var errNoCalculator = errors.New("no shipping calculator configured")

// SetShippingAddress stores the destination and recalculates rates.
func (s *Store) SetShippingAddress(ctx context.Context, addr ShippingAddress) {
	s.mu.Lock()
	s.state.ShippingAddress = &addr
	s.persistLocked()
	s.mu.Unlock()

	s.CalculateShipping(ctx)
}

// CalculateShipping asks the shipping collaborator for rates. It does nothing
// without an address or items. Failures are logged and leave the cart with no
// available methods; the buyer retries.
func (s *Store) CalculateShipping(ctx context.Context) {
	s.mu.Lock()
	if s.state.ShippingAddress == nil || len(s.state.Items) == 0 {
		s.mu.Unlock()
		return
	}
	s.shippingSeq++
	seq := s.shippingSeq
	addr := *s.state.ShippingAddress
	items := append([]CartItem(nil), s.state.Items...)
	s.state.IsCalculatingShipping = true
	s.mu.Unlock()

	req := shipping.Request{
		Items:    make([]shipping.Item, 0, len(items)),
		Postcode: addr.Postcode,
		City:     addr.City,
		Country:  addr.Country,
	}
	for _, it := range items {
		req.Items = append(req.Items, shipping.Item{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
		})
	}

	var (
		res *shipping.Result
		err = errNoCalculator
	)
	if s.shipping != nil {
		res, err = s.shipping.Calculate(ctx, req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.shippingSeq {
		s.logger.Debug("discarding stale shipping response", "seq", seq, "latest", s.shippingSeq)
		return
	}
	s.state.IsCalculatingShipping = false

	if err == nil && (res == nil || !res.Success) {
		msg := "store declined to quote"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		err = errors.New(msg)
	}
	if err != nil {
		s.logger.Warn("shipping calculation failed", "error", err, "postcode", addr.Postcode, "country", addr.Country)
		s.state.AvailableShippingMethods = nil
		s.state.RestrictedProducts = nil
		s.persistLocked()
		return
	}

	s.state.AvailableShippingMethods = append([]ShippingMethod(nil), res.AvailableMethods...)
	s.state.RestrictedProducts = s.mergeRestrictionsLocked(res.RestrictedProducts, items, addr.Zone)
	s.state.MinimumOrder = res.MinimumOrder
	s.state.MinimumOrderMet = res.MinimumOrderMet
	if len(res.AvailableMethods) > 0 {
		first := res.AvailableMethods[0]
		s.state.SelectedShippingMethod = &first
	} else {
		s.state.SelectedShippingMethod = nil
	}
	s.persistLocked()
}

// mergeRestrictionsLocked adds locally configured zone restrictions to the
// ones the store returned, one entry per product.
func (s *Store) mergeRestrictionsLocked(remote []RestrictedProduct, items []CartItem, zone string) []RestrictedProduct {
	out := make([]RestrictedProduct, 0, len(remote))
	seen := make(map[int]bool, len(remote))
	for _, r := range remote {
		if seen[r.ProductID] {
			continue
		}
		seen[r.ProductID] = true
		out = append(out, r)
	}
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		var cats []string
		name := ""
		if it.Source != nil {
			cats = it.Source.Categories()
			name = it.Source.Title()
		}
		if s.rules.IsRestrictedForShipping(cats, it.ProductID, zone) {
			seen[it.ProductID] = true
			out = append(out, RestrictedProduct{
				ProductID: it.ProductID,
				Name:      name,
				Reason:    "Not available for delivery to " + zone,
			})
		}
	}
	return out
}

// SelectShippingMethod picks one of the available methods by id.
// It reports false if no such method is available.
func (s *Store) SelectShippingMethod(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.state.AvailableShippingMethods {
		if m.ID == id {
			sel := m
			s.state.SelectedShippingMethod = &sel
			s.persistLocked()
			return true
		}
	}
	return false
}

// ClearShipping resets address, quotes and selection together. Any
// calculation still in flight is abandoned.
func (s *Store) ClearShipping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shippingSeq++
	s.state.ShippingAddress = nil
	s.state.SelectedShippingMethod = nil
	s.state.AvailableShippingMethods = nil
	s.state.RestrictedProducts = nil
	s.state.MinimumOrder = 0
	s.state.MinimumOrderMet = false
	s.state.IsCalculatingShipping = false
	s.persistLocked()
}
