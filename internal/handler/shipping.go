package handler

import (
	"net/http"
	"strings"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/model"
)

// SelectMethodRequest is the body of PUT /carts/{id}/shipping/method.
type SelectMethodRequest struct {
	MethodID string `json:"method_id"`
}

// handleSetShippingAddress stores the destination and quotes rates. The
// response reflects the finished calculation. A zone missing from the body
// is taken from the buyer context.
// PUT /carts/{id}/shipping/address
func (h *Handler) handleSetShippingAddress(w http.ResponseWriter, r *http.Request) {
	var addr cart.ShippingAddress
	if err := decodeJSON(w, r, &addr); err != nil {
		h.writeError(w, err)
		return
	}
	addr.Postcode = strings.TrimSpace(addr.Postcode)
	if addr.Postcode == "" {
		h.writeError(w, model.NewValidationError("postcode", "is required"))
		return
	}
	if addr.Zone == "" {
		addr.Zone = buyer.FromContext(r.Context()).Zone
	}

	h.withCart(w, r, func(s *cart.Store) error {
		s.SetShippingAddress(r.Context(), addr)
		return nil
	})
}

// POST /carts/{id}/shipping/calculate
func (h *Handler) handleCalculateShipping(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(s *cart.Store) error {
		s.CalculateShipping(r.Context())
		return nil
	})
}

// PUT /carts/{id}/shipping/method
func (h *Handler) handleSelectShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req SelectMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.MethodID == "" {
		h.writeError(w, model.NewValidationError("method_id", "is required"))
		return
	}
	h.withCart(w, r, func(s *cart.Store) error {
		if !s.SelectShippingMethod(req.MethodID) {
			return model.NewShippingMethodError(req.MethodID)
		}
		return nil
	})
}

// DELETE /carts/{id}/shipping
func (h *Handler) handleClearShipping(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(s *cart.Store) error {
		s.ClearShipping()
		return nil
	})
}
