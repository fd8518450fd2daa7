package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/model"
	"wholesale-cart/internal/rules"
)

// Quote is a standalone price quote for one product at a quantity.
type Quote struct {
	ProductID int                           `json:"product_id"`
	Quantity  int                           `json:"quantity"`
	Source    cart.PricingSource            `json:"pricing"`
	UnitPrice float64                       `json:"unit_price"`
	Total     float64                       `json:"total"`
	Label     string                        `json:"label,omitempty"`
	Discount  *rules.QuantityDiscountResult `json:"discount,omitempty"`
	MOQ       int                           `json:"moq"`
	Limit     int                           `json:"limit,omitempty"`
}

// TiersResponse is the pricing table for a product with a discount schedule.
type TiersResponse struct {
	ProductID int                 `json:"product_id"`
	Tiers     []rules.DisplayTier `json:"tiers"`
}

// quote prices quantity units the same way a cart line is priced.
func (h *Handler) quote(productID, quantity int, basePrice float64, wholesale bool) *Quote {
	lp := cart.PriceLineItem(h.rules, cart.CartItem{
		Key:       cart.ItemKey(productID, 0),
		ProductID: productID,
		Quantity:  quantity,
		Price:     basePrice,
	}, wholesale)

	q := &Quote{
		ProductID: productID,
		Quantity:  quantity,
		Source:    lp.Source,
		UnitPrice: lp.UnitPrice,
		Total:     lp.LineTotal,
		Label:     lp.Label,
		Discount:  lp.Discount,
		MOQ:       h.rules.MOQ(productID),
	}
	if limit, ok := h.rules.QuantityLimit(productID); ok {
		q.Limit = limit
	}
	return q
}

// handleQuote prices a product. quantity defaults to 1; price is the base
// unit price and is required for products without a discount schedule.
// GET /pricing/{productID}?quantity=&price=
func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(r.PathValue("productID"))
	if err != nil || productID <= 0 {
		h.writeError(w, model.NewValidationError("productID", "must be a positive integer"))
		return
	}

	quantity := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		quantity, err = strconv.Atoi(v)
		if err != nil || quantity < 1 {
			h.writeError(w, model.NewValidationError("quantity", "must be a positive integer"))
			return
		}
	}

	var price float64
	if v := r.URL.Query().Get("price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			h.writeError(w, model.NewValidationError("price", "must be a non-negative amount"))
			return
		}
		price = model.RoundPrice(d.InexactFloat64())
	}
	if price == 0 && !h.rules.HasQuantityDiscount(productID) {
		h.writeError(w, model.NewValidationError("price", "is required for products without a discount schedule"))
		return
	}

	h.writeJSON(w, http.StatusOK, h.quote(productID, quantity, price, buyer.FromContext(r.Context()).Wholesale))
}

// GET /pricing/{productID}/tiers
func (h *Handler) handleTiers(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(r.PathValue("productID"))
	if err != nil || productID <= 0 {
		h.writeError(w, model.NewValidationError("productID", "must be a positive integer"))
		return
	}
	tiers := h.rules.QuantityDiscountTiers(productID)
	if len(tiers) == 0 {
		h.writeError(w, model.NewNotFoundError("discount schedule"))
		return
	}
	h.writeJSON(w, http.StatusOK, TiersResponse{ProductID: productID, Tiers: tiers})
}
