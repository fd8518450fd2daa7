package handler

import (
	"net/http"
	"strings"
	"time"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/model"
	"wholesale-cart/internal/reconcile"
)

// CartView is the response body for every cart operation: the lines priced
// for the calling buyer, totals, the notification slot, and shipping.
type CartView struct {
	ID           string            `json:"id"`
	Items        []LineView        `json:"items"`
	TotalItems   int               `json:"total_items"`
	Subtotal     float64           `json:"subtotal"`
	Savings      float64           `json:"savings"`
	ShippingCost float64           `json:"shipping_cost"`
	Total        float64           `json:"total"`
	IsOpen       bool              `json:"is_open"`
	Notification *NotificationView `json:"notification,omitempty"`
	Shipping     ShippingView      `json:"shipping"`
	Wholesale    bool              `json:"wholesale"`
}

// NotificationView is the buyer-facing message slot.
type NotificationView struct {
	Message   string                `json:"message"`
	Type      cart.NotificationType `json:"type"`
	Timestamp string                `json:"timestamp"`
}

// LineView is one priced cart line.
type LineView struct {
	Key         string          `json:"key"`
	ProductID   int             `json:"product_id"`
	VariationID int             `json:"variation_id,omitempty"`
	Name        string          `json:"name"`
	Image       string          `json:"image,omitempty"`
	Source      cart.SourceKind `json:"source"`
	Quantity    int             `json:"quantity"`
	Pricing     cart.LinePrice  `json:"pricing"`
}

// ShippingView is the shipping sub-state of a cart.
type ShippingView struct {
	Address            *cart.ShippingAddress    `json:"address,omitempty"`
	SelectedMethod     *cart.ShippingMethod     `json:"selected_method,omitempty"`
	AvailableMethods   []cart.ShippingMethod    `json:"available_methods"`
	RestrictedProducts []cart.RestrictedProduct `json:"restricted_products"`
	MinimumOrder       float64                  `json:"minimum_order,omitempty"`
	MinimumOrderMet    bool                     `json:"minimum_order_met"`
	IsCalculating      bool                     `json:"is_calculating"`
}

func newCartView(id string, s *cart.Store, wholesale bool) *CartView {
	st, tot := s.View(wholesale)

	v := &CartView{
		ID:           id,
		Items:        make([]LineView, 0, len(st.Items)),
		TotalItems:   tot.TotalItems,
		Subtotal:     tot.Subtotal,
		Savings:      tot.Savings,
		ShippingCost: tot.ShippingCost,
		Total:        tot.Total,
		IsOpen:       st.IsOpen,
		Wholesale:    wholesale,
		Shipping: ShippingView{
			Address:            st.ShippingAddress,
			SelectedMethod:     st.SelectedShippingMethod,
			AvailableMethods:   st.AvailableShippingMethods,
			RestrictedProducts: st.RestrictedProducts,
			MinimumOrder:       st.MinimumOrder,
			MinimumOrderMet:    st.MinimumOrderMet,
			IsCalculating:      st.IsCalculatingShipping,
		},
	}
	if n := st.Notification; n != nil {
		v.Notification = &NotificationView{
			Message:   n.Message,
			Type:      n.Type,
			Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	// MCP output schemas want arrays, never null.
	if v.Shipping.AvailableMethods == nil {
		v.Shipping.AvailableMethods = []cart.ShippingMethod{}
	}
	if v.Shipping.RestrictedProducts == nil {
		v.Shipping.RestrictedProducts = []cart.RestrictedProduct{}
	}

	for i, it := range st.Items {
		lv := LineView{
			Key:         it.Key,
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
			Pricing:     tot.Lines[i],
		}
		if it.Source != nil {
			lv.Name = it.Source.Title()
			lv.Image = it.Source.Thumbnail()
			lv.Source = it.Source.Kind()
		}
		v.Items = append(v.Items, lv)
	}
	return v
}

// === Request Types ===

// AddItemRequest is the body of POST /carts/{id}/items.
type AddItemRequest struct {
	Product   cart.Product    `json:"product"`
	Variation *cart.Variation `json:"variation,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (r AddItemRequest) validate() error {
	if r.Product.ID <= 0 {
		return model.NewValidationError("product.id", "must be positive")
	}
	if r.Product.Price < 0 {
		return model.NewValidationError("product.price", "must not be negative")
	}
	if r.Variation != nil && r.Variation.ID <= 0 {
		return model.NewValidationError("variation.id", "must be positive")
	}
	if r.Quantity < 1 {
		return model.NewValidationError("quantity", "must be at least 1")
	}
	return nil
}

func (r AddItemRequest) key() string {
	variationID := 0
	if r.Variation != nil {
		variationID = r.Variation.ID
	}
	return cart.ItemKey(r.Product.ID, variationID)
}

// ReplaceItemsRequest is the body of PUT /carts/{id}/items: the complete
// set of lines the cart should hold.
type ReplaceItemsRequest struct {
	Items []AddItemRequest `json:"items"`
}

// ReorderRequest is the body of POST /carts/{id}/reorder.
type ReorderRequest struct {
	Items []cart.LineItem `json:"items"`
}

// UpdateQuantityRequest is the body of PATCH /carts/{id}/items/{key}.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// VisibilityRequest is the body of POST /carts/{id}/visibility.
type VisibilityRequest struct {
	Action string `json:"action"` // open, close or toggle
}

// === Handlers ===

// handleCreateCart starts a new session.
// POST /carts
func (h *Handler) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	id, s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.writeError(w, model.NewInternalError(err))
		return
	}
	h.logger.Debug("cart created", "session", id)
	h.writeJSON(w, http.StatusCreated, newCartView(id, s, buyer.FromContext(r.Context()).Wholesale))
}

// GET /carts/{id}
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(*cart.Store) error { return nil })
}

// DELETE /carts/{id}
func (h *Handler) handleDeleteCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.cartFor(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.writeError(w, model.NewInternalError(err))
		return
	}
	h.logger.Debug("cart deleted", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /carts/{id}/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, err)
		return
	}
	h.withCart(w, r, func(s *cart.Store) error {
		s.AddItem(req.Product, req.Quantity, req.Variation)
		return nil
	})
}

// handleReplaceItems makes the cart hold exactly the requested lines.
// Only the difference is applied, through the same MOQ and limit checks as
// individual edits: removals first, then quantity changes, then new lines.
// PUT /carts/{id}/items
func (h *Handler) handleReplaceItems(w http.ResponseWriter, r *http.Request) {
	var req ReplaceItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	desired := make([]reconcile.Line, 0, len(req.Items))
	for _, it := range req.Items {
		if err := it.validate(); err != nil {
			h.writeError(w, err)
			return
		}
		desired = append(desired, reconcile.Line{Key: it.key(), Quantity: it.Quantity})
	}

	h.withCart(w, r, func(s *cart.Store) error {
		items := s.Snapshot().Items
		current := make([]reconcile.Line, 0, len(items))
		for _, it := range items {
			current = append(current, reconcile.Line{Key: it.Key, Quantity: it.Quantity})
		}

		diff := reconcile.DiffLines(current, desired)
		if diff.IsEmpty() {
			return nil
		}
		h.logger.Debug("replacing cart lines",
			"remove", len(diff.ToRemove), "update", len(diff.ToUpdate), "add", len(diff.ToAdd))

		for _, key := range diff.ToRemove {
			s.RemoveItem(key)
		}
		for _, u := range diff.ToUpdate {
			s.UpdateQuantity(u.Key, u.NewQuantity)
		}
		for _, a := range diff.ToAdd {
			it := req.Items[a.Index]
			s.AddItem(it.Product, a.Quantity, it.Variation)
		}
		return nil
	})
}

// POST /carts/{id}/reorder
func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	for _, li := range req.Items {
		if li.ProductID <= 0 {
			h.writeError(w, model.NewValidationError("items.product_id", "must be positive"))
			return
		}
	}
	h.withCart(w, r, func(s *cart.Store) error {
		for _, li := range req.Items {
			s.AddItemFromLineItem(li)
		}
		return nil
	})
}

// PATCH /carts/{id}/items/{key}
func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, model.NewValidationError("quantity", "is required"))
		return
	}
	key := r.PathValue("key")
	h.withCart(w, r, func(s *cart.Store) error {
		if !hasLine(s, key) {
			return model.NewNotFoundError("cart line " + key)
		}
		s.UpdateQuantity(key, *req.Quantity)
		return nil
	})
}

// DELETE /carts/{id}/items/{key}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	h.withCart(w, r, func(s *cart.Store) error {
		s.RemoveItem(key)
		return nil
	})
}

// DELETE /carts/{id}/items
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(s *cart.Store) error {
		s.ClearCart()
		return nil
	})
}

// POST /carts/{id}/visibility
func (h *Handler) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	var apply func(*cart.Store)
	switch strings.ToLower(req.Action) {
	case "open":
		apply = (*cart.Store).OpenCart
	case "close":
		apply = (*cart.Store).CloseCart
	case "toggle":
		apply = (*cart.Store).ToggleCart
	default:
		h.writeError(w, model.NewValidationError("action", "must be open, close or toggle"))
		return
	}
	h.withCart(w, r, func(s *cart.Store) error {
		apply(s)
		return nil
	})
}

// DELETE /carts/{id}/notification
func (h *Handler) handleClearNotification(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(s *cart.Store) error {
		s.ClearNotification()
		return nil
	})
}

// withCart looks up the cart named by the {id} path value, applies op, and
// writes the resulting view.
func (h *Handler) withCart(w http.ResponseWriter, r *http.Request, op func(*cart.Store) error) {
	id := r.PathValue("id")
	s, err := h.cartFor(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := op(s); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(id, s, buyer.FromContext(r.Context()).Wholesale))
}

func hasLine(s *cart.Store, key string) bool {
	for _, it := range s.Snapshot().Items {
		if it.Key == key {
			return true
		}
	}
	return false
}
