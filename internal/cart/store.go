package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wholesale-cart/internal/rules"
	"wholesale-cart/internal/shipping"
	"wholesale-cart/internal/storage"
)

// Deps wires a Store to its collaborators.
type Deps struct {
	Rules    *rules.Engine
	Storage  storage.Storage     // default in-memory
	Key      string              // default DefaultStorageKey
	Shipping shipping.Calculator // nil disables rate quotes
	Logger   *slog.Logger
	Now      func() time.Time
}

// Store holds one cart. All methods are safe for concurrent use.
//
// Item mutations never fail: quantities that break a rule are clamped and
// the buyer is told through the notification slot. Every mutation is written
// to storage before the method returns; a write failure is logged and the
// in-memory state is kept.
type Store struct {
	rules    *rules.Engine
	storage  storage.Storage
	key      string
	shipping shipping.Calculator
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	state       State
	shippingSeq uint64
}

// New builds a Store and loads any saved cart under deps.Key. A blob that
// cannot be read or was written by a newer release is logged and ignored.
func New(ctx context.Context, deps Deps) (*Store, error) {
	if deps.Rules == nil {
		return nil, errors.New("cart: rules engine is required")
	}
	s := &Store{
		rules:    deps.Rules,
		storage:  deps.Storage,
		key:      deps.Key,
		shipping: deps.Shipping,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if s.storage == nil {
		s.storage = storage.NewMemory()
	}
	if s.key == "" {
		s.key = DefaultStorageKey
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("cart", s.key)

	data, err := s.storage.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("loading cart %s: %w", s.key, err)
	}

	st, err := decodeState(data)
	if err != nil {
		s.logger.Warn("discarding unreadable cart", "error", err)
		return s, nil
	}
	s.state = st
	return s, nil
}

// Key is the storage key this cart persists under.
func (s *Store) Key() string { return s.key }

// Save writes the current state to storage and reports any failure.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := encodeState(s.state)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("saving cart %s: %w", s.key, err)
	}
	return nil
}

// =============================================================================
// ITEMS
// =============================================================================

// AddItem adds quantity units of a catalog product, merging into an existing
// line with the same key.
//
// The per-order limit is checked first: the request is cut down to the
// remaining headroom, or dropped if there is none. A new line below the MOQ
// is raised to it. MOQ is not re-applied when adding to an existing line.
func (s *Store) AddItem(product Product, quantity int, variation *Variation) {
	if quantity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	variationID := 0
	if variation != nil {
		variationID = variation.ID
	}
	key := ItemKey(product.ID, variationID)
	idx := s.indexLocked(key)
	current := 0
	if idx >= 0 {
		current = s.state.Items[idx].Quantity
	}

	notified := false
	if check := s.rules.CanAddQuantity(product.ID, current, quantity); !check.Allowed {
		headroom := check.MaxQuantity - current
		if headroom <= 0 {
			s.notifyLocked(NotifyWarning, check.Message)
			s.logger.Debug("add refused at limit", "key", key, "limit", check.MaxQuantity)
			return
		}
		s.logger.Debug("add clamped to limit", "key", key, "requested", quantity, "added", headroom)
		quantity = headroom
		s.notifyLocked(NotifyWarning, fmt.Sprintf("Only %d more can be added. %s", headroom, check.Message))
		notified = true
	}

	if current == 0 {
		if moq := s.rules.CheckMOQ(product.ID, quantity); !moq.Met {
			s.logger.Debug("new line raised to MOQ", "key", key, "requested", quantity, "moq", moq.MinRequired)
			s.notifyLocked(NotifyInfo, fmt.Sprintf(
				"Minimum order quantity for this product is %d units. Quantity adjusted from %d to %d.",
				moq.MinRequired, quantity, moq.MinRequired))
			quantity = moq.MinRequired
			notified = true
		}

		if !notified {
			if qd := s.rules.CalculateQuantityDiscount(product.ID, quantity, unitPrice(product, variation)); qd != nil && qd.NextTier != nil {
				s.notifyLocked(NotifyInfo, qd.NextTier.Message)
			}
		}
	}

	if idx >= 0 {
		s.state.Items[idx].Quantity += quantity
	} else {
		s.state.Items = append(s.state.Items, CartItem{
			Key:         key,
			ProductID:   product.ID,
			VariationID: variationID,
			Quantity:    quantity,
			Price:       unitPrice(product, variation),
			Source:      CatalogSource{Product: cloneProduct(product), Variation: cloneVariation(variation)},
		})
	}
	s.persistLocked()
}

// AddItemFromLineItem re-adds a line from a past order. The order was valid
// when placed, so MOQ and limits are not re-checked.
func (s *Store) AddItemFromLineItem(li LineItem) {
	if li.Quantity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ItemKey(li.ProductID, li.VariationID)
	if idx := s.indexLocked(key); idx >= 0 {
		s.state.Items[idx].Quantity += li.Quantity
	} else {
		s.state.Items = append(s.state.Items, CartItem{
			Key:         key,
			ProductID:   li.ProductID,
			VariationID: li.VariationID,
			Quantity:    li.Quantity,
			Price:       li.Price,
			Source:      SnapshotSource{Name: li.Name, Price: li.Price, Image: li.Image},
		})
	}
	s.persistLocked()
}

// RemoveItem drops the line with key. Unknown keys are ignored.
func (s *Store) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
	s.persistLocked()
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line;
// other values are clamped into [MOQ, limit], MOQ first.
func (s *Store) UpdateQuantity(key string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(key)
	if idx < 0 {
		s.logger.Debug("update for unknown line", "key", key)
		return
	}
	productID := s.state.Items[idx].ProductID

	if moq := s.rules.MOQ(productID); quantity < moq {
		if quantity <= 0 {
			s.removeLocked(key)
			s.persistLocked()
			return
		}
		s.logger.Debug("update raised to MOQ", "key", key, "requested", quantity, "moq", moq)
		s.notifyLocked(NotifyInfo, fmt.Sprintf(
			"Minimum order quantity for this product is %d units. Quantity adjusted to %d.", moq, moq))
		quantity = moq
	} else if limit, ok := s.rules.QuantityLimit(productID); ok && quantity > limit {
		s.logger.Debug("update clamped to limit", "key", key, "requested", quantity, "limit", limit)
		s.notifyLocked(NotifyWarning, fmt.Sprintf(
			"Maximum %d units allowed per order for this product. Quantity adjusted to %d.", limit, limit))
		quantity = limit
	}

	s.state.Items[idx].Quantity = quantity
	s.persistLocked()
}

// ClearCart empties the item list. Shipping state is left alone.
func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = nil
	s.persistLocked()
}

// =============================================================================
// UI FLAGS AND NOTIFICATION
// =============================================================================

func (s *Store) ToggleCart() {
	s.mu.Lock()
	s.state.IsOpen = !s.state.IsOpen
	s.mu.Unlock()
}

func (s *Store) OpenCart() {
	s.mu.Lock()
	s.state.IsOpen = true
	s.mu.Unlock()
}

func (s *Store) CloseCart() {
	s.mu.Lock()
	s.state.IsOpen = false
	s.mu.Unlock()
}

// ClearNotification empties the notification slot.
func (s *Store) ClearNotification() {
	s.mu.Lock()
	s.state.Notification = nil
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// =============================================================================
// HELPERS (caller holds s.mu)
// =============================================================================

func (s *Store) indexLocked(key string) int {
	for i, it := range s.state.Items {
		if it.Key == key {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(key string) {
	items := s.state.Items[:0]
	for _, it := range s.state.Items {
		if it.Key != key {
			items = append(items, it)
		}
	}
	s.state.Items = items
}

func (s *Store) notifyLocked(typ NotificationType, msg string) {
	s.state.Notification = &Notification{Message: msg, Type: typ, Timestamp: s.now()}
}

func (s *Store) persistLocked() {
	data, err := encodeState(s.state)
	if err != nil {
		s.logger.Warn("encoding cart failed", "error", err)
		return
	}
	if err := s.storage.Set(context.Background(), s.key, data); err != nil {
		s.logger.Warn("persisting cart failed", "error", err)
	}
}

func unitPrice(p Product, v *Variation) float64 {
	if v != nil && v.Price > 0 {
		return v.Price
	}
	return p.Price
}

func cloneProduct(p Product) Product {
	p.Categories = append([]string(nil), p.Categories...)
	return p
}

func cloneVariation(v *Variation) *Variation {
	if v == nil {
		return nil
	}
	out := *v
	if v.Attributes != nil {
		out.Attributes = make(map[string]string, len(v.Attributes))
		for k, val := range v.Attributes {
			out.Attributes[k] = val
		}
	}
	return &out
}

func cloneState(st State) State {
	out := st
	out.Items = append([]CartItem(nil), st.Items...)
	if st.Notification != nil {
		n := *st.Notification
		out.Notification = &n
	}
	if st.ShippingAddress != nil {
		a := *st.ShippingAddress
		out.ShippingAddress = &a
	}
	if st.SelectedShippingMethod != nil {
		m := *st.SelectedShippingMethod
		out.SelectedShippingMethod = &m
	}
	out.AvailableShippingMethods = append([]ShippingMethod(nil), st.AvailableShippingMethods...)
	out.RestrictedProducts = append([]RestrictedProduct(nil), st.RestrictedProducts...)
	return out
}
