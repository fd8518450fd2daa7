package cart

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"wholesale-cart/internal/rules"
	"wholesale-cart/internal/shipping"
	"wholesale-cart/internal/storage"
)

var (
	tandoor = Product{ID: 161, Name: "Mini Electric Tandoor", Price: 450, Categories: []string{"ovens"}}
	skewers = Product{ID: 300, Name: "Skewer Set", Price: 20}
	grill   = Product{ID: 175, Name: "Charcoal Grill", Price: 80, Categories: []string{"charcoal"}}
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) *rules.Engine {
	t.Helper()
	e, err := rules.New(rules.Default())
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}
	return e
}

func newTestStore(t *testing.T, store storage.Storage, calc shipping.Calculator) *Store {
	t.Helper()
	if store == nil {
		store = storage.NewMemory()
	}
	s, err := New(context.Background(), Deps{
		Rules:    testEngine(t),
		Storage:  store,
		Shipping: calc,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func itemByKey(t *testing.T, s *Store, key string) CartItem {
	t.Helper()
	for _, it := range s.Snapshot().Items {
		if it.Key == key {
			return it
		}
	}
	t.Fatalf("no line %q in cart", key)
	return CartItem{}
}

func TestNew_RequiresRules(t *testing.T) {
	if _, err := New(context.Background(), Deps{}); err == nil {
		t.Error("New() without rules = nil error")
	}
}

func TestAddItem_RaisesNewLineToMOQ(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.AddItem(skewers, 2, nil)

	if got := itemByKey(t, s, "300").Quantity; got != 6 {
		t.Errorf("Quantity = %d, want 6", got)
	}
	n := s.Snapshot().Notification
	if n == nil || n.Type != NotifyInfo {
		t.Fatalf("Notification = %+v, want info", n)
	}
	if !strings.Contains(n.Message, "6 units") {
		t.Errorf("Message = %q", n.Message)
	}
	if !n.Timestamp.Equal(fixedNow) {
		t.Errorf("Timestamp = %v, want %v", n.Timestamp, fixedNow)
	}
}

func TestAddItem_MOQOnlyOnFirstAdd(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.AddItem(skewers, 6, nil)
	s.ClearNotification()
	s.AddItem(skewers, 2, nil)

	if got := itemByKey(t, s, "300").Quantity; got != 8 {
		t.Errorf("Quantity = %d, want 8", got)
	}
	if n := s.Snapshot().Notification; n != nil {
		t.Errorf("Notification = %+v, want none", n)
	}
}

func TestAddItem_Limit(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.AddItem(grill, 20, nil)
	s.AddItem(grill, 10, nil)

	if got := itemByKey(t, s, "175").Quantity; got != 24 {
		t.Fatalf("Quantity after clamp = %d, want 24", got)
	}
	if n := s.Snapshot().Notification; n == nil || n.Type != NotifyWarning || !strings.Contains(n.Message, "Only 4 more") {
		t.Errorf("Notification = %+v, want clamp warning", n)
	}

	s.ClearNotification()
	s.AddItem(grill, 1, nil)

	if got := itemByKey(t, s, "175").Quantity; got != 24 {
		t.Errorf("Quantity after refused add = %d, want 24", got)
	}
	n := s.Snapshot().Notification
	if n == nil || n.Type != NotifyWarning || !strings.Contains(n.Message, "You already have 24") {
		t.Errorf("Notification = %+v, want refusal warning", n)
	}
}

func TestAddItem_FirstAddNudgesNextTier(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.AddItem(tandoor, 3, nil)

	if got := itemByKey(t, s, "161").Quantity; got != 3 {
		t.Errorf("Quantity = %d, want 3 (MOQ override is 1)", got)
	}
	n := s.Snapshot().Notification
	if n == nil || n.Type != NotifyInfo || n.Message != "Add 3 more to save 7%" {
		t.Errorf("Notification = %+v, want tier nudge", n)
	}
}

func TestAddItem_Variation(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.AddItem(tandoor, 6, &Variation{ID: 204, Name: "UK Plug"})
	s.AddItem(tandoor, 6, &Variation{ID: 205, Name: "EU Plug", Price: 460})

	uk := itemByKey(t, s, "161-204")
	if uk.Price != 450 {
		t.Errorf("UK Price = %v, want product price 450", uk.Price)
	}
	if uk.Source.Title() != "Mini Electric Tandoor - UK Plug" {
		t.Errorf("Title = %q", uk.Source.Title())
	}
	if eu := itemByKey(t, s, "161-205"); eu.Price != 460 {
		t.Errorf("EU Price = %v, want variation price 460", eu.Price)
	}
}

func TestAddItem_IgnoresNonPositive(t *testing.T) {
	s := newTestStore(t, nil, nil)
	s.AddItem(skewers, 0, nil)
	s.AddItem(skewers, -3, nil)
	if n := len(s.Snapshot().Items); n != 0 {
		t.Errorf("len(Items) = %d, want 0", n)
	}
}

func TestAddItemFromLineItem(t *testing.T) {
	s := newTestStore(t, nil, nil)

	// Past orders are trusted: no limit or MOQ adjustment.
	s.AddItemFromLineItem(LineItem{ProductID: 175, Name: "Charcoal Grill", Quantity: 30, Price: 78.5, Image: "grill.jpg"})
	s.AddItemFromLineItem(LineItem{ProductID: 300, Name: "Skewer Set", Quantity: 2, Price: 20})
	s.AddItemFromLineItem(LineItem{ProductID: 300, Name: "Skewer Set", Quantity: 1, Price: 20})

	g := itemByKey(t, s, "175")
	if g.Quantity != 30 || g.Price != 78.5 {
		t.Errorf("grill = %+v", g)
	}
	snap, ok := g.Source.(SnapshotSource)
	if !ok {
		t.Fatalf("Source = %T, want SnapshotSource", g.Source)
	}
	if snap.Image != "grill.jpg" || snap.Categories() != nil {
		t.Errorf("snapshot = %+v", snap)
	}
	if got := itemByKey(t, s, "300").Quantity; got != 3 {
		t.Errorf("merged skewers = %d, want 3", got)
	}
	if n := s.Snapshot().Notification; n != nil {
		t.Errorf("Notification = %+v, want none", n)
	}
}

func TestUpdateQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		want     int
		wantNote NotificationType
		wantGone bool
	}{
		{"zero removes", 0, 0, "", true},
		{"negative removes", -4, 0, "", true},
		{"below MOQ raised", 3, 6, NotifyInfo, false},
		{"above limit clamped", 100, 24, NotifyWarning, false},
		{"in range", 12, 12, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, nil, nil)
			s.AddItem(grill, 10, nil)
			s.ClearNotification()

			s.UpdateQuantity("175", tt.quantity)

			st := s.Snapshot()
			if tt.wantGone {
				if len(st.Items) != 0 {
					t.Fatalf("Items = %+v, want removed", st.Items)
				}
				return
			}
			if got := st.Items[0].Quantity; got != tt.want {
				t.Errorf("Quantity = %d, want %d", got, tt.want)
			}
			var gotNote NotificationType
			if st.Notification != nil {
				gotNote = st.Notification.Type
			}
			if gotNote != tt.wantNote {
				t.Errorf("Notification type = %q, want %q", gotNote, tt.wantNote)
			}
		})
	}
}

func TestUpdateQuantity_UnknownKey(t *testing.T) {
	s := newTestStore(t, nil, nil)
	s.UpdateQuantity("999", 5)
	if n := len(s.Snapshot().Items); n != 0 {
		t.Errorf("len(Items) = %d, want 0", n)
	}
}

func TestLimitNeverExceeded(t *testing.T) {
	s := newTestStore(t, nil, nil)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		if r.Intn(2) == 0 {
			s.AddItem(grill, r.Intn(40)+1, nil)
		} else {
			s.UpdateQuantity("175", r.Intn(60)-5)
		}
		for _, it := range s.Snapshot().Items {
			if it.Quantity > 24 {
				t.Fatalf("step %d: quantity %d exceeds limit 24", i, it.Quantity)
			}
		}
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := newTestStore(t, nil, nil)
	s.AddItem(skewers, 6, nil)
	s.AddItem(grill, 6, nil)

	s.RemoveItem("300")
	s.RemoveItem("does-not-exist")
	if st := s.Snapshot(); len(st.Items) != 1 || st.Items[0].Key != "175" {
		t.Fatalf("Items = %+v", st.Items)
	}

	addr := ShippingAddress{Postcode: "2000", Country: "AU"}
	s.SetShippingAddress(context.Background(), addr)
	s.ClearCart()

	st := s.Snapshot()
	if len(st.Items) != 0 {
		t.Errorf("Items = %+v, want empty", st.Items)
	}
	if st.ShippingAddress == nil || st.ShippingAddress.Postcode != "2000" {
		t.Errorf("ClearCart touched shipping: %+v", st.ShippingAddress)
	}
}

func TestVisibilityAndNotification(t *testing.T) {
	s := newTestStore(t, nil, nil)

	s.OpenCart()
	if !s.Snapshot().IsOpen {
		t.Error("OpenCart did not open")
	}
	s.ToggleCart()
	if s.Snapshot().IsOpen {
		t.Error("ToggleCart did not close")
	}
	s.ToggleCart()
	s.CloseCart()
	if s.Snapshot().IsOpen {
		t.Error("CloseCart did not close")
	}

	s.AddItem(skewers, 1, nil)
	s.ClearNotification()
	st := s.Snapshot()
	if st.Notification != nil {
		t.Error("ClearNotification left a notification")
	}
	if len(st.Items) != 1 {
		t.Error("ClearNotification touched items")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t, nil, nil)
	s.AddItem(skewers, 6, nil)

	snap := s.Snapshot()
	snap.Items[0].Quantity = 999

	if got := itemByKey(t, s, "300").Quantity; got != 6 {
		t.Errorf("store mutated through snapshot: %d", got)
	}
}
