package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultStorageKey is the namespace carts are stored under.
const DefaultStorageKey = "cart-storage"

// SchemaVersion is the persisted layout written by this package.
//
//	v1: versionless blob from the storefront, camelCase fields, each item
//	    embedding the full WooCommerce product (prices as strings)
//	v2: {"version":2,"state":{...}} with tagged line sources
const SchemaVersion = 2

// ErrUnsupportedVersion is returned when a blob was written by a newer release.
var ErrUnsupportedVersion = errors.New("unsupported cart schema version")

// StorageKey is the key for one session's cart. An empty session gives the
// bare namespace.
func StorageKey(session string) string {
	if session == "" {
		return DefaultStorageKey
	}
	return DefaultStorageKey + ":" + session
}

type envelope struct {
	Version int             `json:"version"`
	State   json.RawMessage `json:"state"`
}

// persistedState is the durable subset of State. The notification, UI flags
// and in-flight shipping flag are not stored.
type persistedState struct {
	Items                    []CartItem          `json:"items"`
	ShippingAddress          *ShippingAddress    `json:"shipping_address,omitempty"`
	SelectedShippingMethod   *ShippingMethod     `json:"selected_shipping_method,omitempty"`
	AvailableShippingMethods []ShippingMethod    `json:"available_shipping_methods,omitempty"`
	RestrictedProducts       []RestrictedProduct `json:"restricted_products,omitempty"`
	MinimumOrder             float64             `json:"minimum_order,omitempty"`
	MinimumOrderMet          bool                `json:"minimum_order_met,omitempty"`
}

func encodeState(s State) ([]byte, error) {
	raw, err := json.Marshal(persistedState{
		Items:                    s.Items,
		ShippingAddress:          s.ShippingAddress,
		SelectedShippingMethod:   s.SelectedShippingMethod,
		AvailableShippingMethods: s.AvailableShippingMethods,
		RestrictedProducts:       s.RestrictedProducts,
		MinimumOrder:             s.MinimumOrder,
		MinimumOrderMet:          s.MinimumOrderMet,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding cart state: %w", err)
	}
	return json.Marshal(envelope{Version: SchemaVersion, State: raw})
}

// decodeState reads any known layout and returns it as current State.
func decodeState(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return State{}, fmt.Errorf("decoding cart envelope: %w", err)
	}

	switch {
	case env.Version == SchemaVersion:
		var ps persistedState
		if err := json.Unmarshal(env.State, &ps); err != nil {
			return State{}, fmt.Errorf("decoding cart state: %w", err)
		}
		return State{
			Items:                    ps.Items,
			ShippingAddress:          ps.ShippingAddress,
			SelectedShippingMethod:   ps.SelectedShippingMethod,
			AvailableShippingMethods: ps.AvailableShippingMethods,
			RestrictedProducts:       ps.RestrictedProducts,
			MinimumOrder:             ps.MinimumOrder,
			MinimumOrderMet:          ps.MinimumOrderMet,
		}, nil
	case env.Version <= 1:
		// The storefront wrote {"state":{...},"version":0}; older builds
		// wrote the state bare.
		raw := env.State
		if len(raw) == 0 || string(raw) == "null" {
			raw = data
		}
		return migrateV1(raw)
	default:
		return State{}, fmt.Errorf("%w: %d (this build reads up to %d)", ErrUnsupportedVersion, env.Version, SchemaVersion)
	}
}

// =============================================================================
// v1 → v2
// =============================================================================

// v1Money accepts the storefront's price encodings: "25.00", "", 25 or null.
type v1Money float64

func (m *v1Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid price %s: %w", b, err)
	}
	*m = v1Money(d.Round(2).InexactFloat64())
	return nil
}

type v1Image struct {
	Src string `json:"src"`
}

type v1Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type v1Product struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	Slug       string       `json:"slug"`
	SKU        string       `json:"sku"`
	Price      v1Money      `json:"price"`
	Images     []v1Image    `json:"images"`
	Categories []v1Category `json:"categories"`
}

type v1Variation struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	SKU   string   `json:"sku"`
	Price v1Money  `json:"price"`
	Image *v1Image `json:"image"`
}

type v1Item struct {
	ProductID   int          `json:"productId"`
	VariationID int          `json:"variationId"`
	Quantity    int          `json:"quantity"`
	Price       v1Money      `json:"price"`
	Product     *v1Product   `json:"product"`
	Variation   *v1Variation `json:"variation"`
}

type v1Method struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Cost  v1Money `json:"cost"`
	Total v1Money `json:"total"`
}

type v1State struct {
	Items                    []v1Item            `json:"items"`
	ShippingAddress          *ShippingAddress    `json:"shippingAddress"`
	SelectedShippingMethod   *v1Method           `json:"selectedShippingMethod"`
	AvailableShippingMethods []v1Method          `json:"availableShippingMethods"`
	RestrictedProducts       []RestrictedProduct `json:"restrictedProducts"`
	MinimumOrder             v1Money             `json:"minimumOrder"`
	MinimumOrderMet          bool                `json:"minimumOrderMet"`
}

func migrateV1(raw []byte) (State, error) {
	var old v1State
	if err := json.Unmarshal(raw, &old); err != nil {
		return State{}, fmt.Errorf("decoding v1 cart state: %w", err)
	}

	st := State{
		ShippingAddress:    old.ShippingAddress,
		RestrictedProducts: old.RestrictedProducts,
		MinimumOrder:       float64(old.MinimumOrder),
		MinimumOrderMet:    old.MinimumOrderMet,
	}

	for _, it := range old.Items {
		if it.Quantity < 1 {
			continue
		}
		item := CartItem{
			Key:         ItemKey(it.ProductID, it.VariationID),
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
			Price:       float64(it.Price),
		}

		src := CatalogSource{Product: Product{ID: it.ProductID}}
		if p := it.Product; p != nil {
			src.Product = Product{
				ID:    p.ID,
				Name:  p.Name,
				Slug:  p.Slug,
				SKU:   p.SKU,
				Price: float64(p.Price),
			}
			if len(p.Images) > 0 {
				src.Product.Image = p.Images[0].Src
			}
			for _, c := range p.Categories {
				src.Product.Categories = append(src.Product.Categories, c.Slug)
			}
			if item.Price == 0 {
				item.Price = src.Product.Price
			}
		}
		if v := it.Variation; v != nil {
			src.Variation = &Variation{
				ID:    v.ID,
				Name:  v.Name,
				SKU:   v.SKU,
				Price: float64(v.Price),
			}
			if v.Image != nil {
				src.Variation.Image = v.Image.Src
			}
		}
		item.Source = src
		st.Items = append(st.Items, item)
	}

	if m := old.SelectedShippingMethod; m != nil {
		sel := m.toMethod()
		st.SelectedShippingMethod = &sel
	}
	for _, m := range old.AvailableShippingMethods {
		st.AvailableShippingMethods = append(st.AvailableShippingMethods, m.toMethod())
	}
	return st, nil
}

func (m v1Method) toMethod() ShippingMethod {
	total := m.Total
	if total == 0 {
		total = m.Cost
	}
	return ShippingMethod{
		ID:    m.ID,
		Label: m.Label,
		Cost:  float64(m.Cost),
		Total: float64(total),
	}
}
