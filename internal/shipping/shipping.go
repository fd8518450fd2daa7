// Package shipping talks to the storefront's shipping-rate endpoint.
//
// The cart never computes rates itself: it sends the line items and the
// destination and gets back the methods the store offers, any products that
// cannot ship there, and the store's minimum order value.
package shipping

import "context"

// Calculator quotes shipping for a set of cart lines.
type Calculator interface {
	Calculate(ctx context.Context, req Request) (*Result, error)
}

// Address is the shipping destination. Zone is the store's shipping zone
// slug; it is only used for local restriction checks and is not sent upstream.
type Address struct {
	Postcode string `json:"postcode"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Zone     string `json:"zone,omitempty"`
}

// Item is one cart line as the shipping endpoint sees it.
type Item struct {
	ProductID   int     `json:"product_id"`
	VariationID int     `json:"variation_id,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"price"`
}

// Request is a rate quote request.
type Request struct {
	Items    []Item `json:"items"`
	Postcode string `json:"postcode"`
	City     string `json:"city"`
	Country  string `json:"country"`
}

// Method is one selectable shipping option. Total is the final cost for the
// whole cart and is what the cart adds to its total.
type Method struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Cost        float64 `json:"cost"`
	Total       float64 `json:"total"`
	Description string  `json:"description,omitempty"`
	// ExWarehouse means the buyer collects from the warehouse.
	ExWarehouse bool `json:"ex_warehouse,omitempty"`
}

// RestrictedProduct is a product that cannot ship to the requested address.
type RestrictedProduct struct {
	ProductID int    `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Result is a rate quote. Success false means the store declined to quote,
// which callers treat the same as a failed call.
type Result struct {
	Success            bool                `json:"success"`
	Message            string              `json:"message,omitempty"`
	AvailableMethods   []Method            `json:"available_methods"`
	RestrictedProducts []RestrictedProduct `json:"restricted_products"`
	MinimumOrder       float64             `json:"minimum_order"`
	MinimumOrderMet    bool                `json:"minimum_order_met"`
}
