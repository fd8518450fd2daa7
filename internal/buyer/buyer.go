// Package buyer carries who is shopping: whether they get wholesale pricing
// and which shipping zone they are in. It is sent by the storefront in the
// Buyer-Context header as an RFC 8941 dictionary:
//
//	Buyer-Context: wholesale=?1, zone="international", customer=42
package buyer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// Header is the request header the buyer context is read from.
const Header = "Buyer-Context"

// Context describes the buyer behind a request. The zero value is a retail
// buyer with no zone.
type Context struct {
	Wholesale  bool
	Zone       string
	CustomerID int64
}

// Parse reads a Buyer-Context header value. An empty header is a retail
// buyer. Unknown keys are ignored.
func Parse(header string) (Context, error) {
	var c Context
	header = strings.TrimSpace(header)
	if header == "" {
		return c, nil
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return c, fmt.Errorf("invalid %s header: %w", Header, err)
	}

	if v, ok, err := item(dict, "wholesale"); err != nil {
		return c, err
	} else if ok {
		b, isBool := v.(bool)
		if !isBool {
			return c, errors.New("wholesale must be a boolean")
		}
		c.Wholesale = b
	}

	if v, ok, err := item(dict, "zone"); err != nil {
		return c, err
	} else if ok {
		switch z := v.(type) {
		case string:
			c.Zone = z
		case httpsfv.Token:
			c.Zone = string(z)
		default:
			return c, errors.New("zone must be a string or token")
		}
	}

	if v, ok, err := item(dict, "customer"); err != nil {
		return c, err
	} else if ok {
		n, isInt := v.(int64)
		if !isInt || n < 0 {
			return c, errors.New("customer must be a non-negative integer")
		}
		c.CustomerID = n
	}

	return c, nil
}

func item(dict *httpsfv.Dictionary, key string) (interface{}, bool, error) {
	member, ok := dict.Get(key)
	if !ok {
		return nil, false, nil
	}
	it, ok := member.(httpsfv.Item)
	if !ok {
		return nil, false, fmt.Errorf("%s value must be an item", key)
	}
	return it.Value, true, nil
}

// String serializes c as a header value. The zero value serializes to "".
func (c Context) String() string {
	dict := httpsfv.NewDictionary()
	if c.Wholesale {
		dict.Add("wholesale", httpsfv.NewItem(true))
	}
	if c.Zone != "" {
		dict.Add("zone", httpsfv.NewItem(c.Zone))
	}
	if c.CustomerID > 0 {
		dict.Add("customer", httpsfv.NewItem(c.CustomerID))
	}
	if len(dict.Names()) == 0 {
		return ""
	}
	s, err := httpsfv.Marshal(dict)
	if err != nil {
		return ""
	}
	return s
}

type contextKey struct{}

// WithContext returns ctx carrying c.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the buyer stored in ctx, or a retail buyer.
func FromContext(ctx context.Context) Context {
	c, _ := ctx.Value(contextKey{}).(Context)
	return c
}
