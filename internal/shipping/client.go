package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wholesale-cart/internal/model"
	"wholesale-cart/internal/transport"
)

// DefaultPath is the WordPress route of the wholesale shipping plugin.
const DefaultPath = "/wp-json/wholesale/v1/shipping/calculate"

// userAgent identifies this client to upstream servers.
// WordPress WAFs commonly reject requests without one.
const userAgent = "Wholesale-Cart/1.0"

const maxResponseBytes = 1 << 20

// Config holds the shipping client settings.
type Config struct {
	StoreURL    string
	APIKey      string
	APISecret   string
	Path        string // default DefaultPath
	Timeout     time.Duration
	Fingerprint transport.Fingerprint
	// HTTPClient overrides the fingerprinting client. Tests use this.
	HTTPClient *http.Client
}

// Client calls the storefront shipping endpoint with WooCommerce consumer
// key/secret basic auth.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	apiSecret  string
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("API credentials are required")
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport.New(transport.Options{Timeout: timeout, Fingerprint: cfg.Fingerprint}),
		}
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(cfg.StoreURL, "/") + path,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
	}, nil
}

// wireMoney is a money field as the plugin sends it: "12.50", 12.5, or ""
// and null for free methods.
type wireMoney struct {
	decimal.Decimal
}

func (m *wireMoney) UnmarshalJSON(b []byte) error {
	if s := string(b); s == `""` || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(b)
}

// wireResponse mirrors the plugin's JSON.
type wireResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	AvailableMethods []struct {
		ID          string          `json:"id"`
		Label       string          `json:"label"`
		Cost        wireMoney `json:"cost"`
		Total       wireMoney `json:"total"`
		Description string    `json:"description"`
		ExWarehouse bool      `json:"ex_warehouse"`
	} `json:"available_methods"`
	RestrictedProducts []RestrictedProduct `json:"restricted_products"`
	MinimumOrder       wireMoney           `json:"minimum_order"`
	MinimumOrderMet    bool                `json:"minimum_order_met"`
}

// wireError is the WordPress REST error envelope.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Calculate posts the cart lines and destination and decodes the quote.
func (c *Client) Calculate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, model.NewUpstreamError("shipping", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, respBody)
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, model.NewUpstreamError("shipping", fmt.Errorf("parsing response: %w", err))
	}
	return wire.toResult(), nil
}

func (w *wireResponse) toResult() *Result {
	res := &Result{
		Success:            w.Success,
		Message:            w.Message,
		AvailableMethods:   make([]Method, 0, len(w.AvailableMethods)),
		RestrictedProducts: w.RestrictedProducts,
		MinimumOrder:       w.MinimumOrder.Round(2).InexactFloat64(),
		MinimumOrderMet:    w.MinimumOrderMet,
	}
	for _, m := range w.AvailableMethods {
		total := m.Total
		if total.IsZero() {
			total = m.Cost
		}
		res.AvailableMethods = append(res.AvailableMethods, Method{
			ID:          m.ID,
			Label:       m.Label,
			Cost:        m.Cost.Round(2).InexactFloat64(),
			Total:       total.Round(2).InexactFloat64(),
			Description: m.Description,
			ExWarehouse: m.ExWarehouse,
		})
	}
	if res.RestrictedProducts == nil {
		res.RestrictedProducts = []RestrictedProduct{}
	}
	return res
}

// parseErrorResponse converts a WordPress error to an APIError.
func parseErrorResponse(statusCode int, body []byte) error {
	var wpErr wireError
	json.Unmarshal(body, &wpErr) // best effort

	switch statusCode {
	case http.StatusNotFound:
		return model.NewNotFoundError("shipping endpoint")
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.NewUnauthorizedError("store rejected shipping credentials")
	case http.StatusBadRequest:
		msg := wpErr.Message
		if msg == "" {
			msg = "invalid shipping request"
		}
		return model.NewValidationError("shipping", msg)
	case http.StatusTooManyRequests:
		return model.NewRateLimitError("shipping")
	default:
		return model.NewUpstreamError("shipping",
			fmt.Errorf("status %d: %s - %s", statusCode, wpErr.Code, wpErr.Message))
	}
}

var _ Calculator = (*Client)(nil)
