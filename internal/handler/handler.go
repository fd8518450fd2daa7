// Package handler provides the HTTP and MCP surface of the cart service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/model"
	"wholesale-cart/internal/rules"
	"wholesale-cart/internal/session"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Registry
	rules    *rules.Engine
	logger   *slog.Logger
}

// New creates a Handler over a session registry and the rules engine used
// for standalone price quotes.
func New(sessions *session.Registry, engine *rules.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		rules:    engine,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Carts
	mux.HandleFunc("POST /carts", h.handleCreateCart)
	mux.HandleFunc("GET /carts/{id}", h.handleGetCart)
	mux.HandleFunc("DELETE /carts/{id}", h.handleDeleteCart)
	mux.HandleFunc("POST /carts/{id}/items", h.handleAddItem)
	mux.HandleFunc("PUT /carts/{id}/items", h.handleReplaceItems)
	mux.HandleFunc("POST /carts/{id}/reorder", h.handleReorder)
	mux.HandleFunc("PATCH /carts/{id}/items/{key}", h.handleUpdateQuantity)
	mux.HandleFunc("DELETE /carts/{id}/items/{key}", h.handleRemoveItem)
	mux.HandleFunc("DELETE /carts/{id}/items", h.handleClearCart)
	mux.HandleFunc("POST /carts/{id}/visibility", h.handleVisibility)
	mux.HandleFunc("DELETE /carts/{id}/notification", h.handleClearNotification)

	// Shipping
	mux.HandleFunc("PUT /carts/{id}/shipping/address", h.handleSetShippingAddress)
	mux.HandleFunc("POST /carts/{id}/shipping/calculate", h.handleCalculateShipping)
	mux.HandleFunc("PUT /carts/{id}/shipping/method", h.handleSelectShippingMethod)
	mux.HandleFunc("DELETE /carts/{id}/shipping", h.handleClearShipping)

	// Pricing
	mux.HandleFunc("GET /pricing/{productID}", h.handleQuote)
	mux.HandleFunc("GET /pricing/{productID}/tiers", h.handleTiers)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// cartFor resolves a session id to its cart, mapping lookup failures to
// API errors.
func (h *Handler) cartFor(ctx context.Context, id string) (*cart.Store, error) {
	s, err := h.sessions.Get(ctx, id)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, session.ErrInvalidID):
		return nil, model.NewValidationError("id", "must be a UUID")
	case errors.Is(err, session.ErrNotFound):
		return nil, model.NewNotFoundError("cart")
	default:
		return nil, model.NewInternalError(err)
	}
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}
	if apiErr == nil {
		apiErr = model.NewInternalError(err)
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return model.NewValidationError("body", "exceeds 1MB")
		}
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
