// MCP transport for the cart service using the official MCP Go SDK.
// Exposes pricing and cart operations as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/model"
)

// === MCP Tool Input Types ===
// Wholesale pricing comes only from the Buyer-Context header set by the
// trusted front end, never from tool arguments.

// QuotePriceInput is the input schema for quote_price tool.
type QuotePriceInput struct {
	ProductID int     `json:"product_id" jsonschema:"product ID"`
	Quantity  int     `json:"quantity" jsonschema:"number of units"`
	Price     float64 `json:"price,omitempty" jsonschema:"base unit price; optional for products with a discount schedule"`
}

// CreateCartInput is the input schema for create_cart tool.
type CreateCartInput struct{}

// GetCartInput is the input schema for get_cart tool.
type GetCartInput struct {
	ID        string `json:"id" jsonschema:"cart session ID"`
}

// AddToCartInput is the input schema for add_to_cart tool.
type AddToCartInput struct {
	ID        string          `json:"id" jsonschema:"cart session ID"`
	Product   cart.Product    `json:"product" jsonschema:"catalog product being added"`
	Variation *cart.Variation `json:"variation,omitempty" jsonschema:"selected variation of a variable product"`
	Quantity  int             `json:"quantity" jsonschema:"units to add"`
}

// UpdateQuantityInput is the input schema for update_quantity tool.
type UpdateQuantityInput struct {
	ID        string `json:"id" jsonschema:"cart session ID"`
	Key       string `json:"key" jsonschema:"cart line key, e.g. 161 or 161-204"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity; 0 removes the line"`
}

// RemoveItemInput is the input schema for remove_item tool.
type RemoveItemInput struct {
	ID        string `json:"id" jsonschema:"cart session ID"`
	Key       string `json:"key" jsonschema:"cart line key"`
}

// NewMCPServer creates an MCP server with the cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "wholesale-cart",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Wholesale cart - quantity pricing and cart operations. " +
				"Quote prices, then create a cart and add, update or remove lines.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quote_price",
		Description: "Price a quantity of a product using its discount schedule or the wholesale tiers.",
	}, h.mcpQuotePrice)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_cart",
		Description: "Start a new empty cart and return its session ID.",
	}, h.mcpCreateCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get a cart with priced lines, totals and shipping state.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add units of a product. Quantities are adjusted to the product's minimum and maximum order limits.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Set the quantity of a cart line. Zero removes it.",
	}, h.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_item",
		Description: "Remove a line from the cart.",
	}, h.mcpRemoveItem)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpQuotePrice(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input QuotePriceInput,
) (*mcp.CallToolResult, *Quote, error) {
	if input.ProductID <= 0 {
		return nil, nil, fmt.Errorf("product_id must be positive")
	}
	if input.Quantity < 1 {
		return nil, nil, fmt.Errorf("quantity must be at least 1")
	}
	if input.Price < 0 {
		return nil, nil, fmt.Errorf("price must not be negative")
	}
	if input.Price == 0 && !h.rules.HasQuantityDiscount(input.ProductID) {
		return nil, nil, fmt.Errorf("price is required for products without a discount schedule")
	}
	return nil, h.quote(input.ProductID, input.Quantity, input.Price, wholesale(ctx, req)), nil
}

func (h *Handler) mcpCreateCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CreateCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	id, s, err := h.sessions.Create(ctx)
	if err != nil {
		return nil, nil, h.mcpError(model.NewInternalError(err))
	}
	return nil, newCartView(id, s, wholesale(ctx, req)), nil
}

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpCart(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	return nil, newCartView(input.ID, s, wholesale(ctx, req)), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	add := AddItemRequest{Product: input.Product, Variation: input.Variation, Quantity: input.Quantity}
	if err := add.validate(); err != nil {
		return nil, nil, h.mcpError(err)
	}
	s, err := h.mcpCart(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	s.AddItem(add.Product, add.Quantity, add.Variation)
	return nil, newCartView(input.ID, s, wholesale(ctx, req)), nil
}

func (h *Handler) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpCart(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	if !hasLine(s, input.Key) {
		return nil, nil, h.mcpError(model.NewNotFoundError("cart line " + input.Key))
	}
	s.UpdateQuantity(input.Key, input.Quantity)
	return nil, newCartView(input.ID, s, wholesale(ctx, req)), nil
}

func (h *Handler) mcpRemoveItem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveItemInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpCart(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	s.RemoveItem(input.Key)
	return nil, newCartView(input.ID, s, wholesale(ctx, req)), nil
}

func (h *Handler) mcpCart(ctx context.Context, id string) (*cart.Store, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	s, err := h.cartFor(ctx, id)
	if err != nil {
		return nil, h.mcpError(err)
	}
	return s, nil
}

// wholesale reports whether the buyer context asks for wholesale pricing.
// Tool handlers run on the MCP session's context, so the Buyer-Context header
// is read from the HTTP request that carried the call.
func wholesale(ctx context.Context, req *mcp.CallToolRequest) bool {
	if req != nil && req.Extra != nil {
		if v := req.Extra.Header.Get(buyer.Header); v != "" {
			c, err := buyer.Parse(v)
			return err == nil && c.Wholesale
		}
	}
	return buyer.FromContext(ctx).Wholesale
}

// mcpError converts API errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
