// cartctl is a CLI tool for exercising the cart service by hand.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartctl create [-wholesale] [-zone Z]
//	cartctl get -id <cart-id>
//	cartctl add -id <cart-id> -product ID -price P [-name N] [-variation ID] [-qty N]
//	cartctl update -id <cart-id> -key KEY -qty N
//	cartctl remove -id <cart-id> -key KEY
//	cartctl clear -id <cart-id>
//	cartctl delete -id <cart-id>
//	cartctl ship -id <cart-id> -postcode PC [-city C] [-country CC] [-method ID]
//	cartctl quote -product ID [-qty N] [-price P]
//	cartctl tiers -product ID
//
// Examples:
//
//	ID=$(cartctl create -q)
//	cartctl add -id $ID -product 161 -qty 6 -wholesale
//	cartctl ship -id $ID -postcode 2000 -country AU
//	cartctl quote -product 300 -qty 60 -price 20 -wholesale
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/handler"
	"wholesale-cart/internal/model"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL  string
	quiet      bool
	noColor    bool
	verbose    bool
	wholesale  bool
	zone       string
	customerID int64
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create":
		runCreate(args)
	case "get":
		runGet(args)
	case "add":
		runAdd(args)
	case "update":
		runUpdate(args)
	case "remove":
		runRemove(args)
	case "clear":
		runClear(args)
	case "delete":
		runDelete(args)
	case "ship":
		runShip(args)
	case "quote":
		runQuote(args)
	case "tiers":
		runTiers(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - wholesale cart test tool

Usage:
  cartctl <command> [options]

Commands:
  create    Start a new cart
  get       Show a cart with priced lines and totals
  add       Add a product to a cart
  update    Set the quantity of a cart line
  remove    Remove a cart line
  clear     Empty a cart
  delete    Discard a cart
  ship      Set the shipping address and optionally pick a method
  quote     Price a product at a quantity
  tiers     Show a product's discount schedule

Examples:
  # Create a cart and capture its ID
  ID=$(cartctl create -q)

  # Add six tandoors as a wholesale buyer
  cartctl add -id "$ID" -product 161 -name "Mini Electric Tandoor" -price 450 -qty 6 -wholesale

  # Quote rates and pick pickup
  cartctl ship -id "$ID" -postcode 2000 -country AU -method local_pickup:2

Run 'cartctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags every command shares.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serverURL, "server", envOr("CART_SERVER", "http://localhost:8080"), "Cart service base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the essential value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.BoolVar(&wholesale, "wholesale", false, "Price as a wholesale buyer")
	fs.StringVar(&zone, "zone", "", "Shipping zone sent in the Buyer-Context header")
	fs.Int64Var(&customerID, "customer", 0, "Customer ID sent in the Buyer-Context header")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runCreate(args []string) {
	fs := newFlagSet("create", "[options]")
	parseFlags(fs, args)

	var view handler.CartView
	if err := doRequest("POST", "/carts", nil, &view); err != nil {
		fatal("Failed to create cart: %v", err)
	}
	if quiet {
		fmt.Println(view.ID)
		return
	}
	printSuccess("Cart created")
	printCart(&view)
}

func runGet(args []string) {
	fs := newFlagSet("get", "-id <cart-id> [options]")
	var id string
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, id)

	view := cartRequest("GET", id, "", nil)
	printSuccess("Cart retrieved")
	printCart(view)
}

func runAdd(args []string) {
	fs := newFlagSet("add", "-id <cart-id> -product ID -price P [options]")
	var (
		id          string
		productID   int
		variationID int
		name        string
		price       string
		qty         int
	)
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	fs.IntVar(&productID, "product", 0, "Product ID (required)")
	fs.IntVar(&variationID, "variation", 0, "Variation ID")
	fs.StringVar(&name, "name", "", "Product name")
	fs.StringVar(&price, "price", "0", "Unit price")
	fs.IntVar(&qty, "qty", 1, "Quantity")
	parseFlags(fs, args)
	requireFlag(fs, id)
	if productID <= 0 {
		fs.Usage()
		os.Exit(1)
	}

	unit := parseAmount("price", price)
	req := handler.AddItemRequest{
		Product:  cart.Product{ID: productID, Name: name, Price: unit},
		Quantity: qty,
	}
	if variationID > 0 {
		req.Variation = &cart.Variation{ID: variationID, Price: unit}
	}

	view := cartRequest("POST", id, "/items", req)
	printSuccess("Added product %d", productID)
	printCart(view)
}

func runUpdate(args []string) {
	fs := newFlagSet("update", "-id <cart-id> -key KEY -qty N [options]")
	var (
		id  string
		key string
		qty int
	)
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	fs.StringVar(&key, "key", "", "Line key, e.g. 161 or 161-204 (required)")
	fs.IntVar(&qty, "qty", 0, "New quantity; 0 removes the line")
	parseFlags(fs, args)
	requireFlag(fs, id, key)

	view := cartRequest("PATCH", id, "/items/"+url.PathEscape(key), handler.UpdateQuantityRequest{Quantity: &qty})
	printSuccess("Line %s updated", key)
	printCart(view)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "-id <cart-id> -key KEY [options]")
	var id, key string
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	fs.StringVar(&key, "key", "", "Line key (required)")
	parseFlags(fs, args)
	requireFlag(fs, id, key)

	view := cartRequest("DELETE", id, "/items/"+url.PathEscape(key), nil)
	printSuccess("Line %s removed", key)
	printCart(view)
}

func runClear(args []string) {
	fs := newFlagSet("clear", "-id <cart-id> [options]")
	var id string
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, id)

	view := cartRequest("DELETE", id, "/items", nil)
	printSuccess("Cart cleared")
	printCart(view)
}

func runDelete(args []string) {
	fs := newFlagSet("delete", "-id <cart-id> [options]")
	var id string
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	parseFlags(fs, args)
	requireFlag(fs, id)

	if err := doRequest("DELETE", "/carts/"+url.PathEscape(id), nil, nil); err != nil {
		fatal("DELETE failed: %v", err)
	}
	printSuccess("Cart deleted")
}

func runShip(args []string) {
	fs := newFlagSet("ship", "-id <cart-id> -postcode PC [options]")
	var (
		id       string
		addr     cart.ShippingAddress
		methodID string
	)
	fs.StringVar(&id, "id", "", "Cart ID (required)")
	fs.StringVar(&addr.Postcode, "postcode", "", "Postcode (required)")
	fs.StringVar(&addr.City, "city", "", "City")
	fs.StringVar(&addr.Country, "country", "AU", "Country code")
	fs.StringVar(&methodID, "method", "", "Shipping method to select after quoting")
	parseFlags(fs, args)
	requireFlag(fs, id, addr.Postcode)

	view := cartRequest("PUT", id, "/shipping/address", addr)
	if methodID != "" {
		view = cartRequest("PUT", id, "/shipping/method", handler.SelectMethodRequest{MethodID: methodID})
	}
	if quiet {
		if m := view.Shipping.SelectedMethod; m != nil {
			fmt.Println(m.ID)
		}
		return
	}
	printSuccess("Shipping quoted for %s", addr.Postcode)
	printCart(view)
}

// =============================================================================
// PRICING COMMANDS
// =============================================================================

func runQuote(args []string) {
	fs := newFlagSet("quote", "-product ID [options]")
	var (
		productID int
		qty       int
		price     string
	)
	fs.IntVar(&productID, "product", 0, "Product ID (required)")
	fs.IntVar(&qty, "qty", 1, "Quantity")
	fs.StringVar(&price, "price", "", "Base unit price (required without a discount schedule)")
	parseFlags(fs, args)
	if productID <= 0 {
		fs.Usage()
		os.Exit(1)
	}

	q := url.Values{}
	q.Set("quantity", fmt.Sprint(qty))
	if price != "" {
		q.Set("price", parseAmountString("price", price))
	}

	var quote handler.Quote
	if err := doRequest("GET", fmt.Sprintf("/pricing/%d?%s", productID, q.Encode()), nil, &quote); err != nil {
		fatal("Failed to quote: %v", err)
	}
	if quiet {
		fmt.Println(formatMoney(quote.UnitPrice))
		return
	}
	printSuccess("%d x product %d", quote.Quantity, quote.ProductID)
	fmt.Printf("  Unit: %s%s%s (%s)\n", colorGreen, formatMoney(quote.UnitPrice), colorReset, quote.Source)
	fmt.Printf("  Total: %s\n", formatMoney(quote.Total))
	if quote.Label != "" {
		fmt.Printf("  Tier: %s\n", quote.Label)
	}
	if d := quote.Discount; d != nil && d.NextTier != nil {
		printInfo("%s", d.NextTier.Message)
	}
	if quote.Limit > 0 {
		fmt.Printf("  %sOrder limits: %d to %d%s\n", colorGray, quote.MOQ, quote.Limit, colorReset)
	} else {
		fmt.Printf("  %sMinimum order: %d%s\n", colorGray, quote.MOQ, colorReset)
	}
}

func runTiers(args []string) {
	fs := newFlagSet("tiers", "-product ID [options]")
	var productID int
	fs.IntVar(&productID, "product", 0, "Product ID (required)")
	parseFlags(fs, args)
	if productID <= 0 {
		fs.Usage()
		os.Exit(1)
	}

	var resp handler.TiersResponse
	if err := doRequest("GET", fmt.Sprintf("/pricing/%d/tiers", productID), nil, &resp); err != nil {
		fatal("Failed to get tiers: %v", err)
	}
	printSuccess("Discount schedule for product %d", productID)
	for _, t := range resp.Tiers {
		qty := fmt.Sprintf("%d+", t.MinQuantity)
		if t.MaxQuantity != nil {
			qty = fmt.Sprintf("%d-%d", t.MinQuantity, *t.MaxQuantity)
		}
		fmt.Printf("  %-8s %s%10s%s  %-20s %d%%\n", qty, colorGreen, formatMoney(t.UnitPrice), colorReset, t.Label, t.SavingsPercent)
	}
}

// =============================================================================
// HTTP
// =============================================================================

// cartRequest calls a /carts/{id} endpoint and exits on failure.
func cartRequest(method, id, suffix string, body interface{}) *handler.CartView {
	var view handler.CartView
	if err := doRequest(method, "/carts/"+url.PathEscape(id)+suffix, body, &view); err != nil {
		fatal("%s %s failed: %v", method, suffix, err)
	}
	return &view
}

func doRequest(method, path string, body, out interface{}) error {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	bc := buyer.Context{Wholesale: wholesale, Zone: zone, CustomerID: customerID}
	if h := bc.String(); h != "" {
		req.Header.Set(buyer.Header, h)
	}

	if verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Code != "" {
			return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printCart(v *handler.CartView) {
	if quiet {
		return
	}
	fmt.Printf("  ID: %s%s%s\n", colorCyan, v.ID, colorReset)
	if n := v.Notification; n != nil {
		switch n.Type {
		case cart.NotifyError:
			printError("%s", n.Message)
		case cart.NotifyWarning:
			printWarning("%s", n.Message)
		default:
			fmt.Printf("%s  ℹ %s%s\n", colorGray, n.Message, colorReset)
		}
	}
	for _, it := range v.Items {
		fmt.Printf("  %-10s %-30s x%-4d %10s  %s%s%s\n",
			it.Key, it.Name, it.Quantity, formatMoney(it.Pricing.LineTotal), colorGray, it.Pricing.Source, colorReset)
	}
	if sm := v.Shipping.SelectedMethod; sm != nil {
		fmt.Printf("  Shipping: %s (%s)\n", sm.Label, formatMoney(sm.Total))
	}
	for _, m := range v.Shipping.AvailableMethods {
		fmt.Printf("    %s- %s: %s (%s)%s\n", colorGray, m.ID, m.Label, formatMoney(m.Total), colorReset)
	}
	for _, r := range v.Shipping.RestrictedProducts {
		printWarning("Product %d cannot ship: %s", r.ProductID, r.Reason)
	}
	if v.Savings > 0 {
		fmt.Printf("  Savings: %s\n", formatMoney(v.Savings))
	}
	fmt.Printf("  Total: %s%s%s (%d items)\n", colorGreen, formatMoney(v.Total), colorReset, v.TotalItems)
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func formatMoney(v float64) string {
	return "$" + model.FormatPrice(v)
}

// parseAmount reads a non-negative money flag.
func parseAmount(name, s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		fatal("-%s must be a non-negative amount, got %q", name, s)
	}
	return model.RoundPrice(d.InexactFloat64())
}

func parseAmountString(name, s string) string {
	return model.FormatPrice(parseAmount(name, s))
}

func requireFlag(fs *flag.FlagSet, values ...string) {
	for _, v := range values {
		if v == "" {
			fs.Usage()
			os.Exit(1)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
