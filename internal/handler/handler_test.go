package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/rules"
	"wholesale-cart/internal/session"
	"wholesale-cart/internal/shipping"
	"wholesale-cart/internal/storage"
)

func testHandler(t *testing.T, calc shipping.Calculator) (*Handler, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := rules.New(rules.Default())
	if err != nil {
		t.Fatalf("rules.New() error = %v", err)
	}
	if calc == nil {
		calc = &shipping.Mock{}
	}
	reg := session.NewRegistry(cart.Deps{
		Rules:    engine,
		Storage:  storage.NewMemory(),
		Shipping: calc,
		Logger:   logger,
	})
	h := New(reg, engine, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, buyer.Middleware(logger)(mux)
}

// do sends a JSON request and decodes a JSON response into out.
func do(t *testing.T, srv http.Handler, method, path string, body interface{}, out interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, _ := json.Marshal(b)
			rd = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decoding response: %v\nBody: %s", method, path, err, w.Body.String())
		}
	}
	return w
}

func createCart(t *testing.T, srv http.Handler) string {
	t.Helper()
	var v CartView
	w := do(t, srv, "POST", "/carts", nil, &v)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /carts status = %d, want 201\nBody: %s", w.Code, w.Body.String())
	}
	return v.ID
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v\nBody: %s", err, w.Body.String())
	}
	return resp.Error.Code
}

var tandoorReq = AddItemRequest{
	Product:  cart.Product{ID: 161, Name: "Mini Electric Tandoor", Price: 450, Categories: []string{"ovens"}},
	Quantity: 6,
}

func TestHandleHealth(t *testing.T) {
	_, srv := testHandler(t, nil)

	for _, path := range []string{"/health", "/healthz"} {
		var resp healthResponse
		w := do(t, srv, "GET", path, nil, &resp)
		if w.Code != http.StatusOK || resp.Status != "ok" {
			t.Errorf("GET %s = %d %+v", path, w.Code, resp)
		}
	}
}

func TestCreateAndGetCart(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	var v CartView
	w := do(t, srv, "GET", "/carts/"+id, nil, &v)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d\nBody: %s", w.Code, w.Body.String())
	}
	if v.ID != id || len(v.Items) != 0 || v.Total != 0 {
		t.Errorf("view = %+v", v)
	}
	if v.Shipping.AvailableMethods == nil || v.Shipping.RestrictedProducts == nil {
		t.Error("shipping arrays should be empty, not null")
	}
}

func TestDeleteCart(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)
	do(t, srv, "POST", "/carts/"+id+"/items", tandoorReq, nil)

	w := do(t, srv, "DELETE", "/carts/"+strings.ToUpper(id), nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204\nBody: %s", w.Code, w.Body.String())
	}

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"get after delete", "GET", "/carts/" + id, http.StatusNotFound, "NOT_FOUND"},
		{"delete twice", "DELETE", "/carts/" + id, http.StatusNotFound, "NOT_FOUND"},
		{"malformed id", "DELETE", "/carts/basket", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, nil, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("Code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestGetCartErrors(t *testing.T) {
	_, srv := testHandler(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"not a uuid", "/carts/basket", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", "/carts/7d444840-9dc0-11d1-b245-5ffdce74fad2", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "GET", tt.path, nil, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := errorCode(t, w); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestAddItem(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	var v CartView
	w := do(t, srv, "POST", "/carts/"+id+"/items", tandoorReq, &v)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d\nBody: %s", w.Code, w.Body.String())
	}
	if len(v.Items) != 1 {
		t.Fatalf("Items = %+v", v.Items)
	}
	line := v.Items[0]
	if line.Key != "161" || line.Quantity != 6 || line.Name != "Mini Electric Tandoor" || line.Source != cart.SourceCatalog {
		t.Errorf("line = %+v", line)
	}
	if line.Pricing.UnitPrice != 420 || line.Pricing.Source != cart.PricedByQuantityDiscount {
		t.Errorf("pricing = %+v", line.Pricing)
	}
	if v.Subtotal != 2520 || v.Savings != 180 {
		t.Errorf("subtotal = %v savings = %v", v.Subtotal, v.Savings)
	}
}

func TestAddItem_MOQNotification(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	var v CartView
	do(t, srv, "POST", "/carts/"+id+"/items", AddItemRequest{
		Product:  cart.Product{ID: 300, Name: "Skewer Set", Price: 20},
		Quantity: 2,
	}, &v)

	if v.Items[0].Quantity != 6 {
		t.Errorf("Quantity = %d, want raised to 6", v.Items[0].Quantity)
	}
	if v.Notification == nil || v.Notification.Type != cart.NotifyInfo {
		t.Fatalf("Notification = %+v", v.Notification)
	}

	v = CartView{}
	do(t, srv, "DELETE", "/carts/"+id+"/notification", nil, &v)
	if v.Notification != nil {
		t.Errorf("Notification after clear = %+v", v.Notification)
	}
}

func TestAddItem_Validation(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	tests := []struct {
		name string
		body interface{}
	}{
		{"invalid JSON", "{not json"},
		{"missing product", map[string]interface{}{"quantity": 3}},
		{"zero quantity", AddItemRequest{Product: cart.Product{ID: 300, Price: 20}}},
		{"negative price", AddItemRequest{Product: cart.Product{ID: 300, Price: -1}, Quantity: 1}},
		{"bad variation", AddItemRequest{Product: cart.Product{ID: 300, Price: 20}, Variation: &cart.Variation{}, Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/carts/"+id+"/items", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400\nBody: %s", w.Code, w.Body.String())
			}
			if got := errorCode(t, w); got != "VALIDATION_ERROR" {
				t.Errorf("code = %s", got)
			}
		})
	}
}

func TestAddItem_BodyTooLarge(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	big := `{"product":{"id":300,"name":"` + strings.Repeat("x", MaxRequestBodySize) + `"},"quantity":1}`
	w := do(t, srv, "POST", "/carts/"+id+"/items", big, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestWholesaleBuyerContext(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)
	skewers := AddItemRequest{Product: cart.Product{ID: 300, Name: "Skewer Set", Price: 20}, Quantity: 60}
	do(t, srv, "POST", "/carts/"+id+"/items", skewers, nil)

	var retail, trade CartView
	do(t, srv, "GET", "/carts/"+id, nil, &retail)
	do(t, srv, "GET", "/carts/"+id, nil, &trade, buyer.Header, "wholesale=?1")

	if retail.Subtotal != 1200 || retail.Wholesale {
		t.Errorf("retail subtotal = %v wholesale=%v", retail.Subtotal, retail.Wholesale)
	}
	if trade.Subtotal != 1080 || !trade.Wholesale {
		t.Errorf("wholesale subtotal = %v wholesale=%v", trade.Subtotal, trade.Wholesale)
	}
	if trade.Items[0].Pricing.Source != cart.PricedByWholesaleTier {
		t.Errorf("pricing source = %s", trade.Items[0].Pricing.Source)
	}

	w := do(t, srv, "GET", "/carts/"+id, nil, nil, buyer.Header, `wholesale="sure"`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed buyer header status = %d, want 400", w.Code)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)
	do(t, srv, "POST", "/carts/"+id+"/items", AddItemRequest{
		Product:  cart.Product{ID: 175, Name: "Charcoal Grill", Price: 80},
		Quantity: 10,
	}, nil)

	var v CartView
	w := do(t, srv, "PATCH", "/carts/"+id+"/items/175", map[string]int{"quantity": 100}, &v)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d\nBody: %s", w.Code, w.Body.String())
	}
	if v.Items[0].Quantity != 24 || v.Notification == nil || v.Notification.Type != cart.NotifyWarning {
		t.Errorf("after clamp: qty=%d note=%+v", v.Items[0].Quantity, v.Notification)
	}

	w = do(t, srv, "PATCH", "/carts/"+id+"/items/999", map[string]int{"quantity": 3}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("PATCH unknown line status = %d, want 404", w.Code)
	}
	w = do(t, srv, "PATCH", "/carts/"+id+"/items/175", map[string]int{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("PATCH without quantity status = %d, want 400", w.Code)
	}

	do(t, srv, "DELETE", "/carts/"+id+"/items/175", nil, &v)
	if len(v.Items) != 0 {
		t.Errorf("Items after DELETE = %+v", v.Items)
	}
}

func TestReorderAndClear(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	var v CartView
	w := do(t, srv, "POST", "/carts/"+id+"/reorder", ReorderRequest{Items: []cart.LineItem{
		{ProductID: 175, Name: "Charcoal Grill", Quantity: 30, Price: 78.5},
		{ProductID: 300, Name: "Skewer Set", Quantity: 2, Price: 20},
	}}, &v)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d\nBody: %s", w.Code, w.Body.String())
	}
	if len(v.Items) != 2 || v.Items[0].Quantity != 30 || v.Items[0].Source != cart.SourceSnapshot {
		t.Errorf("Items = %+v", v.Items)
	}

	w = do(t, srv, "POST", "/carts/"+id+"/reorder", ReorderRequest{Items: []cart.LineItem{{Quantity: 1}}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("reorder without product id status = %d, want 400", w.Code)
	}

	do(t, srv, "DELETE", "/carts/"+id+"/items", nil, &v)
	if len(v.Items) != 0 || v.TotalItems != 0 {
		t.Errorf("after clear = %+v", v)
	}
}

func TestVisibility(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	steps := []struct {
		action string
		want   bool
	}{
		{"open", true},
		{"toggle", false},
		{"TOGGLE", true},
		{"close", false},
	}
	for _, s := range steps {
		var v CartView
		w := do(t, srv, "POST", "/carts/"+id+"/visibility", VisibilityRequest{Action: s.action}, &v)
		if w.Code != http.StatusOK || v.IsOpen != s.want {
			t.Errorf("%s: status=%d is_open=%v, want %v", s.action, w.Code, v.IsOpen, s.want)
		}
	}

	w := do(t, srv, "POST", "/carts/"+id+"/visibility", VisibilityRequest{Action: "flip"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", w.Code)
	}
}

func TestShippingFlow(t *testing.T) {
	calc := &shipping.Mock{
		CalculateFunc: func(ctx context.Context, req shipping.Request) (*shipping.Result, error) {
			return &shipping.Result{
				Success: true,
				AvailableMethods: []shipping.Method{
					{ID: "flat_rate:1", Label: "Flat Rate", Cost: 25, Total: 27.5},
					{ID: "local_pickup:2", Label: "Pickup", ExWarehouse: true},
				},
				MinimumOrderMet: true,
			}, nil
		},
	}
	_, srv := testHandler(t, calc)
	id := createCart(t, srv)
	do(t, srv, "POST", "/carts/"+id+"/items", tandoorReq, nil)
	do(t, srv, "POST", "/carts/"+id+"/items", AddItemRequest{
		Product:  cart.Product{ID: 175, Name: "Charcoal Grill", Price: 80, Categories: []string{"charcoal"}},
		Quantity: 6,
	}, nil)

	var v CartView
	w := do(t, srv, "PUT", "/carts/"+id+"/shipping/address",
		cart.ShippingAddress{Postcode: "0600", Country: "NZ"}, &v,
		buyer.Header, `zone="international"`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT address status = %d\nBody: %s", w.Code, w.Body.String())
	}
	if v.Shipping.SelectedMethod == nil || v.Shipping.SelectedMethod.ID != "flat_rate:1" {
		t.Errorf("selected = %+v", v.Shipping.SelectedMethod)
	}
	if v.Shipping.Address == nil || v.Shipping.Address.Zone != "international" {
		t.Errorf("address = %+v, want zone from buyer context", v.Shipping.Address)
	}
	if len(v.Shipping.RestrictedProducts) != 1 || v.Shipping.RestrictedProducts[0].ProductID != 175 {
		t.Errorf("restricted = %+v", v.Shipping.RestrictedProducts)
	}
	if v.ShippingCost != 27.5 || v.Total != 2520+480+27.5 {
		t.Errorf("shipping = %v total = %v", v.ShippingCost, v.Total)
	}

	do(t, srv, "PUT", "/carts/"+id+"/shipping/method", SelectMethodRequest{MethodID: "local_pickup:2"}, &v)
	if v.ShippingCost != 0 {
		t.Errorf("pickup cost = %v", v.ShippingCost)
	}
	w = do(t, srv, "PUT", "/carts/"+id+"/shipping/method", SelectMethodRequest{MethodID: "express"}, nil)
	if w.Code != http.StatusConflict || errorCode(t, w) != "SHIPPING_METHOD_UNAVAILABLE" {
		t.Errorf("unknown method status = %d, want 409", w.Code)
	}

	w = do(t, srv, "POST", "/carts/"+id+"/shipping/calculate", nil, &v)
	if w.Code != http.StatusOK || len(calc.Calls()) != 2 {
		t.Errorf("recalculate status = %d calls = %d", w.Code, len(calc.Calls()))
	}

	v = CartView{}
	do(t, srv, "DELETE", "/carts/"+id+"/shipping", nil, &v)
	if v.Shipping.Address != nil || v.Shipping.SelectedMethod != nil || len(v.Shipping.AvailableMethods) != 0 {
		t.Errorf("after clear = %+v", v.Shipping)
	}
}

func TestSetShippingAddress_RequiresPostcode(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)

	w := do(t, srv, "PUT", "/carts/"+id+"/shipping/address", cart.ShippingAddress{Country: "AU"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestQuote(t *testing.T) {
	_, srv := testHandler(t, nil)

	tests := []struct {
		name       string
		path       string
		headers    []string
		wantStatus int
		wantUnit   float64
		wantSource cart.PricingSource
	}{
		{"discount schedule", "/pricing/161?quantity=60", nil, 200, 372.4, cart.PricedByQuantityDiscount},
		{"default quantity", "/pricing/161", nil, 200, 450, cart.PricedByQuantityDiscount},
		{"wholesale tier", "/pricing/300?quantity=60&price=20", []string{buyer.Header, "wholesale"}, 200, 18, cart.PricedByWholesaleTier},
		{"retail base", "/pricing/300?quantity=60&price=20", nil, 200, 20, cart.PricedByBase},
		{"price required", "/pricing/300?quantity=6", nil, 400, 0, ""},
		{"bad quantity", "/pricing/161?quantity=0", nil, 400, 0, ""},
		{"bad price", "/pricing/300?price=abc", nil, 400, 0, ""},
		{"bad product", "/pricing/x", nil, 400, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quote
			w := do(t, srv, "GET", tt.path, nil, &q, tt.headers...)
			if w.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != 200 {
				return
			}
			if q.UnitPrice != tt.wantUnit || q.Source != tt.wantSource {
				t.Errorf("quote = %+v", q)
			}
		})
	}
}

func TestQuote_IncludesLimits(t *testing.T) {
	_, srv := testHandler(t, nil)
	var q Quote
	do(t, srv, "GET", "/pricing/175?quantity=6&price=80", nil, &q)
	if q.Limit != 24 || q.MOQ != 6 {
		t.Errorf("limit = %d moq = %d", q.Limit, q.MOQ)
	}
}

func TestTiers(t *testing.T) {
	_, srv := testHandler(t, nil)

	var resp TiersResponse
	w := do(t, srv, "GET", "/pricing/161/tiers", nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if resp.ProductID != 161 || len(resp.Tiers) != 6 {
		t.Errorf("tiers = %+v", resp)
	}

	w = do(t, srv, "GET", "/pricing/300/tiers", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("no schedule status = %d, want 404", w.Code)
	}
}

func TestReplaceItems(t *testing.T) {
	_, srv := testHandler(t, nil)
	id := createCart(t, srv)
	skewers := cart.Product{ID: 300, Name: "Skewer Set", Price: 20}
	do(t, srv, "POST", "/carts/"+id+"/items", tandoorReq, nil)
	do(t, srv, "POST", "/carts/"+id+"/items", AddItemRequest{Product: skewers, Quantity: 6}, nil)

	var v CartView
	w := do(t, srv, "PUT", "/carts/"+id+"/items", ReplaceItemsRequest{Items: []AddItemRequest{
		{Product: skewers, Quantity: 12},
		{Product: cart.Product{ID: 175, Name: "Charcoal Grill", Price: 80}, Quantity: 40},
	}}, &v)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d\nBody: %s", w.Code, w.Body.String())
	}

	got := map[string]int{}
	for _, it := range v.Items {
		got[it.Key] = it.Quantity
	}
	want := map[string]int{"300": 12, "175": 24}
	if len(got) != len(want) || got["300"] != 12 || got["175"] != 24 {
		t.Errorf("lines = %v, want %v (175 clamped to its limit)", got, want)
	}
	if v.Notification == nil || v.Notification.Type != cart.NotifyWarning {
		t.Errorf("Notification = %+v, want limit warning", v.Notification)
	}

	w = do(t, srv, "PUT", "/carts/"+id+"/items", ReplaceItemsRequest{Items: []AddItemRequest{{Product: skewers}}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero quantity status = %d, want 400", w.Code)
	}
}
