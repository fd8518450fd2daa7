package buyer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    Context
		wantErr bool
	}{
		{
			name:   "empty is retail",
			header: "",
			want:   Context{},
		},
		{
			name:   "whitespace only",
			header: "   ",
			want:   Context{},
		},
		{
			name:   "full",
			header: `wholesale=?1, zone="international", customer=42`,
			want:   Context{Wholesale: true, Zone: "international", CustomerID: 42},
		},
		{
			name:   "bare key is true",
			header: `wholesale`,
			want:   Context{Wholesale: true},
		},
		{
			name:   "explicit false",
			header: `wholesale=?0`,
			want:   Context{},
		},
		{
			name:   "zone as token",
			header: `zone=islands`,
			want:   Context{Zone: "islands"},
		},
		{
			name:   "unknown keys ignored",
			header: `tier="gold", wholesale=?1`,
			want:   Context{Wholesale: true},
		},
		{
			name:   "params ignored",
			header: `zone="metro";source=geoip`,
			want:   Context{Zone: "metro"},
		},
		{
			name:    "wholesale not boolean",
			header:  `wholesale="yes"`,
			wantErr: true,
		},
		{
			name:    "customer not integer",
			header:  `customer="42"`,
			wantErr: true,
		},
		{
			name:    "negative customer",
			header:  `customer=-1`,
			wantErr: true,
		},
		{
			name:    "zone as inner list",
			header:  `zone=("a" "b")`,
			wantErr: true,
		},
		{
			name:    "unterminated string",
			header:  `zone="metro`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.header)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, c := range []Context{
		{},
		{Wholesale: true},
		{Wholesale: true, Zone: "international", CustomerID: 42},
		{Zone: "islands"},
	} {
		got, err := Parse(c.String())
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", c.String(), err)
		}
		if got != c {
			t.Errorf("Parse(%q) = %+v, want %+v", c.String(), got, c)
		}
	}
	if s := (Context{}).String(); s != "" {
		t.Errorf("zero String() = %q, want empty", s)
	}
}

func TestFromContext_DefaultsToRetail(t *testing.T) {
	if got := FromContext(context.Background()); got != (Context{}) {
		t.Errorf("FromContext() = %+v, want zero", got)
	}
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen Context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Middleware(logger)(handler)

	t.Run("valid header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/carts/x", nil)
		req.Header.Set(Header, `wholesale=?1, zone="islands"`)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", w.Code)
		}
		if !seen.Wholesale || seen.Zone != "islands" {
			t.Errorf("context = %+v", seen)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		seen = Context{Wholesale: true}
		req := httptest.NewRequest("GET", "/carts/x", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusOK || seen != (Context{}) {
			t.Errorf("Status = %d, context = %+v", w.Code, seen)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/carts/x", nil)
		req.Header.Set(Header, `wholesale="maybe"`)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Status = %d, want 400", w.Code)
		}
		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Error.Code != "invalid_buyer_context" {
			t.Errorf("Error code = %s", resp.Error.Code)
		}
	})
}
