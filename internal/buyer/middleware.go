package buyer

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware parses the Buyer-Context header into the request context.
// Requests with a malformed header are rejected with 400.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			c, err := Parse(header)
			if err != nil {
				logger.Warn("invalid buyer context",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeError(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), c)))
		})
	}
}

func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = "invalid_buyer_context"
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}
