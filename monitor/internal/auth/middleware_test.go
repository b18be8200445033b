package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, target, header, key string) int {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		key    string
		target string
		sent   string
		want   int
	}{
		{"mode none passes through", "none", "secret", "/api/v1/stats", "", http.StatusOK},
		{"empty key passes through", "apikey", "", "/api/v1/stats", "", http.StatusOK},
		{"correct key", "apikey", "secret", "/api/v1/stats", "secret", http.StatusOK},
		{"wrong key", "apikey", "secret", "/api/v1/stats", "wrong", http.StatusUnauthorized},
		{"missing key", "apikey", "secret", "/api/v1/stats", "", http.StatusUnauthorized},
		{"query param", "apikey", "secret", "/ws/stream?api_key=secret", "", http.StatusOK},
		{"wrong query param", "apikey", "secret", "/ws/stream?api_key=nope", "", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKey(tc.mode, "x-api-key", tc.key)(okHandler)
			if got := serve(h, tc.target, "x-api-key", tc.sent); got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAPIKey_CustomHeader(t *testing.T) {
	h := APIKey("apikey", "x-bw-key", "secret")(okHandler)
	if got := serve(h, "/", "x-bw-key", "secret"); got != http.StatusOK {
		t.Errorf("custom header: status = %d, want 200", got)
	}
	if got := serve(h, "/", "x-api-key", "secret"); got != http.StatusUnauthorized {
		t.Errorf("default header on custom config: status = %d, want 401", got)
	}
}
