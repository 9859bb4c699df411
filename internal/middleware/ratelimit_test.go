package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitCapsAdSubmissions(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	submit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/ads", nil)
		req.RemoteAddr = "203.0.113.1:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := submit(); rec.Code != http.StatusCreated {
			t.Fatalf("submission %d status = %d, want 201", i+1, rec.Code)
		}
	}

	rec := submit()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("over-limit response missing Retry-After header")
	}
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("over-limit body is not JSON: %v", err)
	}
	if body.Success || body.Error != "rate_limited" {
		t.Fatalf("over-limit body = %+v, want success=false error=rate_limited", body)
	}
}

func TestRateLimitIsolatesSubmitters(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	submit := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/ads", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := submit("203.0.113.1:4000"); got != http.StatusCreated {
		t.Fatalf("first submitter status = %d, want 201", got)
	}
	if got := submit("203.0.113.1:4000"); got != http.StatusTooManyRequests {
		t.Fatalf("first submitter second post = %d, want 429", got)
	}
	if got := submit("203.0.113.2:4000"); got != http.StatusCreated {
		t.Fatalf("second submitter status = %d, want 201", got)
	}
}

func TestSubmitterIP(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded hop wins",
			header:     "203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "first parseable hop",
			header:     " bogus , 203.0.113.1 ",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "no forwarded uses connection",
			header:     "",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "ipv6 connection",
			header:     "",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::2",
		},
		{
			name:       "connection without port",
			header:     "",
			remoteAddr: "203.0.113.1",
			want:       "203.0.113.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/ads", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.header != "" {
				req.Header.Set("X-Forwarded-For", tc.header)
			}
			if got := submitterIP(req); got != tc.want {
				t.Fatalf("submitterIP() = %q, want %q", got, tc.want)
			}
		})
	}
}
