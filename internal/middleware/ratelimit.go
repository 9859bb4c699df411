package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type window struct {
	count int
	reset time.Time
}

// RateLimit caps ad submissions per client IP over a fixed window. Each model
// analysis costs real money, so the ingest endpoint is throttled before a
// request ever reaches the queue. Rejections carry the handlers' JSON
// envelope and a Retry-After hint.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	var mu sync.Mutex
	windows := make(map[string]*window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := submitterIP(r)
			now := time.Now()

			mu.Lock()
			win, ok := windows[ip]
			if !ok || now.After(win.reset) {
				win = &window{reset: now.Add(per)}
				windows[ip] = win
			}
			if win.count >= limit {
				retryAfter := win.reset
				mu.Unlock()
				rejectRateLimited(w, now, retryAfter)
				return
			}
			win.count++
			mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, now, reset time.Time) {
	secs := int(reset.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"success":false,"error":"rate_limited","message":"too many ad submissions, retry later"}`))
}

// submitterIP resolves the client behind the usual proxy headers. The first
// parseable X-Forwarded-For hop wins; otherwise the connection address is
// used as-is.
func submitterIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
