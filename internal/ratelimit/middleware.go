package ratelimit

import (
	"net"
	"net/http"
	"strconv"
)

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by remote address without the port.
// Combine with chi's RealIP middleware when running behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit. Rejected requests get a Retry-After
// header and are handed to rejected, or a plain 429 Too Many Requests when it is nil.
func (krl *KeyedRateLimiter) Middleware(key KeyFunc, rejected http.Handler) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	retryAfter := "1"
	if krl.limit > 0 && krl.limit < 1 {
		retryAfter = strconv.Itoa(int(1/float64(krl.limit)) + 1)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !krl.Allow(key(r)) {
				w.Header().Set("Retry-After", retryAfter)
				if rejected != nil {
					rejected.ServeHTTP(w, r)
					return
				}
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
