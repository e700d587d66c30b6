package api

import (
	"net/http"

	"github.com/listenupapp/listenup-player/internal/http/response"
	"github.com/listenupapp/listenup-player/internal/ratelimit"
)

// rateLimit throttles each client address. RealIP runs first, so RemoteAddr
// already reflects X-Forwarded-For and X-Real-IP.
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	rejected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Warn("Rate limit exceeded",
			"ip", ratelimit.ClientIP(r),
			"path", r.URL.Path,
		)
		response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
	})
	return s.limiter.Middleware(ratelimit.ClientIP, rejected)
}
