// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	RequestLimit int
	WindowSize   time.Duration
	// KeyFunc defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
	// Whitelist lists client IPs that bypass the limit.
	Whitelist []string
}

// RateLimit applies a sliding-window limit using httprate.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	exempt := make(map[string]bool, len(cfg.Whitelist))
	for _, ip := range cfg.Whitelist {
		exempt[ip] = true
	}
	retryAfter := strconv.Itoa(max(1, int(cfg.WindowSize.Seconds())))

	limiter := httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"system/rate_limited","title":"Too Many Requests","status":429,"code":"RATE_LIMITED"}`))
		}),
	)

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		if len(exempt) == 0 {
			return limited
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && exempt[host] {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// APIRateLimit limits each client IP to rps requests per second with burst
// extra headroom inside a one-second window.
func APIRateLimit(rps, burst int, whitelist []string) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 20
	}
	return RateLimit(RateLimitConfig{
		RequestLimit: rps + max(0, burst),
		WindowSize:   time.Second,
		Whitelist:    whitelist,
	})
}
