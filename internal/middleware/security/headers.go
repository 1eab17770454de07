package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ChartAssetsHost serves the echarts scripts referenced by the chart page.
const ChartAssetsHost = "https://go-echarts.github.io"

type HeadersConfig struct {
	// CSP directives, joined with "; ".
	CSP []string

	// HSTS is sent over TLS only; zero disables it.
	HSTS                  time.Duration
	HSTSIncludeSubdomains bool

	// Fixed are set verbatim on every response.
	Fixed map[string]string
}

// DefaultHeadersConfig allows same-origin content plus the chart assets.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: []string{
			"default-src 'self'",
			"script-src 'self' 'unsafe-inline' " + ChartAssetsHost,
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data:",
			"object-src 'none'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
		},
		HSTS:                  365 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,
		Fixed: map[string]string{
			"X-Content-Type-Options": "nosniff",
			"X-Frame-Options":        "DENY",
			"Referrer-Policy":        "strict-origin-when-cross-origin",
			"Permissions-Policy":     "geolocation=(), microphone=(), camera=(), payment=()",
		},
	}
}

// Headers returns middleware setting the configured headers. Values are
// rendered once up front.
func Headers(cfg HeadersConfig) func(http.Handler) http.Handler {
	static := make(http.Header, len(cfg.Fixed)+1)
	for name, value := range cfg.Fixed {
		static.Set(name, value)
	}
	if len(cfg.CSP) > 0 {
		static.Set("Content-Security-Policy", strings.Join(cfg.CSP, "; "))
	}

	var hsts string
	if secs := int64(cfg.HSTS / time.Second); secs > 0 {
		hsts = "max-age=" + strconv.FormatInt(secs, 10)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, values := range static {
				h.Set(name, values[0])
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
