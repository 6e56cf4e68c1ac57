// Package httpx provides the shared HTTP clients used by the API-facing
// packages.
package httpx

import (
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultTimeout bounds one-shot API calls such as image generation or
// release lookups. Streaming requests manage their lifetime through
// per-request contexts instead.
const DefaultTimeout = 120 * time.Second

// NewStreamingClient returns an HTTP client suitable for long-lived SSE
// responses. It carries no global timeout and keeps raw bytes; SSE with
// gzip can be problematic across proxies. A CookieJar is attached so
// gateways that issue session cookies keep working.
func NewStreamingClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		// Timeout is managed by per-request contexts.
		Timeout: 0,
		Transport: &http.Transport{
			DisableCompression: true,
		},
		Jar: jar,
	}
}

// NewDefaultClient returns a bounded HTTP client for one-shot API calls.
func NewDefaultClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}
