package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func doRequest(h http.Handler, remoteAddr string, headers map[string]string) int {
	r := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	r.RemoteAddr = remoteAddr
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBurstThenLimited(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 2, time.Minute, nil)
	h := l.Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234", nil))
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234", nil))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1234", nil))
}

func TestLimitsArePerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, nil)
	h := l.Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234", nil))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1234", nil))
	// A different client still has its own bucket.
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1234", nil))
}

func TestForwardedForIgnoredFromUntrustedProxy(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, []string{"192.168.1.1"})
	h := l.Middleware()(okHandler())

	// 10.0.0.9 is not a trusted proxy, so the spoofed header must not give
	// it fresh buckets.
	headers := map[string]string{"X-Forwarded-For": "1.1.1.1"}
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.9:1234", headers))
	headers["X-Forwarded-For"] = "2.2.2.2"
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.9:1234", headers))
}

func TestForwardedForHonoredFromTrustedProxy(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, []string{"192.168.1.0/24"})
	h := l.Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(h, "192.168.1.1:1234",
		map[string]string{"X-Forwarded-For": "1.1.1.1"}))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "192.168.1.1:1234",
		map[string]string{"X-Forwarded-For": "1.1.1.1"}))
	// A different real client behind the same proxy is not affected.
	assert.Equal(t, http.StatusOK, doRequest(h, "192.168.1.1:1234",
		map[string]string{"X-Forwarded-For": "3.3.3.3"}))
}
