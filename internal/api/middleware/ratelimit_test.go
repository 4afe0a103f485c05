package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/unibazaar/marketplace/internal/api/middleware"
)

func limitedRouter(rps int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimitMiddleware(rps))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func fire(r *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr.Code
}

// With rps=1 the burst allowance floors at 10; a tight loop should get
// exactly the allowance through and 429 for the rest, since almost no credit
// refills within the loop.
func TestRateLimit_RejectsAfterAllowanceExhausted(t *testing.T) {
	r := limitedRouter(1)

	var ok, limited int
	for i := 0; i < 15; i++ {
		switch fire(r, "192.0.2.1:1234") {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		}
	}

	if ok != 10 {
		t.Errorf("allowed = %d, want 10", ok)
	}
	if limited != 5 {
		t.Errorf("rejected = %d, want 5", limited)
	}
}

func TestRateLimit_BudgetsArePerIP(t *testing.T) {
	r := limitedRouter(1)

	// Exhaust the first IP's allowance.
	for i := 0; i < 12; i++ {
		fire(r, "192.0.2.1:1234")
	}
	if code := fire(r, "192.0.2.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("exhausted IP got %d, want 429", code)
	}

	// A different IP is unaffected.
	if code := fire(r, "198.51.100.7:5678"); code != http.StatusOK {
		t.Errorf("fresh IP got %d, want 200", code)
	}
}
