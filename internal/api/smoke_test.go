// Package api_test runs HTTP-level smoke tests using net/http/httptest.
// These tests do NOT require a PostgreSQL database — they verify:
//   - Gin router routing and middleware wiring
//   - Request validation error responses (400)
//   - JWT auth middleware (401 without token, 401 with bad token)
//   - Response format consistency (success/error envelope)
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unibazaar/marketplace/internal/api"
	"github.com/unibazaar/marketplace/internal/config"
	"github.com/unibazaar/marketplace/internal/service"
	"github.com/unibazaar/marketplace/internal/ws"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:  "development",
			Port: "8080",
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-abcdefghijklmnop",
			RefreshSecret: "test-refresh-secret-abcdefghijklmnop",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
		},
		Feed: config.FeedConfig{
			DefaultLimit:      20,
			MaxLimit:          100,
			ReconcileInterval: 5 * time.Minute,
			SourceTimeout:     3 * time.Second,
		},
	}
}

// buildTestRouter creates a Gin engine with a real AuthService (no DB needed
// for token parsing) and nil for everything that requires a DB.
func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testCfg()
	// NewAuthService with nil repo works for ParseAccessToken (secret-only op)
	authSvc := service.NewAuthService(nil, cfg)

	r := api.SetupRouter(api.RouterDeps{
		AuthSvc:    authSvc,
		ListingSvc: nil,
		BidSvc:     nil,
		FeedSvc:    nil,
		UserRepo:   nil,
		Hub:        nil,
		Cfg:        cfg,
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v, body: %s", err, rr.Body.String())
	}
	return m
}

// ── /health ───────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

// With a hub wired in, /health also reports the live WebSocket client count.
func TestHealthReportsWsClients(t *testing.T) {
	cfg := testCfg()
	authSvc := service.NewAuthService(nil, cfg)
	hub := ws.NewHub(nil, nil)

	h := api.SetupRouter(api.RouterDeps{
		AuthSvc: authSvc,
		Hub:     hub,
		Cfg:     cfg,
	})

	rr := do(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	count, ok := body["ws_clients"]
	if !ok {
		t.Fatal("health response missing ws_clients")
	}
	if count != float64(0) {
		t.Errorf("ws_clients = %v, want 0", count)
	}
}

// ── Auth endpoints — validation layer ─────────────────────────────────────────

func TestRegister_MissingFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/register", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/auth/register empty body = %d, want 400", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false {
		t.Errorf("response.success should be false on error, got %v", body["success"])
	}
	if body["code"] == nil {
		t.Errorf("error envelope missing 'code', got: %v", body)
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"username":"testuser","email":"notanemail","password":"password123"}`
	rr := do(t, h, http.MethodPost, "/api/auth/register", payload, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("register with invalid email = %d, want 400", rr.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/login", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/auth/login empty = %d, want 400", rr.Code)
	}
}

// ── JWT auth middleware (no token → 401) ──────────────────────────────────────

func TestMe_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me without token = %d, want 401", rr.Code)
	}
}

func TestMyBids_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/bids/my", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/bids/my without token = %d, want 401", rr.Code)
	}
}

func TestPlaceBid_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"listing_id":"11111111-1111-1111-1111-111111111111","amount":"100.00"}`
	rr := do(t, h, http.MethodPost, "/api/bids", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/bids without token = %d, want 401", rr.Code)
	}
}

func TestCreateListing_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"title":"calc textbook","price":"40.00"}`
	rr := do(t, h, http.MethodPost, "/api/listings", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/listings without token = %d, want 401", rr.Code)
	}
}

func TestWithdrawListing_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost,
		"/api/listings/11111111-1111-1111-1111-111111111111/withdraw", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("withdraw listing without token = %d, want 401", rr.Code)
	}
}

// ── JWT auth middleware (invalid token → 401) ─────────────────────────────────

func TestMe_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/me", "", map[string]string{
		"Authorization": "Bearer not.a.valid.jwt",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me with bad JWT = %d, want 401", rr.Code)
	}
}

func TestPlaceBid_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"listing_id":"11111111-1111-1111-1111-111111111111","amount":"100.00"}`
	// A well-formed JWT header+payload but wrong secret → ParseAccessToken will reject it
	fakeJWT := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9" +
		".eyJzdWIiOiIxMjM0NTY3ODkwIiwidHlwZSI6ImFjY2VzcyJ9" +
		".BADSIG"
	rr := do(t, h, http.MethodPost, "/api/bids", payload, map[string]string{
		"Authorization": "Bearer " + fakeJWT,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/bids with invalid JWT = %d, want 401", rr.Code)
	}
}

// ── Public read endpoints — parameter validation ──────────────────────────────

func TestFeed_InvalidMinPrice_Returns400(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/feed?min_price=abc", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET /api/feed with bad min_price = %d, want 400", rr.Code)
	}
}

func TestListingBids_InvalidID_Returns400(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/listings/not-a-uuid/bids", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET bids with bad listing id = %d, want 400", rr.Code)
	}
}

// ── CORS preflight ────────────────────────────────────────────────────────────

func TestCORSPreflight(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodOptions, "/api/feed", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "GET",
	})
	if rr.Code != http.StatusNoContent {
		t.Errorf("OPTIONS preflight = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight response missing Access-Control-Allow-Origin")
	}
}
