package router

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ursol-insurance/internal/config"
	"github.com/iliyamo/ursol-insurance/internal/handler"
	"github.com/iliyamo/ursol-insurance/internal/ledger"
	"github.com/iliyamo/ursol-insurance/internal/middleware"
	"github.com/iliyamo/ursol-insurance/internal/repository"
	"github.com/iliyamo/ursol-insurance/internal/service"
	"github.com/iliyamo/ursol-insurance/internal/utils"
	"github.com/iliyamo/ursol-insurance/internal/worldcoin"
)

type api struct {
	e     *echo.Echo
	store *repository.MemoryStore
}

func testConfig() config.Config {
	return config.Config{
		DefaultUserID:   repository.DemoUserID,
		AccessTTLMin:    5,
		TreasuryAddress: "0x742d35cc6639c0532fda7df8e0fd7b30a9b7a34c",
	}
}

func newAPI(t *testing.T, cfg config.Config, rdb *redis.Client) *api {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()
	require.NoError(t, repository.Seed(t.Context(), store, time.Now().UTC().Add(-time.Hour)))

	// No app id: proofs fall back to mock verification, transactions are
	// not looked up.
	portal := worldcoin.NewClient("http://127.0.0.1:1", "", "", time.Second, log)
	locks := service.NewLocker(rdb, service.LockLease(time.Second))
	accounts := service.NewAccounts(store, locks, log)

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger(log))
	RegisterOps(e, handler.Health(nil))
	RegisterAPI(e, Handlers{
		User:      handler.NewUserHandler(accounts, cfg.JWTSecret, cfg.AccessTTLMin),
		Portfolio: handler.NewPortfolioHandler(accounts),
		Payment:   handler.NewPaymentHandler(service.NewPayments(store, locks, portal, ledger.NewSimulated(), cfg.TreasuryAddress, log)),
		Verify:    handler.NewVerifyHandler(service.NewVerification(store, portal, true, log)),
		Dashboard: handler.NewDashboardHandler(service.NewDashboard(store)),
	}, cfg, rdb, log)
	return &api{e: e, store: store}
}

func (a *api) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (a *api) list(t *testing.T, path string) []map[string]any {
	t.Helper()
	rec, _ := a.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUserAndBalance(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	rec, user := a.do(t, http.MethodGet, "/api/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "15750.00", user["ursolBalance"])
	assert.Equal(t, true, user["isWorldIdVerified"])

	rec, user = a.do(t, http.MethodPatch, "/api/user/balance", `{"amount":"250","operation":"add"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "16000.00", user["ursolBalance"])

	rec, body := a.do(t, http.MethodPatch, "/api/user/balance", `{"amount":"1","operation":"divide"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "operation: must be one of add, subtract, set", body["message"])

	rec, body = a.do(t, http.MethodPatch, "/api/user/balance", `{"amount":"1e3000000","operation":"add"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount: must be a valid number", body["message"])

	rec, _ = a.do(t, http.MethodPatch, "/api/user/balance", `{"amount":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioRoutes(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	assert.Len(t, a.list(t, "/api/tiers"), 3)
	assert.Len(t, a.list(t, "/api/policies"), 2)

	rec, policy := a.do(t, http.MethodPost, "/api/policies", `{"tier":"basic"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "50000", policy["coverageAmount"])

	rec, sp := a.do(t, http.MethodPost, "/api/staking/stake-1/claim", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", sp["pendingRewards"])

	rec, _ = a.do(t, http.MethodPost, "/api/staking/stake-9/claim", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := a.do(t, http.MethodPost, "/api/staking", `{"type":"insurance_pool","amount":"0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Amount must be greater than 0", body["message"])

	rec, _ = a.do(t, http.MethodPost, "/api/loans", `{"policyId":"policy-1","amount":"500"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.list(t, "/api/loans"), 2)

	rec, _ = a.do(t, http.MethodPost, "/api/beneficiaries", `{"encryptedData":"ZW5j","onChainSettings":{"splits":[100]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.list(t, "/api/beneficiaries"), 1)

	rec, body = a.do(t, http.MethodPost, "/api/claims", `{"policyId":"policy-1","payoutType":"lump_sum"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []any{"amount: is required"}, body["errors"])

	rec, _ = a.do(t, http.MethodPost, "/api/claims", `{"policyId":"policy-1","payoutType":"lump_sum","amount":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, a.list(t, "/api/claims"), 1)

	acts := a.list(t, "/api/activities")
	require.NotEmpty(t, acts)
	assert.Equal(t, "claim_submitted", acts[0]["type"])

	rec, dash := a.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "250000", dash["totalCoverage"])
	assert.Equal(t, "15500", dash["totalBorrowed"])
	assert.Equal(t, "0.0", dash["totalRewards"])
	assert.Len(t, dash["recentActivities"], 4)
}

func TestPaymentFlow(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	rec, initiated := a.do(t, http.MethodPost, "/api/initiate-payment", `{"type":"premium","amount":"100","currency":"USDC"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ref, _ := initiated["id"].(string)
	assert.Regexp(t, `^[0-9a-f]{32}$`, ref)

	payload := fmt.Sprintf(`{"payload":{"status":"success","reference":%q,"from":"0xabc"}}`, ref)
	rec, confirmed := a.do(t, http.MethodPost, "/api/confirm-payment", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, confirmed["success"])
	assert.Equal(t, "Payment confirmed successfully", confirmed["message"])
	payment := confirmed["payment"].(map[string]any)
	assert.Equal(t, "completed", payment["status"])
	assert.Equal(t, ref, payment["paymentId"])
	assert.Equal(t, "0xabc", confirmed["transaction"].(map[string]any)["from"])

	rec, again := a.do(t, http.MethodPost, "/api/confirm-payment", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment already confirmed", again["message"])

	acts := a.list(t, "/api/activities")
	assert.Equal(t, "premium_payment", acts[0]["type"])
	assert.Equal(t, "100", acts[0]["amount"])
	completed := 0
	for _, act := range acts {
		if strings.HasPrefix(act["description"].(string), "Payment completed") {
			completed++
		}
	}
	assert.Equal(t, 1, completed)

	payments := a.list(t, "/api/payments")
	require.Len(t, payments, 1)
	assert.Equal(t, "completed", payments[0]["status"])
}

func TestConfirmPaymentErrors(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	cases := []struct {
		body    string
		status  int
		message string
	}{
		{`{}`, http.StatusBadRequest, "Missing payload in request body"},
		{`{"payload":{"status":"success"}}`, http.StatusBadRequest, "Missing reference in payload"},
		{`{"payload":{"reference":"ffffffffffffffffffffffffffffffff"}}`, http.StatusNotFound, "Payment record not found"},
	}
	for _, tc := range cases {
		rec, body := a.do(t, http.MethodPost, "/api/confirm-payment", tc.body)
		assert.Equal(t, tc.status, rec.Code, tc.body)
		assert.Equal(t, false, body["success"], tc.body)
		assert.Equal(t, tc.message, body["message"], tc.body)
	}
}

func TestLegacyInitiate(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	rec, out := a.do(t, http.MethodPost, "/api/payments/initiate", `{"amount":"25","relatedEntityId":"policy-2","relatedEntityType":"policy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ref := out["id"].(string)

	payments := a.list(t, "/api/payments")
	require.Len(t, payments, 1)
	assert.Equal(t, "USDCE", payments[0]["currency"])
	assert.Equal(t, "policy", payments[0]["relatedEntityType"])

	acts := a.list(t, "/api/activities")
	assert.Equal(t, fmt.Sprintf("Payment initiated: 25 USDCE (%s)", ref), acts[0]["description"])
}

func TestVerifyRoute(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	rec, body := a.do(t, http.MethodPost, "/api/verify", `{"payload":{"proof":"0x1"},"action":"verify"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, float64(400), body["status"])
	assert.Equal(t, "Invalid proof data", body["message"])

	rec, body = a.do(t, http.MethodPost, "/api/verify",
		`{"payload":{"proof":"0x1","merkle_root":"0x2","nullifier_hash":"0x3"},"action":"verify","signal":"s"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(200), body["status"])
	res := body["verifyRes"].(map[string]any)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "0x3", res["nullifier_hash"])

	acts := a.list(t, "/api/activities")
	assert.Equal(t, "verification", acts[0]["type"])
	assert.Equal(t, "World ID verification completed for action: verify (mock)", acts[0]["description"])
}

func TestOpsRoutes(t *testing.T) {
	a := newAPI(t, testConfig(), nil)

	rec, _ := a.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	a.do(t, http.MethodGet, "/api/user", "")
	rec, _ = a.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/user",status="200"}`)
}

func TestTokenIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "development"
	cfg.JWTSecret = "test-secret"
	a := newAPI(t, cfg, nil)

	rec, tok := a.do(t, http.MethodPost, "/api/auth/token", `{"address":"0xfeedfeedfeedfeedfeedfeedfeedfeedfeedfeed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token := tok["token"].(string)
	require.NotEmpty(t, token)

	rec, user := a.do(t, http.MethodGet, "/api/user", "", "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tok["userId"], user["id"])
	assert.Equal(t, "0.00", user["ursolBalance"])

	rec, _ = a.do(t, http.MethodGet, "/api/user", "", "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, user = a.do(t, http.MethodGet, "/api/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.DemoUserID, user["id"])
}

func TestTokenRouteDisabledWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "development"
	a := newAPI(t, cfg, nil)
	rec, _ := a.do(t, http.MethodPost, "/api/auth/token", `{"address":"0x1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenRouteDisabledOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.JWTSecret = "test-secret"
	a := newAPI(t, cfg, nil)

	rec, _ := a.do(t, http.MethodPost, "/api/auth/token", `{"address":"0xfeedfeedfeedfeedfeedfeedfeedfeedfeedfeed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Tokens minted elsewhere with the shared secret are still honored.
	tok, err := utils.NewAccessToken(cfg.JWTSecret, repository.DemoUserID, 5)
	require.NoError(t, err)
	rec, user := a.do(t, http.MethodGet, "/api/user", "", "Authorization", "Bearer "+tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.DemoUserID, user["id"])
}

func TestMutatingRoutesAreRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: 2 * time.Hour,
		KeyStrategy: "ip_user", Prefix: "rl",
	}
	cfg.Cache = config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 16}
	a := newAPI(t, cfg, rdb)

	rec, _ := a.do(t, http.MethodPost, "/api/initiate-payment", `{"amount":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = a.do(t, http.MethodPost, "/api/initiate-payment", `{"amount":"1"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not limited and the catalog is served from cache.
	for i := 0; i < 3; i++ {
		rec, _ = a.do(t, http.MethodGet, "/api/user", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ = a.do(t, http.MethodGet, "/api/tiers", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec, _ = a.do(t, http.MethodGet, "/api/tiers", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}
