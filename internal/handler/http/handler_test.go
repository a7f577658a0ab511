package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniket7411/Gems-frontend-sub001/internal/auth"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/cart"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/checkout"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/domain"
	mockgw "github.com/Aniket7411/Gems-frontend-sub001/internal/payment/mock"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/pricing"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/repository/memory"
	"github.com/Aniket7411/Gems-frontend-sub001/internal/session"
	apperrors "github.com/Aniket7411/Gems-frontend-sub001/pkg/errors"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/health"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/httputil"
	"github.com/Aniket7411/Gems-frontend-sub001/pkg/middleware"
)

const testSecret = "test-secret"

// ============================================================================
// Stubs
// ============================================================================

type stubOrders struct {
	mu    sync.Mutex
	calls int
	keys  []string
}

func (s *stubOrders) CreateOrder(_ context.Context, _ domain.OrderRequest, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.keys = append(s.keys, key)
	return "ord-100", nil
}

func (s *stubOrders) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubOTP struct{}

func (stubOTP) RequestOTP(context.Context, string) error { return nil }

func (stubOTP) VerifyOTP(_ context.Context, _ string, code string) error {
	if code != "4321" {
		return apperrors.Validation("code", "is invalid or expired")
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

type testServer struct {
	router http.Handler
	orders *stubOrders
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, adjust func(*RouterDeps)) *testServer {
	t.Helper()
	logger := newTestLogger()
	orders := &stubOrders{}
	gateway := mockgw.NewGateway(0, logger)

	registry := session.NewRegistry(session.Config{
		Cart:     cart.Config{Namespace: "test:cart", Policy: pricing.DefaultPolicy()},
		Checkout: checkout.Config{Currency: "INR"},
	}, session.Deps{
		Snapshots: memory.NewSnapshotStore(),
		Attempts:  memory.NewAttemptStore(),
		Orders:    orders,
		Gateway:   gateway,
		OTP:       stubOTP{},
		Logger:    logger,
	})

	deps := RouterDeps{
		Sessions:       registry,
		Gateway:        gateway,
		Health:         health.NewHandler(),
		Metrics:        middleware.NewHTTPMetrics("test", prometheus.NewRegistry()),
		TokenValidator: auth.NewTokenValidator(testSecret),
		CORS:           middleware.DefaultCORSConfig(),
		Logger:         logger,
	}
	if adjust != nil {
		adjust(&deps)
	}
	return &testServer{router: NewRouter(deps), orders: orders}
}

type call struct {
	method  string
	path    string
	body    any
	session string
	token   string
}

func (s *testServer) do(t *testing.T, c call) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set(middleware.SessionHeader, c.session)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func shopperToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, middleware.Claims{ShopperID: "shopper-1", Email: "a@b.c"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func emeraldBody(qty int) map[string]any {
	return map[string]any{
		"product": map[string]any{
			"id":           "emerald-1",
			"name":         "Colombian Emerald",
			"price":        "2500",
			"discount":     10,
			"discountType": "percentage",
			"stock":        3,
		},
		"quantity": qty,
	}
}

func addressBody(method string) map[string]any {
	return map[string]any{
		"shippingAddress": map[string]string{
			"firstName": "Meera", "lastName": "Iyer", "email": "meera@example.com", "phone": "9811111111",
			"address": "22 Residency Road", "city": "Bengaluru", "state": "Karnataka", "pincode": "560025",
		},
		"paymentMethod": method,
	}
}

// ============================================================================
// Cart
// ============================================================================

func TestGetCart_IssuesSession(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, call{method: http.MethodGet, path: "/api/v1/cart"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	got := decodeData[CartResponse](t, env)
	assert.Empty(t, got.Items)
	assert.NotNil(t, got.Items)
}

func TestAddItem_AndSummary(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(2), session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeData[MutationResponse](t, env)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	require.NotNil(t, got.Change)
	assert.False(t, got.Change.Clamped)
	assert.Equal(t, 2, got.Summary.ItemCount)
	assert.True(t, got.Summary.Subtotal.Equal(domain.AmountFromInt(4500)))
	assert.True(t, got.Summary.Total.Equal(domain.AmountFromInt(4700)))

	rec, env = srv.do(t, call{method: http.MethodGet, path: "/api/v1/cart/summary", session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeData[domain.CartSummary](t, env)
	assert.False(t, summary.IsEligibleForFreeShipping)
}

func TestAddItem_ClampsToStock(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(5), session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeData[MutationResponse](t, env)
	assert.True(t, got.Change.Clamped)
	assert.Equal(t, 3, got.Items[0].Quantity)
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	srv := newTestServer(t)
	body := emeraldBody(0)
	delete(body, "quantity")

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: body, session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[MutationResponse](t, env).Items[0].Quantity)
}

func TestAddItem_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"missing product id", map[string]any{"product": map[string]any{"name": "x"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"zero quantity", emeraldBody(0), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"unavailable", map[string]any{"product": map[string]any{"id": "p", "availability": false}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: tt.body, session: "s1"})

			assert.Equal(t, tt.wantCode, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestAddItem_MalformedBody(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestAddItem_WrongContentType(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("id=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpdateQuantity(t *testing.T) {
	srv := newTestServer(t)
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(1), session: "s1"})

	rec, env := srv.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/emerald-1", body: map[string]int{"quantity": 2}, session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[MutationResponse](t, env).Items[0].Quantity)

	rec, env = srv.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/emerald-1", body: map[string]int{"quantity": 0}, session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[MutationResponse](t, env)
	assert.Empty(t, got.Items)
	assert.True(t, got.Change.Removed)
}

func TestUpdateQuantity_Errors(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/ghost", body: map[string]int{"quantity": 1}, session: "s1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = srv.do(t, call{method: http.MethodPut, path: "/api/v1/cart/items/ghost", body: map[string]int{}, session: "s1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error.Fields, "quantity")
}

func TestRemoveAndClear(t *testing.T) {
	srv := newTestServer(t)
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(1), session: "s1"})

	rec, env := srv.do(t, call{method: http.MethodDelete, path: "/api/v1/cart/items/absent", session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[CartResponse](t, env).Items, 1)

	rec, env = srv.do(t, call{method: http.MethodDelete, path: "/api/v1/cart", session: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[CartResponse](t, env).Items)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(1), session: "s1"})

	_, env := srv.do(t, call{method: http.MethodGet, path: "/api/v1/cart", session: "s2"})
	assert.Empty(t, decodeData[CartResponse](t, env).Items)
}

// ============================================================================
// Checkout
// ============================================================================

func TestCheckout_EmptyCart(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/begin", session: "s1"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMPTY_CART", env.Error.Code)
}

func TestCheckout_AddressMissingField(t *testing.T) {
	srv := newTestServer(t)
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(1), session: "s1"})
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/checkout/begin", session: "s1"})

	body := addressBody("cod")
	body["shippingAddress"].(map[string]string)["pincode"] = " "

	rec, env := srv.do(t, call{method: http.MethodPut, path: "/api/v1/checkout/address", body: body, session: "s1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error.Fields, "pincode")

	_, env = srv.do(t, call{method: http.MethodGet, path: "/api/v1/checkout", session: "s1"})
	snap := decodeData[checkout.Snapshot](t, env)
	assert.Equal(t, domain.StateAddressEntry, snap.State)
	assert.Equal(t, "pincode", snap.MissingField)
}

func TestCheckout_AuthenticatedCOD(t *testing.T) {
	srv := newTestServer(t)
	tok := shopperToken(t)
	c := func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		return srv.do(t, call{method: method, path: path, body: body, session: "s1", token: tok})
	}

	c(http.MethodPost, "/api/v1/cart/items", emeraldBody(2))
	rec, _ := c(http.MethodPost, "/api/v1/checkout/begin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = c(http.MethodPut, "/api/v1/checkout/address", addressBody("cod"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := c(http.MethodPost, "/api/v1/checkout/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeData[checkout.Snapshot](t, env)
	assert.Equal(t, domain.StateOrderPlaced, snap.State)
	require.NotNil(t, snap.Order)
	assert.Equal(t, "ord-100", snap.Order.ID)

	_, env = c(http.MethodGet, "/api/v1/cart", nil)
	assert.Empty(t, decodeData[CartResponse](t, env).Items)

	rec, env = c(http.MethodPost, "/api/v1/checkout/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.Equal(t, 1, srv.orders.count())
}

func TestCheckout_GuestNeedsOTP(t *testing.T) {
	srv := newTestServer(t)
	c := func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		return srv.do(t, call{method: method, path: path, body: body, session: "guest"})
	}

	c(http.MethodPost, "/api/v1/cart/items", emeraldBody(1))
	c(http.MethodPost, "/api/v1/checkout/begin", nil)
	c(http.MethodPut, "/api/v1/checkout/address", addressBody("cod"))

	rec, env := c(http.MethodPost, "/api/v1/checkout/confirm", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "VERIFICATION_REQUIRED", env.Error.Code)

	rec, env = c(http.MethodPost, "/api/v1/otp/request", map[string]string{"phone": "9811111111"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"code_entry"`)

	rec, _ = c(http.MethodPost, "/api/v1/otp/verify", map[string]string{"otp": "0000"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env = c(http.MethodPost, "/api/v1/otp/verify", map[string]string{"otp": "4321"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"verified"`)

	rec, env = c(http.MethodPost, "/api/v1/checkout/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StateOrderPlaced, decodeData[checkout.Snapshot](t, env).State)
}

func TestOTP_CancelReturnsToPhoneEntry(t *testing.T) {
	srv := newTestServer(t)
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/otp/request", body: map[string]string{"phone": "9811111111"}, session: "s1"})

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/otp/cancel", session: "s1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"phone_entry"`)
}

func TestOTP_RequestsAreThrottledPerSession(t *testing.T) {
	srv := newTestServerWith(t, func(d *RouterDeps) {
		d.OTPRateLimit = middleware.RateLimitConfig{PerMinute: 1, Burst: 2}
	})
	request := func(session string) *httptest.ResponseRecorder {
		rec, _ := srv.do(t, call{method: http.MethodPost, path: "/api/v1/otp/request", body: map[string]string{"phone": "9811111111"}, session: session})
		return rec
	}

	assert.Equal(t, http.StatusOK, request("s1").Code)
	assert.Equal(t, http.StatusOK, request("s1").Code)

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/otp/verify", body: map[string]string{"otp": "4321"}, session: "s1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	// Reading the challenge is never throttled.
	rec, _ = srv.do(t, call{method: http.MethodGet, path: "/api/v1/otp", session: "s1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, request("s2").Code)
}

func TestCheckout_OnlinePaymentThroughNotification(t *testing.T) {
	srv := newTestServer(t)
	tok := shopperToken(t)
	c := func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		return srv.do(t, call{method: method, path: path, body: body, session: "s1", token: tok})
	}

	c(http.MethodPost, "/api/v1/cart/items", emeraldBody(1))
	c(http.MethodPost, "/api/v1/checkout/begin", nil)
	c(http.MethodPut, "/api/v1/checkout/address", addressBody("online"))

	rec, env := c(http.MethodPost, "/api/v1/checkout/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeData[checkout.Snapshot](t, env)
	require.Equal(t, domain.StatePaymentPending, snap.State)
	require.NotNil(t, snap.PaymentSession)
	assert.NotEmpty(t, snap.PaymentSession.Token)

	rec, _ = srv.do(t, call{
		method: http.MethodPost,
		path:   "/api/v1/payments/notifications",
		body:   mockgw.Notification{GatewayRef: snap.PaymentSession.GatewayOrderRef, Status: "success", PaymentID: "pay_77"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = c(http.MethodGet, "/api/v1/checkout?wait=2s", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	final := decodeData[checkout.Snapshot](t, env)
	assert.Equal(t, domain.StatePaymentSuccess, final.State)
	assert.Equal(t, "pay_77", final.PaymentID)
}

func TestCheckout_CancelThenRetry(t *testing.T) {
	srv := newTestServer(t)
	tok := shopperToken(t)
	c := func(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
		return srv.do(t, call{method: method, path: path, body: body, session: "s1", token: tok})
	}

	c(http.MethodPost, "/api/v1/cart/items", emeraldBody(1))
	c(http.MethodPost, "/api/v1/checkout/begin", nil)
	c(http.MethodPut, "/api/v1/checkout/address", addressBody("online"))
	c(http.MethodPost, "/api/v1/checkout/confirm", nil)

	rec, env := c(http.MethodPost, "/api/v1/checkout/payment/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatePaymentCancelled, decodeData[checkout.Snapshot](t, env).State)

	rec, env = c(http.MethodPost, "/api/v1/checkout/payment/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatePaymentPending, decodeData[checkout.Snapshot](t, env).State)
	assert.Equal(t, 1, srv.orders.count())
}

func TestCheckout_GetWaitRejectsBadDuration(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, call{method: http.MethodGet, path: "/api/v1/checkout?wait=soon", session: "s1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_EditAndReset(t *testing.T) {
	srv := newTestServer(t)
	c := func(method, path string) (*httptest.ResponseRecorder, envelope) {
		return srv.do(t, call{method: method, path: path, session: "s1"})
	}
	_, _ = srv.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", body: emeraldBody(1), session: "s1"})
	c(http.MethodPost, "/api/v1/checkout/begin")
	_, _ = srv.do(t, call{method: http.MethodPut, path: "/api/v1/checkout/address", body: addressBody("cod"), session: "s1"})

	rec, env := c(http.MethodPost, "/api/v1/checkout/address/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StateAddressEntry, decodeData[checkout.Snapshot](t, env).State)

	rec, env = c(http.MethodPost, "/api/v1/checkout/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StateIdle, decodeData[checkout.Snapshot](t, env).State)
}

// ============================================================================
// Payments, auth, health
// ============================================================================

func TestPaymentNotification_Rejected(t *testing.T) {
	srv := newTestServer(t)

	rec, env := srv.do(t, call{method: http.MethodPost, path: "/api/v1/payments/notifications", body: map[string]string{"status": "success"}})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	srv := newTestServer(t)

	rec, _ := srv.do(t, call{method: http.MethodGet, path: "/api/v1/cart", token: "garbage"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
