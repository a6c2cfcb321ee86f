package httpserver

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/service/auth"
)

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestBuildRouter_MissingDeps(t *testing.T) {
	if _, err := buildRouter(zap.NewNop(), nil, Deps{}, nil); err == nil {
		t.Fatalf("expected error for empty deps")
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db: expected 503, got %d", rec.Code)
	}
}

func TestGuard_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/cart", "forged", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestGuard_PendingProfile(t *testing.T) {
	env := newTestEnv(t)
	token := env.user("u-pending", nil)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", token, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	me := decode[meResponse](t, env.do(t, http.MethodGet, "/api/v1/me", token, ""))
	if !me.ProfilePending || me.Profile != nil {
		t.Fatalf("expected pending profile, got %+v", me)
	}

	env.profiles["u-pending"] = domain.Profile{UserID: "u-pending", Role: domain.RoleConsumer}
	if rec := env.do(t, http.MethodGet, "/api/v1/cart", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once profile loads, got %d", rec.Code)
	}
}

func TestGuard_Roles(t *testing.T) {
	env := newTestEnv(t)
	consumer := env.user("u-consumer", &domain.Profile{Role: domain.RoleConsumer})
	pendingVendor := env.user("u-vendor-new", &domain.Profile{Role: domain.RoleVendor})
	vendor := env.user("u-vendor", &domain.Profile{Role: domain.RoleVendor, IsApproved: true})
	admin := env.user("u-admin", &domain.Profile{Role: domain.RoleAdmin, IsApproved: true})

	rec := env.do(t, http.MethodGet, "/api/v1/vendor/products", consumer, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("consumer: expected 403, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if roles, _ := body["requiredRole"].([]any); len(roles) != 1 || roles[0] != "vendor" {
		t.Fatalf("expected requiredRole [vendor], got %v", body)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/vendor/products", pendingVendor, "")
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), `"code":"pending_approval"`) {
		t.Fatalf("unapproved vendor: expected 403 pending_approval, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/vendor/products", admin, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("admin on vendor route: expected 403, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/vendor/products", vendor, ""); rec.Code != http.StatusOK {
		t.Fatalf("vendor: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/admin/users", vendor, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("vendor on admin route: expected 403, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/admin/users", admin, ""); rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", rec.Code)
	}

	// An unapproved vendor still reaches routes open to every member.
	if rec := env.do(t, http.MethodGet, "/api/v1/cart", pendingVendor, ""); rec.Code != http.StatusOK {
		t.Fatalf("unapproved vendor on cart: expected 200, got %d", rec.Code)
	}
	// Only consumers may apply to become vendors.
	if rec := env.do(t, http.MethodPost, "/api/v1/vendor/applications", vendor, `{"businessName":"X"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("vendor applying: expected 403, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/vendor/applications", consumer, `{"businessName":"X"}`); rec.Code != http.StatusCreated {
		t.Fatalf("consumer applying: expected 201, got %d", rec.Code)
	}
}

func TestCart_Flow(t *testing.T) {
	env := newTestEnv(t)
	token := env.user("u1", &domain.Profile{Role: domain.RoleConsumer})

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"productId":"p-panadol","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"productId":"p-vitc"}`)
	cart := decode[cartResponse](t, rec)
	if cart.TotalItems != 3 || cart.TotalPrice != "45.50" {
		t.Fatalf("expected 3 items totalling 45.50, got %+v", cart)
	}
	if len(cart.Lines) != 2 || cart.Lines[0].ProductID != "p-panadol" || cart.Lines[0].Subtotal.StringFixed(2) != "11.00" {
		t.Fatalf("unexpected lines %+v", cart.Lines)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"productId":"p-retired"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("inactive product: expected 404, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/cart/items/p-panadol", token, `{"quantity":0}`)
	cart = decode[cartResponse](t, rec)
	if len(cart.Lines) != 1 || cart.TotalItems != 1 {
		t.Fatalf("quantity 0 should remove the line, got %+v", cart)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/cart", token, "")
	cart = decode[cartResponse](t, rec)
	if len(cart.Lines) != 0 || cart.TotalPrice != "0.00" {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestCart_RemoveUnknownItemIsNoop(t *testing.T) {
	env := newTestEnv(t)
	token := env.user("u-1", &domain.Profile{UserID: "u-1", Role: domain.RoleConsumer})

	env.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"productId":"p-panadol"}`)
	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/not-a-uuid", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	if cart := decode[cartResponse](t, rec); cart.TotalItems != 1 {
		t.Fatalf("cart should be unchanged, got %+v", cart)
	}
}

func TestCart_RemoteWriteFailure(t *testing.T) {
	env := newTestEnv(t)
	token := env.user("u1", &domain.Profile{Role: domain.RoleConsumer})

	env.store.failNext = true
	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"productId":"p-panadol"}`)
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "cart_sync_failed") {
		t.Fatalf("expected 502 cart_sync_failed, got %d %s", rec.Code, rec.Body.String())
	}

	cart := decode[cartResponse](t, env.do(t, http.MethodGet, "/api/v1/cart", token, ""))
	if len(cart.Lines) != 0 {
		t.Fatalf("failed write should be reverted, got %+v", cart)
	}
}

func TestAuth_SignInAndSignOut(t *testing.T) {
	env := newTestEnv(t)

	env.auth.signInErr = auth.ErrInvalidCredentials
	rec := env.do(t, http.MethodPost, "/api/v1/auth/signin", "", `{"email":"a@example.my","password":"x"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	env.auth.signInErr = nil
	rec = env.do(t, http.MethodPost, "/api/v1/auth/signin", "", `{"email":"a@example.my","password":"Passw0rd"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"accessToken":"access"`) {
		t.Fatalf("expected tokens, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/auth/signout", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous signout: expected 401, got %d", rec.Code)
	}
	token := env.user("u1", nil)
	if rec := env.do(t, http.MethodPost, "/api/v1/auth/signout", token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("signout: expected 204, got %d", rec.Code)
	}
	if len(env.auth.signedOut) != 1 || env.auth.signedOut[0] != "u1" {
		t.Fatalf("expected sign-out for u1, got %v", env.auth.signedOut)
	}
}

func TestAuth_SignUpValidation(t *testing.T) {
	env := newTestEnv(t)
	env.auth.signUpErr = validateErr("email", "required")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", "", `{"password":"Passw0rd"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[errorResponse](t, rec)
	if body.Fields["email"] != "required" {
		t.Fatalf("expected field error for email, got %+v", body)
	}
}

func TestOrders_Errors(t *testing.T) {
	env := newTestEnv(t)
	token := env.user("u1", &domain.Profile{Role: domain.RoleConsumer})

	env.orders.checkoutErr = domain.ErrEmptyCart
	rec := env.do(t, http.MethodPost, "/api/v1/orders/checkout", token, "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "empty_cart") {
		t.Fatalf("expected 400 empty_cart, got %d %s", rec.Code, rec.Body.String())
	}

	env.orders.checkoutErr = domain.ErrInsufficientStock
	if rec := env.do(t, http.MethodPost, "/api/v1/orders/checkout", token, ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	env.orders.checkoutErr = nil
	if rec := env.do(t, http.MethodPost, "/api/v1/orders/checkout", token, ""); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/orders/o1/cancel", token, ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on invalid transition, got %d", rec.Code)
	}
}

func TestVendorOrderStatus(t *testing.T) {
	env := newTestEnv(t)
	vendor := env.user("u-vendor", &domain.Profile{Role: domain.RoleVendor, IsApproved: true})

	rec := env.do(t, http.MethodPatch, "/api/v1/vendor/orders/o1/status", vendor, `{"status":"cancelled"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPatch, "/api/v1/vendor/orders/o1/status", vendor, `{"status":"shipped"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"shipped"`) {
		t.Fatalf("expected shipped, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestVendorImageUpload(t *testing.T) {
	env := newTestEnv(t)
	vendor := env.user("u-vendor", &domain.Profile{Role: domain.RoleVendor, IsApproved: true})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "box.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write([]byte("\x89PNG")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/products/p1/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+vendor)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), "box.png") {
		t.Fatalf("expected 201 with image url, got %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/vendor/products/p1/images", vendor, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", rec.Code)
	}
}

func TestAdminReview(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user("u-admin", &domain.Profile{Role: domain.RoleAdmin})

	rec := env.do(t, http.MethodPost, "/api/v1/admin/vendor-applications/app-1/reject", admin, `{"note":"incomplete licence"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "incomplete licence") {
		t.Fatalf("reject: got %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/admin/vendor-applications/app-1/approve", admin, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"approved"`) {
		t.Fatalf("approve: got %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPatch, "/api/v1/admin/profiles/u9", admin, `{"role":"vendor","isApproved":true}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"isApproved":true`) {
		t.Fatalf("set role: got %d %s", rec.Code, rec.Body.String())
	}
}
