package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func signToken(t *testing.T, key []byte, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func runMiddleware(mw echo.MiddlewareFunc, req *http.Request) (echo.Context, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("secret")})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := runMiddleware(mw, req)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_BadFormat(t *testing.T) {
	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("secret")})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	_, err := runMiddleware(mw, req)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	key := []byte("secret")
	tokenStr := signToken(t, key, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "clinic_a",
		Roles:    []string{"caregiver"},
	})

	mw := JWTMiddleware(JWTConfig{SigningKey: key})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	c, err := runMiddleware(mw, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "user-1" {
		t.Errorf("expected subject user-1, got %q", UserIDFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "caregiver" {
		t.Errorf("unexpected roles: %v", roles)
	}
	if tid, _ := c.Get("jwt_tenant_id").(string); tid != "clinic_a" {
		t.Errorf("expected tenant claim clinic_a, got %q", tid)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	key := []byte("secret")
	tokenStr := signToken(t, key, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	mw := JWTMiddleware(JWTConfig{SigningKey: key})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	_, err := runMiddleware(mw, req)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %v", err)
	}
}

func TestJWTMiddleware_JWKSCacheSharedAcrossRequests(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		_ = json.NewEncoder(w).Encode(JWKSResponse{Keys: []JWKSKey{{
			Kty: "RSA", Kid: "k1", Use: "sig", Alg: "RS256",
			N: base64.RawURLEncoding.EncodeToString(priv.PublicKey.N.Bytes()),
			E: base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.PublicKey.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token.Header["kid"] = "k1"
	tokenStr, err := token.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	mw := JWTMiddleware(JWTConfig{JWKSURL: srv.URL})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		if _, err := runMiddleware(mw, req); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if fetches != 1 {
		t.Errorf("JWKS fetched %d times for 3 requests, want 1", fetches)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	mw := DevAuthMiddleware()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, err := runMiddleware(mw, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("expected admin role, got %v", roles)
	}
}

func requestWithRoles(roles ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	return req.WithContext(ctx)
}

func TestRequireRole_Allowed(t *testing.T) {
	mw := RequireRole("caregiver")
	_, err := runMiddleware(mw, requestWithRoles("caregiver"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	mw := RequireRole("customer")
	_, err := runMiddleware(mw, requestWithRoles("admin"))
	if err != nil {
		t.Fatalf("admin should pass any role gate: %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	mw := RequireRole("customer")
	_, err := runMiddleware(mw, requestWithRoles("caregiver"))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	mw := RequireRole("caregiver")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := runMiddleware(mw, req)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
