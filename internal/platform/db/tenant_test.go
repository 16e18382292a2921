package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestContext(headers map[string]string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestExtractTenantID_Default(t *testing.T) {
	c := newTestContext(nil)
	if got := extractTenantID(c, "default"); got != "default" {
		t.Errorf("expected default tenant, got %q", got)
	}
}

func TestExtractTenantID_Header(t *testing.T) {
	c := newTestContext(map[string]string{"X-Tenant-ID": "clinic_a"})
	if got := extractTenantID(c, "default"); got != "clinic_a" {
		t.Errorf("expected clinic_a, got %q", got)
	}
}

func TestExtractTenantID_JWTClaimWins(t *testing.T) {
	c := newTestContext(map[string]string{"X-Tenant-ID": "header_tenant"})
	c.Set("jwt_tenant_id", "jwt_tenant")
	if got := extractTenantID(c, "default"); got != "jwt_tenant" {
		t.Errorf("expected jwt_tenant, got %q", got)
	}
}

func TestExtractTenantID_QueryParam(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?tenant_id=qtenant", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if got := extractTenantID(c, "default"); got != "qtenant" {
		t.Errorf("expected qtenant, got %q", got)
	}
}

func TestTenantIDPattern(t *testing.T) {
	valid := []string{"default", "clinic_a", "T1", "a_b_c"}
	for _, v := range valid {
		if !tenantIDPattern.MatchString(v) {
			t.Errorf("%q should be valid", v)
		}
	}
	invalid := []string{"", "clinic-a", "a b", "x;drop", "tenant/1"}
	for _, v := range invalid {
		if tenantIDPattern.MatchString(v) {
			t.Errorf("%q should be invalid", v)
		}
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil connection from empty context")
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil transaction from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not a tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil transaction for wrong stored type")
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "clinic_a")
	if got := TenantFromContext(ctx); got != "clinic_a" {
		t.Errorf("expected clinic_a, got %q", got)
	}
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("expected empty tenant, got %q", got)
	}
}
