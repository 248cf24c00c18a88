package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/interfaces/http/handler"
	"github.com/clubledger/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func pong(c *gin.Context) { c.String(http.StatusOK, "pong") }

func serve(engine *gin.Engine, method, path string, perms ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if perms != nil {
		raw, _ := json.Marshal(perms)
		req.Header.Set(middleware.HeaderUserID, "user-1")
		req.Header.Set(middleware.HeaderTenantID, uuid.NewString())
		req.Header.Set(middleware.HeaderPermissions, string(raw))
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	assert.Equal(t, "v2", NewRouter(gin.New(), WithAPIVersion("v2")).apiVersion)
	assert.Equal(t, "v1", NewRouter(gin.New(), WithAPIVersion("")).apiVersion)
}

func TestDomainGroup(t *testing.T) {
	group := NewDomainGroup("invoices", "/invoices").
		GET("/:id", identity.PermInvoicesView, pong).
		POST("/:id/payments", identity.PermInvoicesPay, pong)

	assert.Equal(t, "invoices", group.Name())
	assert.Equal(t, "/invoices", group.Prefix())
	routes := group.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, http.MethodGet, routes[0].Method)
	assert.Equal(t, identity.PermInvoicesView, routes[0].Permission)
	assert.Equal(t, "/:id/payments", routes[1].Path)
	assert.Equal(t, identity.PermInvoicesPay, routes[1].Permission)

	routes[0].Path = "/mutated"
	assert.Equal(t, "/:id", group.Routes()[0].Path, "Routes returns a copy")
}

func TestRouterSetup_EnforcesPermissions(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithMiddleware(middleware.Authenticate(middleware.AuthConfig{})))
	r.Register(NewDomainGroup("invoices", "/invoices").
		GET("/:id", identity.PermInvoicesView, pong).
		POST("/:id/refunds", identity.PermInvoicesRefund, pong))
	r.Setup()

	tests := []struct {
		name   string
		method string
		path   string
		perms  []string
		status int
		code   string
	}{
		{"no identity", http.MethodGet, "/api/v1/invoices/1", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"exact permission", http.MethodGet, "/api/v1/invoices/1", []string{"invoices.view"}, http.StatusOK, ""},
		{"module wildcard", http.MethodPost, "/api/v1/invoices/1/refunds", []string{"invoices.*"}, http.StatusOK, ""},
		{"global wildcard", http.MethodPost, "/api/v1/invoices/1/refunds", []string{"*"}, http.StatusOK, ""},
		{"other action", http.MethodPost, "/api/v1/invoices/1/refunds", []string{"invoices.view"}, http.StatusForbidden, "FORBIDDEN"},
		{"other module", http.MethodGet, "/api/v1/invoices/1", []string{"coupons.*"}, http.StatusForbidden, "FORBIDDEN"},
		{"empty permissions", http.MethodGet, "/api/v1/invoices/1", []string{}, http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, tt.perms...)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.code == "" {
				assert.Equal(t, "pong", w.Body.String())
				return
			}
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestNew(t *testing.T) {
	engine, err := New(Config{
		Handlers: Handlers{Health: handler.NewHealthHandler("clubledger", "test", nil)},
	})
	require.NoError(t, err)

	t.Run("health is public", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("unknown route uses the error envelope", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, w))
	})

	t.Run("unmounted handlers register no routes", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), "*")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNew_InvalidTrustedProxy(t *testing.T) {
	_, err := New(Config{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}

func TestAPIGroups(t *testing.T) {
	groups := apiGroups(Handlers{
		Invoice:    &handler.InvoiceHandler{},
		Membership: &handler.MembershipHandler{},
		Coupon:     &handler.CouponHandler{},
		Webhook:    &handler.WebhookHandler{},
	})

	perms := map[string]identity.Permission{}
	for _, g := range groups {
		for _, r := range g.Routes() {
			perms[r.Method+" "+g.Prefix()+r.Path] = r.Permission
		}
	}
	assert.Equal(t, identity.PermInvoicesPay, perms["POST /invoices/:id/payments"])
	assert.Equal(t, identity.PermInvoicesRefund, perms["POST /invoices/:id/refunds"])
	assert.Equal(t, identity.PermMembershipsPause, perms["POST /memberships/:id/pause"])
	assert.Equal(t, identity.PermMembershipsCancel, perms["POST /memberships/:id/cancel"])
	assert.Equal(t, identity.PermCouponsApply, perms["POST /coupons/apply"])
	assert.Equal(t, identity.PermWebhooksReplay, perms["POST /webhook-events/:id/replay"])
	for route, perm := range perms {
		assert.NotEmpty(t, perm, route)
	}
}
