// Package router assembles the gin engine and the API routes.
package router

import (
	"net/http"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/infrastructure/auth"
	"github.com/clubledger/backend/internal/infrastructure/logger"
	"github.com/clubledger/backend/internal/interfaces/http/handler"
	"github.com/clubledger/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Handlers are the endpoint handlers mounted by New
type Handlers struct {
	Invoice    *handler.InvoiceHandler
	Membership *handler.MembershipHandler
	Coupon     *handler.CouponHandler
	Webhook    *handler.WebhookHandler
	Health     *handler.HealthHandler
}

// Config configures the engine built by New
type Config struct {
	Logger         *zap.Logger
	JWTService     *auth.JWTService
	Tracing        middleware.TracingConfig
	MaxBodySize    int64
	TrustedProxies []string
	APIVersion     string
	Handlers       Handlers
}

// New builds the engine. Gateway callbacks and the health check sit
// outside the authenticated API group.
func New(cfg Config) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
	)
	engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, errRouteNotFound)
	})

	h := cfg.Handlers
	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}
	if h.Webhook != nil {
		// the handler enforces its own payload limit on the raw body
		engine.POST("/webhooks/:gateway", h.Webhook.Receive)
	}

	r := NewRouter(engine, WithAPIVersion(cfg.APIVersion),
		WithMiddleware(
			middleware.BodyLimit(cfg.MaxBodySize),
			middleware.Authenticate(middleware.AuthConfig{JWTService: cfg.JWTService, Logger: log}),
		))
	for _, g := range apiGroups(h) {
		r.Register(g)
	}
	r.Setup()
	return engine, nil
}

func apiGroups(h Handlers) []*DomainGroup {
	var groups []*DomainGroup
	if h.Invoice != nil {
		groups = append(groups, NewDomainGroup("invoices", "/invoices").
			POST("", identity.PermInvoicesCreate, h.Invoice.Create).
			GET("/:id", identity.PermInvoicesView, h.Invoice.Get).
			POST("/:id/payments", identity.PermInvoicesPay, h.Invoice.RecordPayment).
			POST("/:id/refunds", identity.PermInvoicesRefund, h.Invoice.RecordRefund).
			POST("/:id/cancel", identity.PermInvoicesCreate, h.Invoice.Cancel))
	}
	if h.Membership != nil {
		groups = append(groups, NewDomainGroup("memberships", "/memberships").
			GET("/:id", identity.PermMembershipsView, h.Membership.Get).
			GET("/:id/events", identity.PermMembershipsView, h.Membership.Events).
			POST("/:id/pause", identity.PermMembershipsPause, h.Membership.Pause).
			POST("/:id/resume", identity.PermMembershipsResume, h.Membership.Resume).
			POST("/:id/upgrade", identity.PermMembershipsUpgrade, h.Membership.Upgrade).
			POST("/:id/cancel", identity.PermMembershipsCancel, h.Membership.Cancel))
	}
	if h.Coupon != nil {
		groups = append(groups, NewDomainGroup("coupons", "/coupons").
			POST("", identity.PermCouponsManage, h.Coupon.Create).
			POST("/validate", identity.PermCouponsView, h.Coupon.Validate).
			POST("/apply", identity.PermCouponsApply, h.Coupon.Apply))
	}
	if h.Webhook != nil {
		groups = append(groups, NewDomainGroup("webhook-events", "/webhook-events").
			GET("", identity.PermWebhooksView, h.Webhook.List).
			GET("/:id", identity.PermWebhooksView, h.Webhook.Get).
			POST("/:id/replay", identity.PermWebhooksReplay, h.Webhook.Replay))
	}
	return groups
}

// Router manages versioned API route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix. Empty keeps "v1".
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		if version != "" {
			r.apiVersion = version
		}
	}
}

// WithMiddleware adds middleware to the API group
func WithMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/{version}
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	api.Use(r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a prefix of permission-guarded routes
type DomainGroup struct {
	name   string
	prefix string
	routes []Route
}

// Route is one registered endpoint and the permission guarding it
type Route struct {
	Method     string
	Path       string
	Permission identity.Permission
	handler    gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// GET registers a GET route guarded by perm
func (dg *DomainGroup) GET(path string, perm identity.Permission, h gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, perm, h)
}

// POST registers a POST route guarded by perm
func (dg *DomainGroup) POST(path string, perm identity.Permission, h gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, perm, h)
}

func (dg *DomainGroup) handle(method, path string, perm identity.Permission, h gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, Route{Method: method, Path: path, Permission: perm, handler: h})
	return dg
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	for _, route := range dg.routes {
		group.Handle(route.Method, route.Path, middleware.RequirePermission(route.Permission), route.handler)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string { return dg.name }

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string { return dg.prefix }

// Routes returns the routes of the group
func (dg *DomainGroup) Routes() []Route {
	return append([]Route(nil), dg.routes...)
}
