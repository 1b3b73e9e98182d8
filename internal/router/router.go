package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/vip-booking/internal/handler/auth"
	"github.com/jwalitptl/vip-booking/internal/middleware"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/httputil"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

const apiVersion = "1.0"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Handlers struct {
	Auth        *auth.Handler
	Slots       Handler
	Appointment Handler
	Clients     Handler
	Settings    Handler
	Health      Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      bool
	RateRPS        rate.Limit
	RateBurst      int
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(authMW *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(config.CORSOrigins)),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	sizeCfg := middleware.DefaultSizeLimitConfig()
	if config.MaxBodyBytes > 0 {
		sizeCfg.MaxBodySize = config.MaxBodyBytes
	}
	engine.Use(middleware.SizeLimit(sizeCfg))

	if config.RateLimit {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateRPS,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	engine.Use(
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.NotFound("route", c.Request.URL.Path))
	})
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, httputil.Response{
			Status:  "error",
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
			TraceID: c.GetString(middleware.ContextRequestID),
		})
	})

	return &Router{
		engine:   engine,
		auth:     authMW,
		handlers: handlers,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", apiVersion)
		c.Next()
	})

	// Public routes
	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Auth.RegisterRoutes(api, r.auth.Authenticate())

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.handlers.Settings.RegisterRoutes(protected)
	r.handlers.Slots.RegisterRoutes(protected)
	r.handlers.Appointment.RegisterRoutes(protected)
	r.handlers.Clients.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Handler builds the routes and returns the engine as an http.Handler.
func (r *Router) Handler() http.Handler {
	r.Setup()
	return r.engine
}
