package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/vip-booking/internal/model"
	"github.com/jwalitptl/vip-booking/pkg/auth"
	apperrors "github.com/jwalitptl/vip-booking/pkg/errors"
	"github.com/jwalitptl/vip-booking/pkg/httputil"
	"github.com/jwalitptl/vip-booking/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	t.Run("generated", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/", "", nil)
		assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
		assert.Equal(t, w.Header().Get(HeaderXRequestID), w.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		w := perform(r, http.MethodGet, "/", "", map[string]string{HeaderXRequestID: "abc-123"})
		assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
	})

	t.Run("oversized id replaced", func(t *testing.T) {
		long := strings.Repeat("x", 200)
		w := perform(r, http.MethodGet, "/", "", map[string]string{HeaderXRequestID: long})
		assert.NotEqual(t, long, w.Header().Get(HeaderXRequestID))
	})
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.SlotUnavailable("slot-1"))
	})
	r.GET("/raw", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})
	r.GET("/written", func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.PaymentRequired("apt-1"))
	})

	w := perform(r, http.MethodGet, "/app", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, string(apperrors.CodeSlotUnavailable), resp.Code)
	assert.NotEmpty(t, resp.TraceID)

	w = perform(r, http.MethodGet, "/raw", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp = decode(t, w)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "pq:")

	w = perform(r, http.MethodGet, "/written", "", nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, string(apperrors.CodePaymentRequired), decode(t, w).Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(c *gin.Context) {
		panic("boom")
	})

	w := perform(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(apperrors.CodeInternal), decode(t, w).Code)
}

func newJWT(t *testing.T) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.Config{Secret: "secret", Issuer: "vip-booking", TTL: time.Hour})
	require.NoError(t, err)
	return svc
}

func TestAuthMiddleware(t *testing.T) {
	jwtSvc := newJWT(t)
	m := NewAuthMiddleware(jwtSvc)

	r := gin.New()
	api := r.Group("/", m.Authenticate())
	api.GET("/me", func(c *gin.Context) {
		subject, role := Caller(c)
		c.String(http.StatusOK, subject+"|"+string(role))
	})
	api.GET("/admin", RequireRole(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	clientToken, _, err := jwtSvc.Issue("client-7", auth.RoleClient)
	require.NoError(t, err)
	adminToken, _, err := jwtSvc.Issue("admin", auth.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"client allowed", "/me", "Bearer " + clientToken, http.StatusOK},
		{"client forbidden on admin route", "/admin", "Bearer " + clientToken, http.StatusForbidden},
		{"admin allowed", "/admin", "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			w := perform(r, http.MethodGet, tt.path, "", headers)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := perform(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer " + clientToken})
	assert.Equal(t, "client-7|client", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)
	w := perform(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Another client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.1.2.3:5555"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidation(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Validation(DefaultValidationConfig()))
	r.POST("/slots", func(c *gin.Context) {
		var req model.CreateSlotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		c.Status(http.StatusCreated)
	})

	w := perform(r, http.MethodPost, "/slots", `{"date":"2030-05-10","start_time":"09:00","end_time":"10:00"}`, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = perform(r, http.MethodPost, "/slots", `{"date":"2030-05-10","start_time":"9:00","end_time":"25:00"}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, string(apperrors.CodeValidation), resp.Code)
	assert.Contains(t, w.Body.String(), `"field":"start_time"`)
	assert.Contains(t, w.Body.String(), `"field":"end_time"`)
	assert.Contains(t, w.Body.String(), "expected HH:MM")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://console.example.com"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/", "", map[string]string{"Origin": "https://console.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://console.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	w = perform(r, http.MethodGet, "/", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 16, MaxHeaderSize: 1 << 12}))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/", `{"a":1}`, nil).Code)
	w := perform(r, http.MethodPost, "/", `{"subject":"a very long subject"}`, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "includeSubDomains")
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(TimeoutConfig{Duration: time.Minute}))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", "", nil).Code)
}

func TestMetrics(t *testing.T) {
	m := metrics.NewNop()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/slots/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/slots/slot-2030-05-10-0900", "", nil)
	perform(r, http.MethodGet, "/slots/slot-2030-05-10-1100", "", nil)
	perform(r, http.MethodGet, "/nowhere", "", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/slots/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
