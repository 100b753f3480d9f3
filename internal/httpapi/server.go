// Package httpapi exposes the attendance service over HTTP with gin.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/attendance"
	"qrattend/internal/audit"
	"qrattend/internal/auth"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/metrics"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Deps are the collaborators a Server needs. Publisher, Metrics, Limiter
// and Health may be left nil.
type Deps struct {
	Service        *attendance.Service
	Users          *auth.Users
	Signer         auth.Signer
	Publisher      *audit.Publisher
	Metrics        *metrics.Metrics
	Limiter        *httpmiddleware.TokenBucket
	Health         map[string]HealthChecker
	AllowedOrigins []string
	Logger         *log.Logger
	Production     bool
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
	now  func() time.Time
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Server{deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(s.cors())
	r.Use(securityHeaders(s.deps.Production))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	api.POST("/auth/login", s.limit(nil), s.login)

	authed := api.Group("", auth.Bearer(s.deps.Signer), s.limit(sessionKey))

	students := authed.Group("/students")
	students.GET("/generate-qr/:id", s.generateQR)
	students.GET("/all", auth.RequireRole(auth.RoleAdmin), s.listStudents)
	students.GET("/profile", auth.RequireRole(auth.RoleStudent), s.profile)

	att := authed.Group("/attendance")
	att.POST("/mark", auth.RequireRole(auth.RoleFaculty), s.mark)
	att.GET("/all/records", auth.RequireRole(auth.RoleAdmin), s.allRecords)
	att.GET("/student/my-attendance", auth.RequireRole(auth.RoleStudent), s.myAttendance)

	return r
}

func (s *Server) cors() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = s.deps.AllowedOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	cfg.MaxAge = 24 * time.Hour
	return cors.New(cfg)
}

// limit applies the rate limiter, or nothing when none is configured.
func (s *Server) limit(key httpmiddleware.KeyFunc) gin.HandlerFunc {
	if s.deps.Limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return s.deps.Limiter.GinMiddlewareKeyed(key)
}

// sessionKey buckets authenticated requests by session subject.
func sessionKey(c *gin.Context) string {
	claims, ok := auth.FromContext(c)
	if !ok {
		return ""
	}
	return claims.Subject
}

func securityHeaders(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

func (s *Server) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, hc := range s.deps.Health {
		ok := hc.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// internalError logs err and answers without leaking detail.
func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.deps.Logger.Printf("%s failed: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}
