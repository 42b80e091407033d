package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/metrics"
	"github.com/sykell/link-health/internal/middleware"
	"github.com/sykell/link-health/internal/notify"
	"github.com/sykell/link-health/internal/service"
)

const (
	loginInterval = 2 * time.Second
	loginBurst    = 5
)

// Deps groups everything the HTTP layer needs.
type Deps struct {
	DB                 *gorm.DB
	Links              *service.LinkStore
	Scanner            Scanner
	Notifier           notify.Notifier
	Auth               config.AuthConfig
	SingleScanInterval time.Duration
	Metrics            *metrics.Metrics
	Gatherer           prometheus.Gatherer
	Log                logger.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(logger.GinMiddleware(d.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	r.GET("/health", healthHandler(d.DB))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	loginLimiter := middleware.NewKeyedLimiter(loginInterval, loginBurst)
	r.POST("/auth/login",
		middleware.RateLimit(loginLimiter, middleware.ClientIP),
		LoginHandler(d.DB, d.Auth, d.Log),
	)

	scanLimiter := middleware.NewKeyedLimiter(d.SingleScanInterval, 1)

	authorized := r.Group("/")
	authorized.Use(middleware.JWTRequired(d.Auth.JWTSecret, d.Log))
	{
		authorized.GET("/links", ListLinksHandler(d.Links, d.Log))
		authorized.POST("/links", CreateLinkHandler(d.Links, d.Log))
		authorized.GET("/links/stats", LinkStatsHandler(d.Links, d.Log))
		authorized.GET("/links/:id", GetLinkHandler(d.Links, d.Log))
		authorized.POST("/links/:id/replace", ReplaceLinkHandler(d.Links, d.Log))
		authorized.POST("/links/:id/ignore", IgnoreLinkHandler(d.Links, d.Log))
		authorized.POST("/links/:id/restore", RestoreLinkHandler(d.Links, d.Log))
		authorized.DELETE("/links/:id", DeleteLinkHandler(d.Links, d.Log))

		authorized.POST("/scans", ScanHandler(d.Scanner, d.Log))
		authorized.POST("/scans/link", ScanLinkHandler(d.Scanner, scanLimiter, d.Metrics, d.Log))

		authorized.POST("/notifications/email", SendEmailHandler(d.Notifier, d.Log))
	}

	return r
}

func healthHandler(dbConn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if sqlDB, err := dbConn.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "link-health",
		})
	}
}
