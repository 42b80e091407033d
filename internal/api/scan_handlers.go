package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/metrics"
	"github.com/sykell/link-health/internal/middleware"
	"github.com/sykell/link-health/internal/probe"
	"github.com/sykell/link-health/internal/scanner"
	"github.com/sykell/link-health/internal/service"
)

// Scanner runs batch and single-link scans.
type Scanner interface {
	ScanUser(ctx context.Context, userID uint) (*scanner.Summary, error)
	ScanLink(ctx context.Context, userID uint, linkID, rawURL string) (*scanner.LinkScan, error)
}

// ScanLinkRequest represents the single-link scan request
type ScanLinkRequest struct {
	URL    string `json:"url"`
	LinkID string `json:"linkId"`
}

// ScanHandler runs a batch scan over the caller's links
func ScanHandler(s Scanner, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		summary, err := s.ScanUser(c.Request.Context(), user.UserID)
		if err != nil {
			if errors.Is(err, scanner.ErrScanInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": "A scan is already running for this account"})
				return
			}
			if summary != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				log.Warn("Scan interrupted", logger.Uint("user_id", user.UserID), logger.Int("scanned", summary.Scanned), logger.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error":   "Scan interrupted",
					"scanned": summary.Scanned,
					"broken":  summary.Broken,
					"errors":  summary.Errors,
				})
				return
			}
			log.Error("Scan error", logger.Uint("user_id", user.UserID), logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch links"})
			return
		}

		if summary.Scanned == 0 {
			c.JSON(http.StatusOK, gin.H{
				"message": "No links to scan",
				"scanned": 0,
				"broken":  0,
				"errors":  summary.Errors,
			})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// ScanLinkHandler probes one URL on demand. Requests are paced per user and
// link by limiter.
func ScanLinkHandler(s Scanner, limiter *middleware.KeyedLimiter, m *metrics.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		var req ScanLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "unknown", "error": "URL is required"})
			return
		}
		target, err := probe.ParseTarget(req.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "unknown", "error": err.Error()})
			return
		}

		key := req.LinkID
		if key == "" {
			key = target
		}
		if !limiter.Allow(fmt.Sprintf("%d:%s", user.UserID, key)) {
			m.ScanRejected("rate_limited")
			c.JSON(http.StatusTooManyRequests, gin.H{"status": "unknown", "error": "Too many scans for this link, try again shortly"})
			return
		}

		result, err := s.ScanLink(c.Request.Context(), user.UserID, req.LinkID, target)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrLinkNotFound):
				c.JSON(http.StatusNotFound, gin.H{"status": "unknown", "error": "Link not found"})
				return
			case errors.Is(err, scanner.ErrURLMismatch):
				c.JSON(http.StatusBadRequest, gin.H{"status": "unknown", "error": "URL does not match the tracked link"})
				return
			case errors.Is(err, scanner.ErrLinkIgnored):
				c.JSON(http.StatusConflict, gin.H{"status": "unknown", "error": "Link is ignored; restore it before scanning"})
				return
			case errors.Is(err, scanner.ErrScanInProgress):
				c.JSON(http.StatusConflict, gin.H{"status": "unknown", "error": "A scan is already running for this account"})
				return
			}
			log.Error("Single link scan failed", logger.String("link_id", req.LinkID), logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "unknown", "error": "Failed to save scan result"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
