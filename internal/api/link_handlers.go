package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sykell/link-health/internal/db"
	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/middleware"
	"github.com/sykell/link-health/internal/probe"
	"github.com/sykell/link-health/internal/service"
)

// CreateLinkRequest represents the link registration request
type CreateLinkRequest struct {
	URL            string  `json:"url" binding:"required"`
	MerchantName   *string `json:"merchant_name"`
	Network        string  `json:"network"`
	CampaignSource *string `json:"campaign_source"`
}

// ReplaceLinkRequest carries the new URL for a broken link
type ReplaceLinkRequest struct {
	URL string `json:"url" binding:"required"`
}

// ListLinksHandler lists the caller's links, optionally filtered by ?status=
func ListLinksHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		status := db.LinkStatus(strings.TrimSpace(c.Query("status")))
		if status != "" && !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}

		links, err := store.ListLinks(c.Request.Context(), user.UserID, status)
		if err != nil {
			log.Error("Failed to list links", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch links"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": links, "total": len(links)})
	}
}

// CreateLinkHandler registers a new tracked link
func CreateLinkHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		var req CreateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request format",
				"details": err.Error(),
			})
			return
		}

		address, err := probe.ParseTarget(req.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		network, err := db.ParseNetwork(req.Network)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		link, err := store.CreateLink(c.Request.Context(), user.UserID, service.NewLinkInput{
			URL:            address,
			MerchantName:   trimmedOrNil(req.MerchantName),
			Network:        network,
			CampaignSource: trimmedOrNil(req.CampaignSource),
		})
		if err != nil {
			log.Error("Failed to create link", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save link"})
			return
		}

		log.Info("Created link", logger.String("link_id", link.ID), logger.Uint("user_id", user.UserID))
		c.JSON(http.StatusCreated, link)
	}
}

// GetLinkHandler returns one of the caller's links
func GetLinkHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		link, err := store.GetLinkForUser(c.Request.Context(), user.UserID, c.Param("id"))
		if err != nil {
			writeLinkError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// LinkStatsHandler returns per-status counts for the caller's links
func LinkStatsHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		stats, err := store.Stats(c.Request.Context(), user.UserID)
		if err != nil {
			log.Error("Failed to compute link stats", logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// ReplaceLinkHandler swaps a link's URL and marks it recovered
func ReplaceLinkHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		var req ReplaceLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
			return
		}
		address, err := probe.ParseTarget(req.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		link, err := store.ReplaceLink(c.Request.Context(), user.UserID, c.Param("id"), address)
		if err != nil {
			writeLinkError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// IgnoreLinkHandler excludes a link from batch scans
func IgnoreLinkHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		link, err := store.IgnoreLink(c.Request.Context(), user.UserID, c.Param("id"))
		if err != nil {
			writeLinkError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// RestoreLinkHandler re-includes an ignored link in batch scans
func RestoreLinkHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		link, err := store.RestoreLink(c.Request.Context(), user.UserID, c.Param("id"))
		if err != nil {
			writeLinkError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// DeleteLinkHandler removes a link
func DeleteLinkHandler(store *service.LinkStore, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := requireUser(c)
		if !ok {
			return
		}

		if err := store.DeleteLink(c.Request.Context(), user.UserID, c.Param("id")); err != nil {
			writeLinkError(c, log, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func requireUser(c *gin.Context) (*middleware.UserContext, bool) {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	return user, true
}

func writeLinkError(c *gin.Context, log logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
	case errors.Is(err, service.ErrInvalidLink):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error("Link operation failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
