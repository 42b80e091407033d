package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sykell/link-health/internal/logger"
	"github.com/sykell/link-health/internal/notify"
)

// SendEmailRequest represents the email request payload
type SendEmailRequest struct {
	Type string      `json:"type"`
	To   string      `json:"to"`
	Data notify.Data `json:"data"`
}

// SendEmailHandler renders and sends one templated email
func SendEmailHandler(n notify.Notifier, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" || req.To == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}

		msgType, err := notify.ParseMessageType(req.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email type"})
			return
		}

		err = n.Send(c.Request.Context(), notify.Message{Type: msgType, To: req.To, Data: req.Data})
		if err != nil {
			if errors.Is(err, notify.ErrInvalidMessage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("Email error", logger.String("type", req.Type), logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
