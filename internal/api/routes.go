package api

import (
	"net"
	"net/http"
	"time"

	apperrors "chat_relay_go_backend/internal/errors"
	"chat_relay_go_backend/internal/models"
	"chat_relay_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func SetupRoutes(r *gin.Engine, chatRelay *services.ChatRelay, exemptLoopback bool) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/chat", sendChatMessageHandler(chatRelay, exemptLoopback))
		api.GET("/chat/history", getChatHistoryHandler(chatRelay))
		api.GET("/quota", getQuotaHandler(chatRelay))
	}
}

// IsLoopback reports whether the direct peer of the request is a loopback
// address. Forwarded headers are ignored.
func IsLoopback(c *gin.Context) bool {
	ip := net.ParseIP(c.RemoteIP())
	return ip != nil && ip.IsLoopback()
}

func sendChatMessageHandler(chatRelay *services.ChatRelay, exemptLoopback bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Message   string `json:"message"`
			UserID    string `json:"userId"`
			SessionID string `json:"sessionId"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error("Invalid request body"))
			return
		}

		reply, err := chatRelay.Handle(c.Request.Context(), models.ChatRequest{
			Text:      request.Message,
			UserID:    request.UserID,
			SessionID: request.SessionID,
			Exempt:    exemptLoopback && IsLoopback(c),
		})
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"reply": reply.Text})
	}
}

func getChatHistoryHandler(chatRelay *services.ChatRelay) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("sessionId")
		if sessionID == "" {
			apperrors.HandleError(c, apperrors.New400Error("sessionId is required"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"sessionId": sessionID,
			"turns":     chatRelay.Transcript(sessionID),
		})
	}
}

func getQuotaHandler(chatRelay *services.ChatRelay) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			apperrors.HandleError(c, apperrors.New400Error("userId is required"))
			return
		}

		c.JSON(http.StatusOK, chatRelay.Usage(userID))
	}
}

// RequestLogger emits one zerolog event per request and tags it with a
// request id.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("requestID", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Str("remoteIP", c.RemoteIP()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
