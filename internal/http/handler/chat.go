package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitpulse.app/coach/internal/http/dto"
	"fitpulse.app/coach/internal/http/middleware"
	"fitpulse.app/coach/internal/service"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Submit accepts a message into the pipeline and returns 202 with the
// pending row. The response text arrives later over the websocket gateway
// or via List polling.
func (h *ChatHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	user := middleware.GetUser(ctx)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req dto.SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chatService.Submit(ctx, user.ID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuotaExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily message limit reached"})
		case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to submit chat message", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit message"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.ToChatMessageResponse(msg))
}

// List returns the user's recent messages, oldest first.
func (h *ChatHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	user := middleware.GetUser(ctx)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	msgs, err := h.chatService.History(ctx, user.ID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list chat messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}

	c.JSON(http.StatusOK, dto.ToListMessagesResponse(msgs))
}
