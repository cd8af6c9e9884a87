package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KasumiMercury/primind-message-coalescing/internal/domain"
	"github.com/KasumiMercury/primind-message-coalescing/internal/service/coalesce"
)

type MessageHandler struct {
	coordinator *coalesce.Coordinator
}

func NewMessageHandler(coordinator *coalesce.Coordinator) *MessageHandler {
	return &MessageHandler{coordinator: coordinator}
}

type postMessageRequest struct {
	Text   string `json:"text" binding:"required"`
	Kind   string `json:"kind"`
	Sender string `json:"sender"`
}

type postMessageResponse struct {
	Status    string       `json:"status"`
	MessageID string       `json:"message_id"`
	QueueSize int64        `json:"queue_size"`
	NewFlow   bool         `json:"new_flow"`
	Result    *batchResult `json:"result,omitempty"`
}

type batchResult struct {
	Outcome        string    `json:"outcome"`
	ProcessedCount int       `json:"processed_count"`
	ProcessedAt    time.Time `json:"processed_at"`
	Status         string    `json:"status"`
}

type flowStatusResponse struct {
	ConversationID  string       `json:"conversation_id"`
	QueueSize       int64        `json:"queue_size"`
	Processing      bool         `json:"processing"`
	WindowStartedAt *time.Time   `json:"window_started_at,omitempty"`
	LastResult      *batchResult `json:"last_result,omitempty"`
}

// HandleAddMessage accepts one message for a conversation. The response says
// whether the message triggered a drain on this request or joined the
// accumulating batch.
func (h *MessageHandler) HandleAddMessage(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "text is required")
		return
	}

	msg := domain.NewPendingMessage(req.Text, req.Kind, req.Sender)

	result, err := h.coordinator.AddMessage(ctx, conversationID, msg)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			respondError(c, http.StatusBadRequest, "text is required")
			return
		}
		slog.ErrorContext(ctx, "failed to add message",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	resp := &postMessageResponse{
		Status:    "queued",
		MessageID: msg.MessageID,
		QueueSize: result.QueueSize,
		NewFlow:   result.NewFlow,
	}

	if result.Immediate {
		// A contended drain leaves no result; the winner's outcome is
		// retrievable from the result endpoint once it finishes.
		resp.Status = "processing"
		if result.Result != nil {
			resp.Status = "processed"
			resp.Result = toBatchResult(result.Result)
		}
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGetStatus reports a conversation's current coalescing state.
func (h *MessageHandler) HandleGetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")

	status, err := h.coordinator.Status(ctx, conversationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read flow status",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, &flowStatusResponse{
		ConversationID:  status.ConversationID,
		QueueSize:       status.QueueSize,
		Processing:      status.Locked,
		WindowStartedAt: status.WindowStartedAt,
		LastResult:      toBatchResult(status.LastResult),
	})
}

// HandleGetResult returns the retained outcome of the most recent drain.
func (h *MessageHandler) HandleGetResult(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")

	result, err := h.coordinator.LastResult(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			respondError(c, http.StatusNotFound, "no result available")
			return
		}
		slog.ErrorContext(ctx, "failed to read batch result",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, toBatchResult(result))
}

func toBatchResult(r *domain.BatchResult) *batchResult {
	if r == nil {
		return nil
	}
	return &batchResult{
		Outcome:        r.Outcome,
		ProcessedCount: r.ProcessedCount,
		ProcessedAt:    r.ProcessedAt,
		Status:         r.Status,
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"error":   "request_error",
		"message": message,
	})
}
