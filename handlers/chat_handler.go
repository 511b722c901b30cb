package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/routelab/ai-gateway/middleware"
	"github.com/routelab/ai-gateway/models"
	"github.com/routelab/ai-gateway/services/chat"
	"github.com/routelab/ai-gateway/utils"
	"go.uber.org/zap"
)

// ChatService defines the chat operations the handler depends on
type ChatService interface {
	// Complete routes the request, executes the completion and persists the outcome
	Complete(ctx context.Context, req *models.ChatCompletionRequest, meta chat.RequestMeta) (*models.ChatCompletionResponse, error)
}

// ChatHandler handles chat completion HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChatCompletion handles POST /api/v1/chat/completions
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	// Parse request body
	var chatReq models.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	// Validate request
	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	meta := chat.RequestMeta{
		ClientIP:  getClientIP(r),
		UserAgent: r.UserAgent(),
		Endpoint:  r.URL.Path,
	}
	// Chat is open to unauthenticated callers; attribute the request when a
	// token was presented anyway
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		if userID, err := uuid.Parse(claims.Sub); err == nil {
			meta.UserID = &userID
		}
	}

	h.logger.Debug("processing chat completion",
		zap.String("request_id", requestID),
		zap.String("model", chatReq.Model),
		zap.Int("messages", len(chatReq.Messages)))

	response, err := h.service.Complete(ctx, &chatReq, meta)
	if err != nil {
		h.logger.Error("failed to process chat completion",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("chat completion successful",
		zap.String("request_id", requestID),
		zap.String("provider", response.Provider),
		zap.String("model", response.Model),
		zap.Int("prompt_tokens", response.Usage.PromptTokens),
		zap.Int("completion_tokens", response.Usage.CompletionTokens),
		zap.Int64("latency_ms", response.ProcessingTimeMs),
		zap.Float64("cost", response.Cost))

	// Write response
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For first (for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}

	// Try X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return r.RemoteAddr
}
