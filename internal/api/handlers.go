package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatconnect/internal/config"
	"chatconnect/internal/conversation"
	"chatconnect/internal/gateway"
	"chatconnect/internal/metrics"
	"chatconnect/internal/models"
)

const defaultStreamTimeout = 2 * time.Minute

// Handler wires HTTP routes to the conversation store and the completion
// gateway.
type Handler struct {
	store     *conversation.Store
	completer gateway.Completer
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics

	streamTimeout time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(store *conversation.Store, completer gateway.Completer, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) *Handler {
	timeout := time.Duration(cfg.BasicConfig.StreamTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	return &Handler{
		store:         store,
		completer:     completer,
		cfg:           cfg,
		log:           log,
		metrics:       m,
		streamTimeout: timeout,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.observe())
	router.GET("/", h.root)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	api := router.Group("/api")
	api.POST("/chat", h.chatStream)
	api.POST("/chat/sync", h.chatSync)
	api.POST("/chat/clear", h.clearConversation)
	api.GET("/chat/history", h.getHistory)
	api.GET("/health", h.health)
}

// observe records request counts, durations and in-flight gauge.
func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		h.metrics.RequestsInFlight.Inc()
		c.Next()
		h.metrics.RequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		h.metrics.RequestsTotal.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
		h.metrics.RequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

// failJSON writes the error body shape shared by all non-2xx responses.
func failJSON(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}

type chatRequest struct {
	Message string `json:"message"`
	// ConversationID is accepted but unused; the server holds one
	// conversation per process.
	ConversationID string `json:"conversation_id"`
}

// bindChatRequest rejects invalid bodies and empty messages before any
// upstream call is made.
func bindChatRequest(c *gin.Context) (string, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failJSON(c, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		failJSON(c, http.StatusBadRequest, "message cannot be empty")
		return "", false
	}
	return text, true
}

// chatStream handles one streaming chat turn: append the user message, run
// the completion, frame each fragment as an SSE event, and append the
// assistant response on success.
func (h *Handler) chatStream(c *gin.Context) {
	text, ok := bindChatRequest(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	if _, err := h.store.Append(ctx, models.RoleUser, text); err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := h.store.Snapshot(ctx)
	if err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	encoder, err := newStreamEncoder(c.Writer)
	if err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)

	fullResponse, err := h.completer.StreamChat(ctx, history, func(fragment string) error {
		h.metrics.ChunksStreamedTotal.Inc()
		return encoder.Chunk(fragment)
	})
	if err != nil {
		h.metrics.UpstreamErrorsTotal.Inc()
		h.metrics.TurnsTotal.WithLabelValues("error").Inc()
		h.log.Warn().Err(err).Msg("chat stream failed")
		_ = encoder.Error(err.Error())
		return
	}

	if _, err := h.store.Append(ctx, models.RoleAssistant, fullResponse); err != nil {
		h.metrics.TurnsTotal.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("store assistant response failed")
		_ = encoder.Error(err.Error())
		return
	}
	h.metrics.TurnsTotal.WithLabelValues("ok").Inc()
	_ = encoder.Done(fullResponse)
}

// chatSync handles one chat turn without streaming.
func (h *Handler) chatSync(c *gin.Context) {
	text, ok := bindChatRequest(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	if _, err := h.store.Append(ctx, models.RoleUser, text); err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := h.store.Snapshot(ctx)
	if err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	response, err := h.completer.Complete(ctx, history)
	if err != nil {
		h.metrics.UpstreamErrorsTotal.Inc()
		h.metrics.TurnsTotal.WithLabelValues("error").Inc()
		h.log.Warn().Err(err).Msg("chat completion failed")
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := h.store.Append(ctx, models.RoleAssistant, response); err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.metrics.TurnsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"response": response})
}

func (h *Handler) clearConversation(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "conversation history cleared",
		"success": true,
	})
}

func (h *Handler) getHistory(c *gin.Context) {
	messages, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	length, err := h.store.Len(c.Request.Context())
	if err != nil {
		failJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":            messages,
		"conversation_length": length,
	})
}

func (h *Handler) health(c *gin.Context) {
	provider := h.cfg.BasicConfig.DefaultProvider
	provCfg := h.cfg.Providers[provider]
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"provider":           provider,
		"model":              provCfg.Model,
		"api_key_configured": provCfg.APIKey != "",
	})
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "AI Chat Connector API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"POST /api/chat":        "Send a chat message and get streaming response",
			"POST /api/chat/sync":   "Send a chat message and get complete response",
			"POST /api/chat/clear":  "Clear conversation history",
			"GET /api/chat/history": "Get conversation history",
		},
	})
}
