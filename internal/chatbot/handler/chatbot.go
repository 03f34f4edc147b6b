package handler

import (
	"net/http"

	"github.com/pharmaflow/pharmacy-backend/internal/chatbot/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
)

// ChatbotHandler handles chatbot endpoints
type ChatbotHandler struct {
	service *service.ChatbotService
	logger  *logger.Logger
}

// NewChatbotHandler creates a new chatbot handler
func NewChatbotHandler(svc *service.ChatbotService, log *logger.Logger) *ChatbotHandler {
	return &ChatbotHandler{
		service: svc,
		logger:  log,
	}
}

// ChatRequest is the chat payload
type ChatRequest struct {
	Query string `json:"query" validate:"required,min=1,max=1000"`
}

// Respond answers a catalog question
func (h *ChatbotHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	response, err := h.service.Respond(r.Context(), req.Query)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, response)
}
