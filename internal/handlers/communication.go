package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/talenthub/apiserver/internal/services"
)

// CommunicationHandler serves conversations and direct messages.
type CommunicationHandler struct {
	communicationService *services.CommunicationService
}

func NewCommunicationHandler(communicationService *services.CommunicationService) *CommunicationHandler {
	return &CommunicationHandler{communicationService: communicationService}
}

// CommunicationRouter registers messaging routes for any authenticated user.
func CommunicationRouter(r chi.Router, communicationService *services.CommunicationService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCommunicationHandler(communicationService)

	r.Use(authMiddleware)
	r.Get("/conversations", handler.ListConversations)
	r.Post("/conversations", handler.CreateConversation)
	r.Get("/conversations/{conversationID}/messages", handler.ListMessages)
	r.Post("/messages", handler.SendMessage)
}

func (h *CommunicationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req CreateConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.communicationService.CreateConversation(r.Context(), user.ID, req.ParticipantIDs)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *CommunicationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	convs, err := h.communicationService.ListConversations(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *CommunicationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	msg, err := h.communicationService.SendMessage(r.Context(), user.ID, req.ConversationID, req.Content)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		writeServiceError(w, r, err, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *CommunicationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	msgs, err := h.communicationService.ListMessages(r.Context(), user.ID, conversationID, limit)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		writeServiceError(w, r, err, "Failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type CreateConversationRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type SendMessageRequest struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
}
