package api

import (
	"net/http"

	"github.com/vaelis-ai/vaelis-api/internal/api/shared"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/service"
)

// ChatHandler serves the generation and conversation routes.
type ChatHandler struct {
	chat service.ChatService
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Generate handles POST /api/ai/generate.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	out, err := h.chat.Generate(r.Context(), userID, service.GenerateInput{
		Prompt:         req.Prompt,
		Mode:           req.Mode,
		UseSearch:      req.UseSearch,
		SearchQuery:    req.SearchQuery,
		ConversationID: req.ConvID,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, generateToResponse(out))
}

// Retry handles POST /api/ai/retry.
func (h *ChatHandler) Retry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req RetryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	result, err := h.chat.Retry(r.Context(), userID, req.ConvID, req.MessageID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RetryResponse{Result: result})
}

// ListConversations handles GET /api/conversations.
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		HandleAPIError(w, r, err, "Invalid pagination parameters")
		return
	}

	convs, err := h.chat.ListConversations(r.Context(), userID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := ListConversationsResponse{Conversations: make([]ConversationResponse, 0, len(convs))}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, conversationToResponse(c))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetConversation handles GET /api/conversations/{id}.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		logger.FromContext(r.Context()).Debug("invalid conversation id", "error", err)
		HandleAPIError(w, r, err, "")
		return
	}

	detail, err := h.chat.GetConversation(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := ConversationDetailResponse{
		Conversation: conversationToResponse(detail.Conversation),
		Messages:     make([]MessageResponse, 0, len(detail.Messages)),
	}
	for _, m := range detail.Messages {
		resp.Messages = append(resp.Messages, messageToResponse(m))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GenerateTitle handles POST /api/conversations/{id}/title.
func (h *ChatHandler) GenerateTitle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	title, err := h.chat.GenerateTitle(r.Context(), userID, id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := TitleResponse{}
	if title != "" {
		resp.Title = &title
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// SetPinned handles POST /api/conversations/{id}/pin.
func (h *ChatHandler) SetPinned(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req PinRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	pinned := true
	if req.Pinned != nil {
		pinned = *req.Pinned
	}

	conv, err := h.chat.SetPinned(r.Context(), userID, id, pinned)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, PinResponse{OK: true, Pinned: conv.Pinned})
}

// SetTags handles POST /api/conversations/{id}/tags.
func (h *ChatHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req TagsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, r, err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	conv, err := h.chat.SetTags(r.Context(), userID, id, req.Tags)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TagsResponse{OK: true, Tags: conv.Tags})
}
