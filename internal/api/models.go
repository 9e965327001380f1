package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/vaelis-ai/vaelis-api/internal/domain"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/service"
)

// GenerateRequest is the body of POST /api/ai/generate. Unknown modes fall
// back to chat.
type GenerateRequest struct {
	Prompt      string     `json:"prompt"       validate:"required,max=32000"`
	Mode        string     `json:"mode"`
	UseSearch   bool       `json:"use_search"`
	SearchQuery string     `json:"search_query" validate:"max=400"`
	ConvID      *uuid.UUID `json:"conv_id"`
}

// GenerateResponse is the success envelope plus the conversation it was
// recorded in. ConvID is omitted when the exchange could not be stored.
type GenerateResponse struct {
	Assistant string                  `json:"assistant"`
	Output    string                  `json:"output"`
	Sources   []generation.SourceItem `json:"sources"`
	Raw       any                     `json:"raw"`
	ConvID    *uuid.UUID              `json:"conv_id,omitempty"`
}

// RetryRequest is the body of POST /api/ai/retry.
type RetryRequest struct {
	ConvID    uuid.UUID `json:"conv_id"    validate:"required"`
	MessageID uuid.UUID `json:"message_id" validate:"required"`
}

// RetryResponse wraps the regenerated envelope.
type RetryResponse struct {
	Result *generation.Result `json:"result"`
}

// PinRequest is the body of POST /api/conversations/{id}/pin. A missing
// pinned field pins the conversation.
type PinRequest struct {
	Pinned *bool `json:"pinned"`
}

// PinResponse reports the stored pin state.
type PinResponse struct {
	OK     bool `json:"ok"`
	Pinned bool `json:"pinned"`
}

// TagsRequest is the body of POST /api/conversations/{id}/tags. An empty
// list clears the tags.
type TagsRequest struct {
	Tags []string `json:"tags" validate:"required"`
}

// TagsResponse reports the stored, normalized tags.
type TagsResponse struct {
	OK   bool     `json:"ok"`
	Tags []string `json:"tags"`
}

// ConversationResponse is one conversation without its messages.
type ConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageResponse is one message of a conversation.
type MessageResponse struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListConversationsResponse is the body of GET /api/conversations.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// ConversationDetailResponse is the body of GET /api/conversations/{id}.
type ConversationDetailResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
}

// TitleResponse is the body of POST /api/conversations/{id}/title. Title is
// null when the generator produced nothing usable.
type TitleResponse struct {
	Title *string `json:"title"`
}

func generateToResponse(out *service.GenerateOutput) GenerateResponse {
	resp := GenerateResponse{
		Assistant: out.Result.Assistant,
		Output:    out.Result.Output,
		Sources:   out.Result.Sources,
		Raw:       out.Result.Raw,
	}
	if resp.Sources == nil {
		resp.Sources = []generation.SourceItem{}
	}
	if out.ConversationID != uuid.Nil {
		id := out.ConversationID
		resp.ConvID = &id
	}
	return resp
}

func conversationToResponse(c *domain.Conversation) ConversationResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return ConversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Pinned:    c.Pinned,
		Tags:      tags,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func messageToResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
