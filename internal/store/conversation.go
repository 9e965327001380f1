package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/vaelis-ai/vaelis-api/internal/domain"
)

// ConversationStore defines persistence for conversations.
type ConversationStore interface {
	// Create saves a new conversation. Validation errors from the domain
	// entity are returned unchanged.
	Create(ctx context.Context, conv *domain.Conversation) error

	// GetByID retrieves a conversation by its ID.
	// Returns ErrConversationNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)

	// ListByUser returns the user's conversations, pinned ones first and then
	// most recently updated first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Conversation, error)

	// UpdateTitle stores a new title and bumps updated_at.
	// Returns ErrConversationNotFound if it does not exist.
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error

	// SetPinned marks or unmarks a conversation as pinned.
	// Returns ErrConversationNotFound if it does not exist.
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error

	// SetTags replaces a conversation's tags.
	// Returns ErrConversationNotFound if it does not exist.
	SetTags(ctx context.Context, id uuid.UUID, tags []string) error

	// Touch bumps updated_at after new messages were added.
	Touch(ctx context.Context, id uuid.UUID) error

	// WithTx returns a ConversationStore bound to tx.
	WithTx(tx *sql.Tx) ConversationStore
}

// MessageStore defines persistence for messages.
type MessageStore interface {
	// Create saves a new message.
	// Returns ErrInvalidEntity if the conversation does not exist.
	Create(ctx context.Context, msg *domain.Message) error

	// GetByID retrieves a message by its ID.
	// Returns ErrMessageNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)

	// ListByConversation returns up to limit messages in creation order.
	// A limit of zero or less returns all messages.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error)

	// WithTx returns a MessageStore bound to tx.
	WithTx(tx *sql.Tx) MessageStore
}
