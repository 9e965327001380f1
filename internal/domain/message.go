package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampPrecision is the resolution at which message times are stored.
const TimestampPrecision = time.Microsecond

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message validation errors.
var (
	ErrEmptyMessageID           = fmt.Errorf("%w: message ID cannot be empty", ErrValidation)
	ErrEmptyMessageConversation = fmt.Errorf("%w: message conversation ID cannot be empty", ErrValidation)
	ErrInvalidRole              = fmt.Errorf("%w: invalid message role", ErrValidation)
	ErrEmptyMessageContent      = fmt.Errorf("%w: message content cannot be empty", ErrValidation)
)

// Message is one turn in a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage creates a validated message.
func NewMessage(conversationID uuid.UUID, role Role, content string) (*Message, error) {
	m := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC().Truncate(TimestampPrecision),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FollowOn moves m's CreatedAt at least one TimestampPrecision step past
// prev, so a reply created in the same instant still sorts after it.
func (m *Message) FollowOn(prev *Message) {
	if earliest := prev.CreatedAt.Add(TimestampPrecision); m.CreatedAt.Before(earliest) {
		m.CreatedAt = earliest
	}
}

// Validate checks the message's invariants.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMessageID
	}
	if m.ConversationID == uuid.Nil {
		return ErrEmptyMessageConversation
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return ErrInvalidRole
	}
	if strings.TrimSpace(m.Content) == "" {
		return ErrEmptyMessageContent
	}
	return nil
}
