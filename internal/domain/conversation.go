package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxTitleLength is the maximum number of characters kept in a title.
	MaxTitleLength = 120

	// MaxTags bounds the tags on one conversation.
	MaxTags = 20

	// MaxTagLength is the maximum number of characters in one tag.
	MaxTagLength = 50
)

// Conversation validation errors.
var (
	ErrEmptyConversationID     = fmt.Errorf("%w: conversation ID cannot be empty", ErrValidation)
	ErrEmptyConversationUserID = fmt.Errorf("%w: conversation user ID cannot be empty", ErrValidation)
	ErrTitleTooLong            = fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleLength)
	ErrTooManyTags             = fmt.Errorf("%w: more than %d tags", ErrValidation, MaxTags)
	ErrTagTooLong              = fmt.Errorf("%w: tag exceeds %d characters", ErrValidation, MaxTagLength)
)

// Conversation groups the messages a user exchanged with the assistant.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Pinned    bool      `json:"pinned"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a conversation owned by userID. The title is
// derived from the first prompt with TitleFromText.
func NewConversation(userID, firstPrompt string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     TitleFromText(firstPrompt),
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the conversation's invariants.
func (c *Conversation) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyConversationID
	}
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyConversationUserID
	}
	if utf8.RuneCountInString(c.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if len(c.Tags) > MaxTags {
		return ErrTooManyTags
	}
	return nil
}

// OwnedBy reports whether userID owns c.
func (c *Conversation) OwnedBy(userID string) bool {
	return c.UserID == userID
}

// SetTitle replaces the title and bumps UpdatedAt.
func (c *Conversation) SetTitle(title string) error {
	title = TitleFromText(title)
	if title == "" {
		return fmt.Errorf("%w: title", ErrEmptyContent)
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTags replaces the tags with the normalized form of tags.
func (c *Conversation) SetTags(tags []string) error {
	normalized, err := NormalizeTags(tags)
	if err != nil {
		return err
	}
	c.Tags = normalized
	return nil
}

// NormalizeTags trims each tag and drops blanks and repeats, keeping the
// first occurrence order. The result is never nil.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, ErrTagTooLong
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, ErrTooManyTags
	}
	return out, nil
}

// TitleFromText returns the first non-empty line of text, trimmed and cut
// to MaxTitleLength characters.
func TitleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > MaxTitleLength {
			line = strings.TrimSpace(string([]rune(line)[:MaxTitleLength]))
		}
		return line
	}
	return ""
}
