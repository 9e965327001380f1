package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vaelis-ai/vaelis-api/internal/dedupe"
	"github.com/vaelis-ai/vaelis-api/internal/domain"
	"github.com/vaelis-ai/vaelis-api/internal/generation"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/platform/metrics"
	"github.com/vaelis-ai/vaelis-api/internal/search"
	"github.com/vaelis-ai/vaelis-api/internal/store"
)

const (
	// titleMessageLimit is how many messages feed a generated title.
	titleMessageLimit = 10

	titlePromptPrefix = "Generate a short (under 8 words) meaningful title for this conversation:\n"
)

// GenerateInput is a user's generation request.
type GenerateInput struct {
	Prompt      string
	Mode        string
	UseSearch   bool
	SearchQuery string

	// ConversationID appends to an existing conversation when set.
	ConversationID *uuid.UUID
}

// GenerateOutput is the answer to a GenerateInput. ConversationID is
// uuid.Nil when the exchange could not be recorded.
type GenerateOutput struct {
	Result         *generation.Result
	ConversationID uuid.UUID
}

// ConversationDetail is a conversation with its messages in order.
type ConversationDetail struct {
	Conversation *domain.Conversation
	Messages     []*domain.Message
}

// ChatService provides the chat use cases.
type ChatService interface {
	// Generate answers a prompt and records the exchange. A failed
	// generation is returned as a *generation.Error.
	Generate(ctx context.Context, userID string, in GenerateInput) (*GenerateOutput, error)

	// Retry regenerates an answer for an existing message. Identical content
	// retried inside the dedupe window fails with ErrDuplicateRetry without
	// calling the generator.
	Retry(ctx context.Context, userID string, conversationID, messageID uuid.UUID) (*generation.Result, error)

	// ListConversations returns the user's conversations, newest first.
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]*domain.Conversation, error)

	// GetConversation returns one of the user's conversations with its messages.
	GetConversation(ctx context.Context, userID string, id uuid.UUID) (*ConversationDetail, error)

	// GenerateTitle asks the generator for a title and stores it when non-empty.
	GenerateTitle(ctx context.Context, userID string, id uuid.UUID) (string, error)

	// SetPinned pins or unpins one of the user's conversations.
	SetPinned(ctx context.Context, userID string, id uuid.UUID, pinned bool) (*domain.Conversation, error)

	// SetTags replaces the tags of one of the user's conversations. Tags are
	// trimmed and deduplicated; invalid tags fail with a domain.ErrValidation.
	SetTags(ctx context.Context, userID string, id uuid.UUID, tags []string) (*domain.Conversation, error)
}

// ChatDeps are the collaborators of ChatService. Searcher and DB are optional:
// without a Searcher, search requests yield no sources; without a DB, the
// user and assistant messages are written without a transaction.
type ChatDeps struct {
	Generator     generation.Generator
	Searcher      search.Searcher
	Dedupe        dedupe.Cache
	Conversations store.ConversationStore
	Messages      store.MessageStore
	DB            *sql.DB
	Logger        *slog.Logger

	// DedupePerUser scopes retry fingerprints to the requesting user.
	DedupePerUser bool
}

type chatServiceImpl struct {
	generator     generation.Generator
	searcher      search.Searcher
	dedupe        dedupe.Cache
	conversations store.ConversationStore
	messages      store.MessageStore
	db            *sql.DB
	logger        *slog.Logger
	perUser       bool
}

// NewChatService validates deps and returns a ChatService.
func NewChatService(deps ChatDeps) (ChatService, error) {
	switch {
	case deps.Generator == nil:
		return nil, &ChatServiceError{Operation: "create_service", Message: "generator cannot be nil"}
	case deps.Dedupe == nil:
		return nil, &ChatServiceError{Operation: "create_service", Message: "dedupe cache cannot be nil"}
	case deps.Conversations == nil:
		return nil, &ChatServiceError{Operation: "create_service", Message: "conversation store cannot be nil"}
	case deps.Messages == nil:
		return nil, &ChatServiceError{Operation: "create_service", Message: "message store cannot be nil"}
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &chatServiceImpl{
		generator:     deps.Generator,
		searcher:      deps.Searcher,
		dedupe:        deps.Dedupe,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		db:            deps.DB,
		logger:        log.With("component", "chat_service"),
		perUser:       deps.DedupePerUser,
	}, nil
}

// Generate implements ChatService.Generate.
func (s *chatServiceImpl) Generate(ctx context.Context, userID string, in GenerateInput) (*GenerateOutput, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if strings.TrimSpace(in.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	var conv *domain.Conversation
	if in.ConversationID != nil {
		existing, err := s.ownedConversation(ctx, userID, *in.ConversationID)
		if err != nil {
			return nil, NewChatServiceError("generate", "failed to load conversation", err)
		}
		conv = existing
	}

	req := generation.Request{
		Prompt:  in.Prompt,
		Mode:    generation.ParseMode(in.Mode),
		Sources: s.lookupSources(ctx, in),
	}

	result := s.generator.Generate(ctx, req)
	if !result.OK() {
		log.WarnContext(ctx, "generation failed",
			"kind", result.Kind,
			"status_code", result.StatusCode,
			"details", result.Details)
		return nil, result.Err()
	}

	convID, err := s.recordExchange(ctx, userID, conv, in.Prompt, result.Output)
	if err != nil {
		log.ErrorContext(ctx, "failed to persist conversation", "error", err)
	}

	return &GenerateOutput{Result: result, ConversationID: convID}, nil
}

// Retry implements ChatService.Retry.
func (s *chatServiceImpl) Retry(
	ctx context.Context,
	userID string,
	conversationID, messageID uuid.UUID,
) (*generation.Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, NewChatServiceError("retry", "failed to load conversation", err)
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, NewChatServiceError("retry", "failed to load message", err)
	}
	if msg.ConversationID != conversationID {
		return nil, ErrMessageNotFound
	}

	content := msg.Content
	if s.perUser {
		content = dedupe.Scoped(userID, content)
	}
	accepted, err := s.dedupe.CheckAndRecord(ctx, content)
	switch {
	case err != nil:
		metrics.DedupeBackendErrors.Inc()
		log.WarnContext(ctx, "dedupe check failed, allowing retry", "error", err)
	case !accepted:
		metrics.DedupeRejections.Inc()
		log.InfoContext(ctx, "duplicate retry rejected",
			"conversation_id", conversationID,
			"message_id", messageID)
		return nil, ErrDuplicateRetry
	}

	result := s.generator.Generate(ctx, generation.Request{
		Prompt: msg.Content,
		Mode:   generation.ModeChat,
	})
	if !result.OK() {
		log.WarnContext(ctx, "retry generation failed",
			"kind", result.Kind,
			"status_code", result.StatusCode,
			"details", result.Details)
		return nil, result.Err()
	}

	if err := s.appendAssistant(ctx, conversationID, result.Output); err != nil {
		log.ErrorContext(ctx, "failed to persist retry message",
			"error", err,
			"conversation_id", conversationID)
	}

	return result, nil
}

// ListConversations implements ChatService.ListConversations.
func (s *chatServiceImpl) ListConversations(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]*domain.Conversation, error) {
	convs, err := s.conversations.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, NewChatServiceError("list_conversations", "failed to list conversations", err)
	}
	return convs, nil
}

// GetConversation implements ChatService.GetConversation.
func (s *chatServiceImpl) GetConversation(
	ctx context.Context,
	userID string,
	id uuid.UUID,
) (*ConversationDetail, error) {
	conv, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, NewChatServiceError("get_conversation", "failed to load conversation", err)
	}

	msgs, err := s.messages.ListByConversation(ctx, id, 0)
	if err != nil {
		return nil, NewChatServiceError("get_conversation", "failed to load messages", err)
	}

	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

// GenerateTitle implements ChatService.GenerateTitle.
func (s *chatServiceImpl) GenerateTitle(ctx context.Context, userID string, id uuid.UUID) (string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	conv, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return "", NewChatServiceError("generate_title", "failed to load conversation", err)
	}

	msgs, err := s.messages.ListByConversation(ctx, id, titleMessageLimit)
	if err != nil {
		return "", NewChatServiceError("generate_title", "failed to load messages", err)
	}

	contents := make([]string, 0, len(msgs))
	for _, m := range msgs {
		contents = append(contents, m.Content)
	}

	result := s.generator.Generate(ctx, generation.Request{
		Prompt: titlePromptPrefix + strings.Join(contents, "\n"),
		Mode:   generation.ModeStudy,
	})
	if !result.OK() {
		return "", result.Err()
	}

	if err := conv.SetTitle(result.Output); err != nil {
		if errors.Is(err, domain.ErrEmptyContent) {
			log.InfoContext(ctx, "generated title was empty, keeping the current one", "conversation_id", id)
			return "", nil
		}
		return "", NewChatServiceError("generate_title", "invalid title", err)
	}

	if err := s.conversations.UpdateTitle(ctx, id, conv.Title); err != nil {
		return "", NewChatServiceError("generate_title", "failed to store title", err)
	}
	log.InfoContext(ctx, "conversation title updated", "conversation_id", id)
	return conv.Title, nil
}

// SetPinned implements ChatService.SetPinned.
func (s *chatServiceImpl) SetPinned(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	pinned bool,
) (*domain.Conversation, error) {
	conv, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, NewChatServiceError("set_pinned", "failed to load conversation", err)
	}

	if err := s.conversations.SetPinned(ctx, id, pinned); err != nil {
		return nil, NewChatServiceError("set_pinned", "failed to store pin", err)
	}
	conv.Pinned = pinned
	return conv, nil
}

// SetTags implements ChatService.SetTags.
func (s *chatServiceImpl) SetTags(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	tags []string,
) (*domain.Conversation, error) {
	conv, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, NewChatServiceError("set_tags", "failed to load conversation", err)
	}

	if err := conv.SetTags(tags); err != nil {
		return nil, err
	}
	if err := s.conversations.SetTags(ctx, id, conv.Tags); err != nil {
		return nil, NewChatServiceError("set_tags", "failed to store tags", err)
	}
	return conv, nil
}

// ownedConversation loads a conversation and hides it from other users.
func (s *chatServiceImpl) ownedConversation(ctx context.Context, userID string, id uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(userID) {
		logger.FromContextOrDefault(ctx, s.logger).WarnContext(ctx,
			"conversation accessed by another user",
			"conversation_id", id)
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *chatServiceImpl) lookupSources(ctx context.Context, in GenerateInput) []generation.SourceItem {
	if !in.UseSearch || s.searcher == nil {
		return nil
	}

	query := in.SearchQuery
	if strings.TrimSpace(query) == "" {
		query = in.Prompt
	}

	results, err := s.searcher.Search(ctx, query)
	if err != nil {
		log := logger.FromContextOrDefault(ctx, s.logger)
		if errors.Is(err, search.ErrNotConfigured) {
			log.DebugContext(ctx, "search requested but not configured")
		} else {
			log.WarnContext(ctx, "search failed, continuing without sources", "error", err)
		}
		return nil
	}
	return results.Sources()
}

// recordExchange stores the user prompt and the answer, creating the
// conversation when conv is nil. It returns the conversation ID, or uuid.Nil
// when nothing could be stored.
func (s *chatServiceImpl) recordExchange(
	ctx context.Context,
	userID string,
	conv *domain.Conversation,
	prompt, answer string,
) (uuid.UUID, error) {
	isNew := conv == nil
	if isNew {
		created, err := domain.NewConversation(userID, prompt)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to build conversation: %w", err)
		}
		conv = created
	}

	userMsg, err := domain.NewMessage(conv.ID, domain.RoleUser, prompt)
	if err != nil {
		return s.keptID(conv, isNew), fmt.Errorf("failed to build user message: %w", err)
	}
	assistantMsg, err := domain.NewMessage(conv.ID, domain.RoleAssistant, answer)
	if err != nil {
		return s.keptID(conv, isNew), fmt.Errorf("failed to build assistant message: %w", err)
	}
	assistantMsg.FollowOn(userMsg)

	write := func(ctx context.Context, convs store.ConversationStore, msgs store.MessageStore) error {
		if isNew {
			if err := convs.Create(ctx, conv); err != nil {
				return err
			}
		}
		if err := msgs.Create(ctx, userMsg); err != nil {
			return err
		}
		if err := msgs.Create(ctx, assistantMsg); err != nil {
			return err
		}
		if !isNew {
			return convs.Touch(ctx, conv.ID)
		}
		return nil
	}

	if err := s.inTx(ctx, write); err != nil {
		return s.keptID(conv, isNew), NewChatServiceError("record_exchange", "failed to store messages", err)
	}
	return conv.ID, nil
}

// keptID is the conversation ID that survives a failed write: an existing
// conversation still exists, a new one was never created.
func (s *chatServiceImpl) keptID(conv *domain.Conversation, isNew bool) uuid.UUID {
	if isNew {
		return uuid.Nil
	}
	return conv.ID
}

func (s *chatServiceImpl) appendAssistant(ctx context.Context, conversationID uuid.UUID, answer string) error {
	msg, err := domain.NewMessage(conversationID, domain.RoleAssistant, answer)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context, convs store.ConversationStore, msgs store.MessageStore) error {
		if err := msgs.Create(ctx, msg); err != nil {
			return err
		}
		return convs.Touch(ctx, conversationID)
	})
}

type storesFn func(ctx context.Context, convs store.ConversationStore, msgs store.MessageStore) error

// inTx runs fn inside a transaction when a DB is configured.
func (s *chatServiceImpl) inTx(ctx context.Context, fn storesFn) error {
	if s.db == nil {
		return fn(ctx, s.conversations, s.messages)
	}
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.conversations.WithTx(tx), s.messages.WithTx(tx))
	})
}
