package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vaelis-ai/vaelis-api/internal/domain"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/store"
)

// PostgresConversationStore implements store.ConversationStore.
type PostgresConversationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.ConversationStore = (*PostgresConversationStore)(nil)

// NewPostgresConversationStore creates a conversation store on db, which may
// be a pool or a transaction. If logger is nil, slog.Default is used.
func NewPostgresConversationStore(db store.DBTX, logger *slog.Logger) *PostgresConversationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresConversationStore{
		db:     db,
		logger: logger.With(slog.String("component", "conversation_store")),
	}
}

// Create implements store.ConversationStore.Create.
func (s *PostgresConversationStore) Create(ctx context.Context, conv *domain.Conversation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := conv.Validate(); err != nil {
		log.Warn("conversation validation failed during create",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conv.ID.String()))
		return err
	}

	tags, err := encodeTags(conv.Tags)
	if err != nil {
		return store.NewStoreError("conversation", "create", "encode tags failed", err)
	}

	query := `
		INSERT INTO conversations (id, user_id, title, pinned, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		conv.Pinned,
		tags,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create conversation",
			slog.String("error", err.Error()),
			slog.String("conversation_id", conv.ID.String()))
		return store.NewStoreError("conversation", "create", "insert failed", MapError(err))
	}

	log.Debug("conversation created", slog.String("conversation_id", conv.ID.String()))
	return nil
}

// GetByID implements store.ConversationStore.GetByID.
func (s *PostgresConversationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("conversation not found", slog.String("conversation_id", id.String()))
			return nil, store.ErrConversationNotFound
		}
		log.Error("failed to get conversation",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return nil, store.NewStoreError("conversation", "get", "query failed", MapError(err))
	}

	return conv, nil
}

// ListByUser implements store.ConversationStore.ListByUser.
func (s *PostgresConversationStore) ListByUser(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]*domain.Conversation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = $1
		ORDER BY pinned DESC, updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		log.Error("failed to list conversations", slog.String("error", err.Error()))
		return nil, store.NewStoreError("conversation", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	convs := make([]*domain.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, store.NewStoreError("conversation", "list", "scan failed", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("conversation", "list", "row iteration failed", err)
	}

	log.Debug("conversations listed", slog.Int("count", len(convs)))
	return convs, nil
}

// UpdateTitle implements store.ConversationStore.UpdateTitle.
func (s *PostgresConversationStore) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len([]rune(title)) > domain.MaxTitleLength {
		return domain.ErrTitleTooLong
	}

	query := `
		UPDATE conversations
		SET title = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, title, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update conversation title",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return store.NewStoreError("conversation", "update", "update title failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrConversationNotFound)
}

// SetPinned implements store.ConversationStore.SetPinned.
func (s *PostgresConversationStore) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE conversations SET pinned = $1 WHERE id = $2`, pinned, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update conversation pin",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return store.NewStoreError("conversation", "update", "update pinned failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrConversationNotFound)
}

// SetTags implements store.ConversationStore.SetTags.
func (s *PostgresConversationStore) SetTags(ctx context.Context, id uuid.UUID, tags []string) error {
	if len(tags) > domain.MaxTags {
		return domain.ErrTooManyTags
	}
	encoded, err := encodeTags(tags)
	if err != nil {
		return store.NewStoreError("conversation", "update", "encode tags failed", err)
	}

	result, err := s.db.ExecContext(ctx, `UPDATE conversations SET tags = $1::jsonb WHERE id = $2`, encoded, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update conversation tags",
			slog.String("error", err.Error()),
			slog.String("conversation_id", id.String()))
		return store.NewStoreError("conversation", "update", "update tags failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrConversationNotFound)
}

// Touch implements store.ConversationStore.Touch.
func (s *PostgresConversationStore) Touch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE conversations SET updated_at = $1 WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return store.NewStoreError("conversation", "touch", "update failed", MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrConversationNotFound); err != nil {
		return fmt.Errorf("touch conversation %s: %w", id, err)
	}
	return nil
}

// WithTx implements store.ConversationStore.WithTx.
func (s *PostgresConversationStore) WithTx(tx *sql.Tx) store.ConversationStore {
	return &PostgresConversationStore{db: tx, logger: s.logger}
}

const conversationColumns = "id, user_id, title, pinned, tags, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		conv domain.Conversation
		tags []byte
	)
	if err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.Pinned,
		&tags,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	conv.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &conv.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &conv, nil
}

// encodeTags renders tags as a JSON array; nil becomes [].
func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
