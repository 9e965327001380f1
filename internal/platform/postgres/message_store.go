package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vaelis-ai/vaelis-api/internal/domain"
	"github.com/vaelis-ai/vaelis-api/internal/platform/logger"
	"github.com/vaelis-ai/vaelis-api/internal/store"
)

// PostgresMessageStore implements store.MessageStore.
type PostgresMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.MessageStore = (*PostgresMessageStore)(nil)

// NewPostgresMessageStore creates a message store on db. If logger is nil,
// slog.Default is used.
func NewPostgresMessageStore(db store.DBTX, logger *slog.Logger) *PostgresMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMessageStore{
		db:     db,
		logger: logger.With(slog.String("component", "message_store")),
	}
}

// Create implements store.MessageStore.Create. A missing conversation is
// reported as store.ErrInvalidEntity.
func (s *PostgresMessageStore) Create(ctx context.Context, msg *domain.Message) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := msg.Validate(); err != nil {
		log.Warn("message validation failed during create",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID.String()))
		return err
	}

	query := `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.Role),
		msg.Content,
		msg.CreatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("message references a missing conversation",
				slog.String("message_id", msg.ID.String()),
				slog.String("conversation_id", msg.ConversationID.String()))
			return fmt.Errorf("%w: conversation with ID %s not found",
				store.ErrInvalidEntity, msg.ConversationID)
		}
		log.Error("failed to create message",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID.String()))
		return store.NewStoreError("message", "create", "insert failed", MapError(err))
	}

	return nil
}

// GetByID implements store.MessageStore.GetByID.
func (s *PostgresMessageStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE id = $1
	`

	var (
		msg  domain.Message
		role string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&role,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("message not found", slog.String("message_id", id.String()))
			return nil, store.ErrMessageNotFound
		}
		log.Error("failed to get message",
			slog.String("error", err.Error()),
			slog.String("message_id", id.String()))
		return nil, store.NewStoreError("message", "get", "query failed", MapError(err))
	}
	msg.Role = domain.Role(role)

	return &msg, nil
}

// ListByConversation implements store.MessageStore.ListByConversation.
func (s *PostgresMessageStore) ListByConversation(
	ctx context.Context,
	conversationID uuid.UUID,
	limit int,
) ([]*domain.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("message", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	msgs := make([]*domain.Message, 0)
	for rows.Next() {
		var (
			msg  domain.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, store.NewStoreError("message", "list", "scan failed", err)
		}
		msg.Role = domain.Role(role)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("message", "list", "row iteration failed", err)
	}
	return msgs, nil
}

// WithTx implements store.MessageStore.WithTx.
func (s *PostgresMessageStore) WithTx(tx *sql.Tx) store.MessageStore {
	return &PostgresMessageStore{db: tx, logger: s.logger}
}
