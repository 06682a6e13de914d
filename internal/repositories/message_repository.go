package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, thread_id, owner_type, owner_id, type, body, reply_to_id, edited, reacted, created_at, updated_at, deleted_at`

// MessageRepository defines interactions for thread messages.
type MessageRepository interface {
	List(ctx context.Context, threadID string, before *time.Time, limit int) ([]models.Message, error)
	Get(ctx context.Context, threadID, messageID string) (models.Message, error)
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	UpdateBody(ctx context.Context, messageID, body string, at time.Time) (models.Message, error)
	SoftDelete(ctx context.Context, messageID string, at time.Time) error
	ListEdits(ctx context.Context, messageID string) ([]models.MessageEdit, error)
	CountSince(ctx context.Context, threadID string, since *time.Time) (int, error)
	SetReacted(ctx context.Context, messageID string, reacted bool) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// List pages backwards through a thread's messages, newest first.
func (r *MessageRepo) List(ctx context.Context, threadID string, before *time.Time, limit int) ([]models.Message, error) {
	builder := psql.Select(messageColumns).
		From("messages").
		Where(sq.Eq{"thread_id": threadID, "deleted_at": nil}).
		OrderBy("created_at DESC")
	if before != nil {
		builder = builder.Where(sq.Lt{"created_at": *before})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	msgs := []models.Message{}
	err = r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// Get retrieves a single message scoped to its thread.
func (r *MessageRepo) Get(ctx context.Context, threadID, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 AND thread_id=$2 AND deleted_at IS NULL`, messageID, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Create stores a message and bumps the thread's updated_at.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = newID()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	query, args, err := psql.Insert("messages").
		Columns("id", "thread_id", "owner_type", "owner_id", "type", "body", "reply_to_id").
		Values(msg.ID, msg.ThreadID, msg.OwnerType, msg.OwnerID, msg.Type, msg.Body, msg.ReplyToID).
		Suffix("RETURNING " + messageColumns).
		ToSql()
	if err != nil {
		return models.Message{}, err
	}

	var created models.Message
	if err := tx.GetContext(ctx, &created, query, args...); err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE threads SET updated_at=$2 WHERE id=$1`, created.ThreadID, created.CreatedAt); err != nil {
		return models.Message{}, fmt.Errorf("touch thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return created, nil
}

// UpdateBody keeps the previous body as an edit and stores the new one.
func (r *MessageRepo) UpdateBody(ctx context.Context, messageID, body string, at time.Time) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var previous string
	if err := tx.GetContext(ctx, &previous, `SELECT body FROM messages WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO message_edits (id, message_id, body, edited_at) VALUES ($1, $2, $3, $4)`, newID(), messageID, previous, at); err != nil {
		return models.Message{}, fmt.Errorf("store edit: %w", err)
	}

	var updated models.Message
	if err := tx.GetContext(ctx, &updated, `UPDATE messages SET body=$2, edited=TRUE, updated_at=$3 WHERE id=$1 RETURNING `+messageColumns, messageID, body, at); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return updated, nil
}

// SoftDelete archives a message.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted_at=$2 WHERE id=$1 AND deleted_at IS NULL`, messageID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListEdits returns prior bodies, newest first.
func (r *MessageRepo) ListEdits(ctx context.Context, messageID string) ([]models.MessageEdit, error) {
	edits := []models.MessageEdit{}
	err := r.db.SelectContext(ctx, &edits, `SELECT id, message_id, body, edited_at FROM message_edits WHERE message_id=$1 ORDER BY edited_at DESC`, messageID)
	return edits, err
}

// CountSince counts live messages created after since, or all of them when since is nil.
func (r *MessageRepo) CountSince(ctx context.Context, threadID string, since *time.Time) (int, error) {
	builder := psql.Select("COUNT(*)").
		From("messages").
		Where(sq.Eq{"thread_id": threadID, "deleted_at": nil})
	if since != nil {
		builder = builder.Where(sq.Gt{"created_at": *since})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

func (r *MessageRepo) SetReacted(ctx context.Context, messageID string, reacted bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET reacted=$2 WHERE id=$1`, messageID, reacted)
	return err
}
