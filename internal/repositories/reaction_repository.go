package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrReactionNotFound = errors.New("reaction not found")

// ReactionRepository persists message reactions.
type ReactionRepository interface {
	ListByMessage(ctx context.Context, messageID string) ([]models.MessageReaction, error)
	Get(ctx context.Context, messageID, reactionID string) (models.MessageReaction, error)
	Create(ctx context.Context, reaction models.MessageReaction) (models.MessageReaction, error)
	Delete(ctx context.Context, reactionID string) error
	CountByMessage(ctx context.Context, messageID string) (int, error)
}

type ReactionRepo struct {
	db *sqlx.DB
}

func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

func (r *ReactionRepo) ListByMessage(ctx context.Context, messageID string) ([]models.MessageReaction, error) {
	reactions := []models.MessageReaction{}
	err := r.db.SelectContext(ctx, &reactions, `SELECT id, message_id, owner_type, owner_id, reaction, created_at
        FROM message_reactions WHERE message_id=$1 ORDER BY created_at ASC`, messageID)
	return reactions, err
}

func (r *ReactionRepo) Get(ctx context.Context, messageID, reactionID string) (models.MessageReaction, error) {
	var reaction models.MessageReaction
	err := r.db.GetContext(ctx, &reaction, `SELECT id, message_id, owner_type, owner_id, reaction, created_at
        FROM message_reactions WHERE id=$1 AND message_id=$2`, reactionID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageReaction{}, ErrReactionNotFound
	}
	return reaction, err
}

// Create stores a reaction. No uniqueness is enforced per owner.
func (r *ReactionRepo) Create(ctx context.Context, reaction models.MessageReaction) (models.MessageReaction, error) {
	if reaction.ID == "" {
		reaction.ID = newID()
	}
	var created models.MessageReaction
	err := r.db.QueryRowxContext(ctx, `INSERT INTO message_reactions (id, message_id, owner_type, owner_id, reaction)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, message_id, owner_type, owner_id, reaction, created_at`,
		reaction.ID, reaction.MessageID, reaction.OwnerType, reaction.OwnerID, reaction.Reaction).
		StructScan(&created)
	return created, err
}

func (r *ReactionRepo) Delete(ctx context.Context, reactionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE id=$1`, reactionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReactionNotFound
	}
	return nil
}

func (r *ReactionRepo) CountByMessage(ctx context.Context, messageID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM message_reactions WHERE message_id=$1`, messageID)
	return count, err
}
