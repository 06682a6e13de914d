package repositories

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const participantColumns = `id, thread_id, owner_type, owner_id, admin, muted, pending, send_messages, send_knocks,
	add_participants, manage_invites, start_calls, last_read, created_at, updated_at, deleted_at`

// ParticipantRepository abstracts thread membership.
type ParticipantRepository interface {
	ListByThread(ctx context.Context, threadID string) ([]models.Participant, error)
	AddMany(ctx context.Context, threadID string, owners []models.ProviderRef) ([]models.Participant, error)
	MarkRead(ctx context.Context, participantID string, at time.Time) error
}

type ParticipantRepo struct {
	db *sqlx.DB
}

func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// ListByThread returns the thread's current (non-removed) participants.
func (r *ParticipantRepo) ListByThread(ctx context.Context, threadID string) ([]models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants
        WHERE thread_id=$1 AND deleted_at IS NULL
        ORDER BY created_at ASC`
	participants := []models.Participant{}
	err := r.db.SelectContext(ctx, &participants, query, threadID)
	return participants, err
}

// AddMany inserts group participants with default permissions in one transaction.
func (r *ParticipantRepo) AddMany(ctx context.Context, threadID string, owners []models.ProviderRef) ([]models.Participant, error) {
	if len(owners) == 0 {
		return []models.Participant{}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	added := make([]models.Participant, 0, len(owners))
	for _, owner := range owners {
		query, args, err := psql.Insert("participants").
			Columns("id", "thread_id", "owner_type", "owner_id", "send_messages", "send_knocks").
			Values(newID(), threadID, owner.Type, owner.ID, true, true).
			Suffix("RETURNING " + participantColumns).
			ToSql()
		if err != nil {
			return nil, err
		}
		var p models.Participant
		if err := tx.GetContext(ctx, &p, query, args...); err != nil {
			return nil, err
		}
		added = append(added, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

// MarkRead records the participant's last read time.
func (r *ParticipantRepo) MarkRead(ctx context.Context, participantID string, at time.Time) error {
	query, args, err := psql.Update("participants").
		Set("last_read", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": participantID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}
