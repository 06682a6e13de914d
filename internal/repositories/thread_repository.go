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

var ErrThreadNotFound = errors.New("thread not found")

var threadColumns = []string{
	"t.id", "t.type", "t.subject", "t.image", "t.add_participants", "t.invitations",
	"t.calling", "t.messaging", "t.knocks", "t.lockout", "t.created_at", "t.updated_at", "t.deleted_at",
}

// ThreadRepository abstracts thread persistence.
type ThreadRepository interface {
	GetThread(ctx context.Context, threadID string) (models.Thread, error)
	ListForProvider(ctx context.Context, owner models.ProviderRef, limit int) ([]models.Thread, error)
	FindPrivateBetween(ctx context.Context, first, second models.ProviderRef) (models.Thread, error)
	Touch(ctx context.Context, threadID string, at time.Time) error
	CountUnreadForProvider(ctx context.Context, owner models.ProviderRef) (int, error)
	CountWithActiveCalls(ctx context.Context, owner models.ProviderRef) (int, error)
	ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]models.Thread, error)
	Purge(ctx context.Context, threadID string) error
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db *sqlx.DB
}

func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// GetThread fetches a non-archived thread by id.
func (r *ThreadRepo) GetThread(ctx context.Context, threadID string) (models.Thread, error) {
	query, args, err := psql.Select(threadColumns...).
		From("threads t").
		Where(sq.Eq{"t.id": threadID, "t.deleted_at": nil}).
		ToSql()
	if err != nil {
		return models.Thread{}, err
	}

	var thread models.Thread
	err = r.db.GetContext(ctx, &thread, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// ListForProvider returns the provider's threads, most recently updated first.
func (r *ThreadRepo) ListForProvider(ctx context.Context, owner models.ProviderRef, limit int) ([]models.Thread, error) {
	builder := psql.Select(threadColumns...).
		From("threads t").
		Join("participants p ON p.thread_id = t.id").
		Where(ownerEq("p.", owner.Type, owner.ID)).
		Where(sq.Eq{"p.deleted_at": nil, "t.deleted_at": nil}).
		OrderBy("t.updated_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	threads := []models.Thread{}
	err = r.db.SelectContext(ctx, &threads, query, args...)
	return threads, err
}

// FindPrivateBetween finds the private thread whose two current participants are first and second.
func (r *ThreadRepo) FindPrivateBetween(ctx context.Context, first, second models.ProviderRef) (models.Thread, error) {
	query, args, err := psql.Select(threadColumns...).
		From("threads t").
		Join("participants a ON a.thread_id = t.id AND a.deleted_at IS NULL").
		Join("participants b ON b.thread_id = t.id AND b.deleted_at IS NULL").
		Where(sq.Eq{"t.type": models.ThreadPrivate, "t.deleted_at": nil}).
		Where(ownerEq("a.", first.Type, first.ID)).
		Where(ownerEq("b.", second.Type, second.ID)).
		Where("(SELECT COUNT(*) FROM participants c WHERE c.thread_id = t.id AND c.deleted_at IS NULL) = 2").
		Limit(1).
		ToSql()
	if err != nil {
		return models.Thread{}, err
	}

	var thread models.Thread
	err = r.db.GetContext(ctx, &thread, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// Touch bumps updated_at, which drives unread state.
func (r *ThreadRepo) Touch(ctx context.Context, threadID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE threads SET updated_at=$2 WHERE id=$1`, threadID, at)
	return err
}

// CountUnreadForProvider counts threads updated after the provider last read them.
func (r *ThreadRepo) CountUnreadForProvider(ctx context.Context, owner models.ProviderRef) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("threads t").
		Join("participants p ON p.thread_id = t.id").
		Where(ownerEq("p.", owner.Type, owner.ID)).
		Where(sq.Eq{"p.deleted_at": nil, "t.deleted_at": nil}).
		Where(sq.Or{sq.Eq{"p.last_read": nil}, sq.Expr("t.updated_at > p.last_read")}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

// CountWithActiveCalls counts the provider's threads that have a call in progress.
func (r *ThreadRepo) CountWithActiveCalls(ctx context.Context, owner models.ProviderRef) (int, error) {
	query, args, err := psql.Select("COUNT(DISTINCT t.id)").
		From("threads t").
		Join("participants p ON p.thread_id = t.id").
		Join("calls c ON c.thread_id = t.id").
		Where(ownerEq("p.", owner.Type, owner.ID)).
		Where(sq.Eq{"p.deleted_at": nil, "t.deleted_at": nil, "c.call_ended": nil}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	err = r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

// ListArchivedBefore returns threads soft deleted at or before cutoff.
func (r *ThreadRepo) ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]models.Thread, error) {
	query, args, err := psql.Select(threadColumns...).
		From("threads t").
		Where(sq.NotEq{"t.deleted_at": nil}).
		Where(sq.LtOrEq{"t.deleted_at": cutoff}).
		OrderBy("t.deleted_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	threads := []models.Thread{}
	err = r.db.SelectContext(ctx, &threads, query, args...)
	return threads, err
}

// Purge hard deletes a thread. Dependent rows cascade.
func (r *ThreadRepo) Purge(ctx context.Context, threadID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM threads WHERE id=$1`, threadID)
	if err != nil {
		return fmt.Errorf("purge thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrThreadNotFound
	}
	return nil
}
