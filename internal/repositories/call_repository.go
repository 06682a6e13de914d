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

var (
	ErrCallNotFound            = errors.New("call not found")
	ErrCallParticipantNotFound = errors.New("call participant not found")
)

const (
	callColumns = `id, thread_id, owner_type, owner_id, type, room_id, room_pin, room_secret, payload,
	setup_complete, teardown_complete, call_ended, created_at, updated_at`
	callParticipantColumns = `id, call_id, owner_type, owner_id, left_call, kicked, created_at, updated_at`
)

// CallRepository persists calls and their participants.
type CallRepository interface {
	List(ctx context.Context, threadID string, limit int) ([]models.Call, error)
	Get(ctx context.Context, threadID, callID string) (models.Call, error)
	FindActive(ctx context.Context, threadID string) (models.Call, error)
	ListActive(ctx context.Context) ([]models.Call, error)
	Create(ctx context.Context, call models.Call) (models.Call, models.CallParticipant, error)
	CompleteSetup(ctx context.Context, call models.Call) error
	End(ctx context.Context, callID string, at time.Time) error
	TearDown(ctx context.Context, callID string) error

	ListParticipants(ctx context.Context, callID string) ([]models.CallParticipant, error)
	GetParticipant(ctx context.Context, callID, participantID string) (models.CallParticipant, error)
	FindParticipant(ctx context.Context, callID string, owner models.ProviderRef) (models.CallParticipant, error)
	AddParticipant(ctx context.Context, callID string, owner models.ProviderRef) (models.CallParticipant, error)
	Rejoin(ctx context.Context, participantID string) error
	Leave(ctx context.Context, participantID string, at time.Time) error
	Kick(ctx context.Context, participantID string, at time.Time) error
}

type CallRepo struct {
	db *sqlx.DB
}

func NewCallRepo(db *sqlx.DB) *CallRepo {
	return &CallRepo{db: db}
}

func (r *CallRepo) List(ctx context.Context, threadID string, limit int) ([]models.Call, error) {
	builder := psql.Select(callColumns).
		From("calls").
		Where(sq.Eq{"thread_id": threadID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	calls := []models.Call{}
	err = r.db.SelectContext(ctx, &calls, query, args...)
	return calls, err
}

func (r *CallRepo) Get(ctx context.Context, threadID, callID string) (models.Call, error) {
	var call models.Call
	err := r.db.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls WHERE id=$1 AND thread_id=$2`, callID, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Call{}, ErrCallNotFound
	}
	return call, err
}

// FindActive returns the thread's call that has not ended yet.
func (r *CallRepo) FindActive(ctx context.Context, threadID string) (models.Call, error) {
	var call models.Call
	err := r.db.GetContext(ctx, &call, `SELECT `+callColumns+` FROM calls
        WHERE thread_id=$1 AND call_ended IS NULL ORDER BY created_at DESC LIMIT 1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Call{}, ErrCallNotFound
	}
	return call, err
}

func (r *CallRepo) ListActive(ctx context.Context) ([]models.Call, error) {
	calls := []models.Call{}
	err := r.db.SelectContext(ctx, &calls, `SELECT `+callColumns+` FROM calls WHERE call_ended IS NULL ORDER BY created_at ASC`)
	return calls, err
}

// Create stores the call together with its owner as the first participant.
func (r *CallRepo) Create(ctx context.Context, call models.Call) (models.Call, models.CallParticipant, error) {
	if call.ID == "" {
		call.ID = newID()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Call{}, models.CallParticipant{}, err
	}
	defer tx.Rollback()

	var created models.Call
	err = tx.GetContext(ctx, &created, `INSERT INTO calls (id, thread_id, owner_type, owner_id, type)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+callColumns,
		call.ID, call.ThreadID, call.OwnerType, call.OwnerID, call.Type)
	if err != nil {
		return models.Call{}, models.CallParticipant{}, err
	}

	var owner models.CallParticipant
	err = tx.GetContext(ctx, &owner, `INSERT INTO call_participants (id, call_id, owner_type, owner_id)
        VALUES ($1, $2, $3, $4) RETURNING `+callParticipantColumns,
		newID(), created.ID, created.OwnerType, created.OwnerID)
	if err != nil {
		return models.Call{}, models.CallParticipant{}, fmt.Errorf("store call owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Call{}, models.CallParticipant{}, err
	}
	return created, owner, nil
}

// CompleteSetup stores the provisioned room details and flags setup as done.
func (r *CallRepo) CompleteSetup(ctx context.Context, call models.Call) error {
	query, args, err := psql.Update("calls").
		Set("room_id", call.RoomID).
		Set("room_pin", call.RoomPin).
		Set("room_secret", call.RoomSecret).
		Set("payload", call.Payload).
		Set("setup_complete", true).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": call.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return r.exec(ctx, ErrCallNotFound, query, args...)
}

// End stamps call_ended and marks every remaining participant as having left.
func (r *CallRepo) End(ctx context.Context, callID string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE calls SET call_ended=$2, updated_at=$2 WHERE id=$1 AND call_ended IS NULL`, callID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCallNotFound
	}
	if _, err := tx.ExecContext(ctx, `UPDATE call_participants SET left_call=$2, updated_at=$2 WHERE call_id=$1 AND left_call IS NULL`, callID, at); err != nil {
		return fmt.Errorf("close call participants: %w", err)
	}
	return tx.Commit()
}

func (r *CallRepo) TearDown(ctx context.Context, callID string) error {
	return r.exec(ctx, ErrCallNotFound, `UPDATE calls SET teardown_complete=TRUE, updated_at=NOW() WHERE id=$1`, callID)
}

func (r *CallRepo) ListParticipants(ctx context.Context, callID string) ([]models.CallParticipant, error) {
	participants := []models.CallParticipant{}
	err := r.db.SelectContext(ctx, &participants, `SELECT `+callParticipantColumns+` FROM call_participants
        WHERE call_id=$1 ORDER BY created_at ASC`, callID)
	return participants, err
}

func (r *CallRepo) GetParticipant(ctx context.Context, callID, participantID string) (models.CallParticipant, error) {
	var p models.CallParticipant
	err := r.db.GetContext(ctx, &p, `SELECT `+callParticipantColumns+` FROM call_participants WHERE id=$1 AND call_id=$2`, participantID, callID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CallParticipant{}, ErrCallParticipantNotFound
	}
	return p, err
}

func (r *CallRepo) FindParticipant(ctx context.Context, callID string, owner models.ProviderRef) (models.CallParticipant, error) {
	var p models.CallParticipant
	err := r.db.GetContext(ctx, &p, `SELECT `+callParticipantColumns+` FROM call_participants
        WHERE call_id=$1 AND owner_type=$2 AND owner_id=$3`, callID, owner.Type, owner.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CallParticipant{}, ErrCallParticipantNotFound
	}
	return p, err
}

func (r *CallRepo) AddParticipant(ctx context.Context, callID string, owner models.ProviderRef) (models.CallParticipant, error) {
	var p models.CallParticipant
	err := r.db.GetContext(ctx, &p, `INSERT INTO call_participants (id, call_id, owner_type, owner_id)
        VALUES ($1, $2, $3, $4) RETURNING `+callParticipantColumns, newID(), callID, owner.Type, owner.ID)
	return p, err
}

// Rejoin clears left_call for a participant that was not kicked.
func (r *CallRepo) Rejoin(ctx context.Context, participantID string) error {
	return r.exec(ctx, ErrCallParticipantNotFound, `UPDATE call_participants SET left_call=NULL, updated_at=NOW() WHERE id=$1 AND kicked=FALSE`, participantID)
}

func (r *CallRepo) Leave(ctx context.Context, participantID string, at time.Time) error {
	return r.exec(ctx, ErrCallParticipantNotFound, `UPDATE call_participants SET left_call=$2, updated_at=$2 WHERE id=$1`, participantID, at)
}

func (r *CallRepo) Kick(ctx context.Context, participantID string, at time.Time) error {
	return r.exec(ctx, ErrCallParticipantNotFound, `UPDATE call_participants SET kicked=TRUE, left_call=$2, updated_at=$2 WHERE id=$1`, participantID, at)
}

func (r *CallRepo) exec(ctx context.Context, notFound error, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}
