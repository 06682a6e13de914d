package repositories

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrProviderNotFound = errors.New("provider not found")

// ProviderRepository reads provider identities mirrored into the messenger database.
type ProviderRepository interface {
	Find(ctx context.Context, ref models.ProviderRef) (models.Provider, error)
	FindMany(ctx context.Context, refs []models.ProviderRef) ([]models.Provider, error)
}

type ProviderRepo struct {
	db *sqlx.DB
}

func NewProviderRepo(db *sqlx.DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

func (r *ProviderRepo) Find(ctx context.Context, ref models.ProviderRef) (models.Provider, error) {
	var provider models.Provider
	err := r.db.GetContext(ctx, &provider, `SELECT owner_type, owner_id, name, avatar, last_active
        FROM providers WHERE owner_type=$1 AND owner_id=$2`, ref.Type, ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Provider{}, ErrProviderNotFound
	}
	return provider, err
}

// FindMany loads every provider that exists among refs. Missing refs are skipped.
func (r *ProviderRepo) FindMany(ctx context.Context, refs []models.ProviderRef) ([]models.Provider, error) {
	if len(refs) == 0 {
		return []models.Provider{}, nil
	}

	or := make(sq.Or, 0, len(refs))
	for _, ref := range refs {
		or = append(or, ownerEq("", ref.Type, ref.ID))
	}

	query, args, err := psql.Select("owner_type", "owner_id", "name", "avatar", "last_active").
		From("providers").
		Where(or).
		ToSql()
	if err != nil {
		return nil, err
	}

	providers := []models.Provider{}
	err = r.db.SelectContext(ctx, &providers, query, args...)
	return providers, err
}
