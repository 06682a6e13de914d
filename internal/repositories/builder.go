package repositories

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func newID() string {
	return uuid.NewString()
}

func ownerEq(prefix, ownerType, ownerID string) sq.Eq {
	return sq.Eq{prefix + "owner_type": ownerType, prefix + "owner_id": ownerID}
}
