package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// GroupRepository answers questions about student groups.
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository.
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

// IsOwnedBy reports whether the group exists and belongs to the examiner.
func (r *GroupRepository) IsOwnedBy(ctx context.Context, groupID, examinerID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1 AND examiner_id = $2)`,
		groupID, examinerID,
	).Scan(&ok)
	return ok, err
}
