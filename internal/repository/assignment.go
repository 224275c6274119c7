package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// AssignmentRepository handles the task to member link records.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// Replace makes memberIDs the complete assignment set of the task within
// tx. Members present in both the old and the new set keep their record.
// It returns the members that were not assigned before.
func (r *AssignmentRepository) Replace(ctx context.Context, tx pgx.Tx, taskID string, memberIDs []string) ([]string, error) {
	query, args, err := psql.
		Delete("task_assignments").
		Where(sq.Eq{"task_id": taskID}).
		Where(sq.NotEq{"member_id": memberIDs}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build assignment delete query", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return nil, domain.StoreError("delete assignments", err)
	}

	if len(memberIDs) == 0 {
		return []string{}, nil
	}

	insert := psql.
		Insert("task_assignments").
		Columns("task_id", "member_id")
	for _, memberID := range memberIDs {
		insert = insert.Values(taskID, memberID)
	}

	query, args, err = insert.
		Suffix("ON CONFLICT (task_id, member_id) DO NOTHING RETURNING member_id::text").
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build assignment insert query", err)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("insert assignments", err)
	}
	added, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, domain.StoreError("collect inserted assignments", err)
	}
	return added, nil
}
