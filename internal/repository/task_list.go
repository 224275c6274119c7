package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/teamtask/internal/domain"
)

// TaskListFilters holds the supported filters for task listing.
type TaskListFilters struct {
	TeamID     string  // Required: filter by team
	AssignedTo *string // Optional: only tasks with this responsible member
}

// List retrieves the tasks of a team ordered by deadline, then start date.
func (r *TaskRepository) List(ctx context.Context, filters TaskListFilters) ([]*domain.Task, error) {
	qb := selectTasks().
		Where(sq.Eq{"t.team_id": filters.TeamID})

	if filters.AssignedTo != nil {
		qb = qb.Where(
			"EXISTS (SELECT 1 FROM task_assignments x WHERE x.task_id = t.id AND x.member_id = ?)",
			*filters.AssignedTo,
		)
	}

	query, args, err := qb.
		OrderBy("t.deadline_at ASC", "t.start_at ASC", "t.id ASC").
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build List query for tasks", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError("query tasks", err)
	}

	return scanTasks(rows)
}
