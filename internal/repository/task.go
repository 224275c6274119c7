package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
)

// taskColumns is the shared list of columns for task queries. The last
// column aggregates the assignment records of the task.
var taskColumns = []string{
	"t.id", "t.team_id", "t.title", "t.description", "t.start_at", "t.deadline_at",
	"t.created_at", "t.updated_at",
	"COALESCE(array_agg(a.member_id::text ORDER BY a.member_id) FILTER (WHERE a.member_id IS NOT NULL), '{}') AS responsibles",
}

// TaskRepository handles database operations for tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// selectTasks returns the base query joining tasks with their assignments.
func selectTasks() sq.SelectBuilder {
	return psql.
		Select(taskColumns...).
		From("tasks t").
		LeftJoin("task_assignments a ON a.task_id = t.id").
		GroupBy("t.id")
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.TeamID,
		&task.Title,
		&task.Description,
		&task.StartAt,
		&task.DeadlineAt,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.Responsibles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, domain.StoreError("scan task", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate task rows", err)
	}
	return tasks, nil
}

// GetByID retrieves a task with its responsibles.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := selectTasks().
		Where(sq.Eq{"t.id": taskID}).
		ToSql()
	if err != nil {
		return nil, domain.StoreError("build GetByID query for task", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// LockByID locks the task row for the rest of the transaction and returns
// the team it belongs to.
func (r *TaskRepository) LockByID(ctx context.Context, tx pgx.Tx, taskID string) (teamID string, err error) {
	query, args, err := psql.
		Select("team_id").
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return "", domain.StoreError("build LockByID query for task", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&teamID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrTaskNotFound
		}
		return "", domain.StoreError("lock task", err)
	}
	return teamID, nil
}

// Create inserts a new task within a transaction.
// ID, CreatedAt and UpdatedAt are populated on the passed task.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Insert("tasks").
		Columns("team_id", "title", "description", "start_at", "deadline_at").
		Values(task.TeamID, task.Title, task.Description, task.StartAt, task.DeadlineAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return domain.StoreError("build Create query for task", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return domain.StoreError("create task", err)
	}

	return nil
}

// Update writes the mutable attributes of a task within a transaction.
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Update("tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("start_at", task.StartAt).
		Set("deadline_at", task.DeadlineAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": task.ID}).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return domain.StoreError("build Update query for task", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTaskNotFound
		}
		return domain.StoreError("update task", err)
	}

	return nil
}

// Delete removes a task. Its assignment records go with it.
func (r *TaskRepository) Delete(ctx context.Context, taskID string) error {
	query, args, err := psql.
		Delete("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return domain.StoreError("build Delete query for task", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return domain.StoreError("delete task", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}
