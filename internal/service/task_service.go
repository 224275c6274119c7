package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/repository"
)

// TaskView is a task together with its status resolved at read time.
type TaskView struct {
	Task   *domain.Task
	Status domain.TaskStatus
}

// ListTasksParams filters the task listing.
type ListTasksParams struct {
	Status *domain.TaskStatus
	Mine   bool
}

// TaskService coordinates task mutations and the notifications they emit.
type TaskService struct {
	pool           *pgxpool.Pool
	taskRepo       *repository.TaskRepository
	assignmentRepo *repository.AssignmentRepository
	teamRepo       *repository.TeamRepository
	dispatcher     *Dispatcher
	validator      *Validator
	clock          Clock
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	assignmentRepo *repository.AssignmentRepository,
	memberRepo *repository.MemberRepository,
	teamRepo *repository.TeamRepository,
	dispatcher *Dispatcher,
	clock Clock,
) *TaskService {
	if clock == nil {
		clock = SystemClock
	}
	return &TaskService{
		pool:           pool,
		taskRepo:       taskRepo,
		assignmentRepo: assignmentRepo,
		teamRepo:       teamRepo,
		dispatcher:     dispatcher,
		validator:      NewValidator(memberRepo),
		clock:          clock,
	}
}

// rollback is deferred by every write path; it is a no-op after Commit.
func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

// CreateTask stores a task with its assignments and notifies every
// responsible member once the transaction has committed.
func (s *TaskService) CreateTask(ctx context.Context, actor *domain.Member, params TaskParams) (*domain.Task, error) {
	if err := s.validator.CanManageTasks(actor, actor.TeamID); err != nil {
		return nil, err
	}

	params, err := NormalizeTaskParams(params)
	if err != nil {
		return nil, err
	}

	if _, err := s.teamRepo.GetByID(ctx, actor.TeamID); err != nil {
		return nil, err
	}
	if err := s.validator.CheckResponsibles(ctx, actor.TeamID, params.Responsibles); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError("begin transaction", err)
	}
	defer rollback(ctx, tx)

	task := &domain.Task{
		TeamID:      actor.TeamID,
		Title:       params.Title,
		Description: params.Description,
		StartAt:     params.StartAt,
		DeadlineAt:  params.DeadlineAt,
	}
	if err := s.taskRepo.Create(ctx, tx, task); err != nil {
		return nil, err
	}
	if _, err := s.assignmentRepo.Replace(ctx, tx, task.ID, params.Responsibles); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StoreError("commit transaction", err)
	}
	task.Responsibles = params.Responsibles

	slog.Info("task created",
		"task_id", task.ID,
		"team_id", task.TeamID,
		"actor_id", actor.ID,
		"responsibles", len(task.Responsibles),
	)

	s.dispatcher.Dispatch(ctx, newTaskEvent(domain.NotificationKindTaskAssigned, task, task.Responsibles))

	return task, nil
}

// UpdateTask rewrites a task and its assignment set. Newly assigned members
// get a task-assigned notification; members who stay assigned get a
// task-updated one. Unassigned members are not notified.
func (s *TaskService) UpdateTask(ctx context.Context, actor *domain.Member, taskID string, params TaskParams) (*domain.Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, domain.ErrInvalidTaskID
	}

	params, err := NormalizeTaskParams(params)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError("begin transaction", err)
	}
	defer rollback(ctx, tx)

	teamID, err := s.taskRepo.LockByID(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanManageTasks(actor, teamID); err != nil {
		return nil, err
	}
	if err := s.validator.CheckResponsibles(ctx, teamID, params.Responsibles); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          taskID,
		TeamID:      teamID,
		Title:       params.Title,
		Description: params.Description,
		StartAt:     params.StartAt,
		DeadlineAt:  params.DeadlineAt,
	}
	if err := s.taskRepo.Update(ctx, tx, task); err != nil {
		return nil, err
	}
	added, err := s.assignmentRepo.Replace(ctx, tx, taskID, params.Responsibles)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, domain.StoreError("commit transaction", err)
	}
	task.Responsibles = params.Responsibles

	retained := subtract(params.Responsibles, added)

	slog.Info("task updated",
		"task_id", task.ID,
		"actor_id", actor.ID,
		"assigned", len(added),
		"retained", len(retained),
	)

	s.dispatcher.Dispatch(ctx, newTaskEvent(domain.NotificationKindTaskAssigned, task, added))
	s.dispatcher.Dispatch(ctx, newTaskEvent(domain.NotificationKindTaskUpdated, task, retained))

	return task, nil
}

// DeleteTask removes a task and its assignments. Notifications already sent
// for it are kept.
func (s *TaskService) DeleteTask(ctx context.Context, actor *domain.Member, taskID string) error {
	if _, err := uuid.Parse(taskID); err != nil {
		return domain.ErrInvalidTaskID
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.validator.CanManageTasks(actor, task.TeamID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}

	slog.Info("task deleted", "task_id", taskID, "actor_id", actor.ID)
	return nil
}

// GetTask returns a task of the actor's team with its current status.
func (s *TaskService) GetTask(ctx context.Context, actor *domain.Member, taskID string) (*TaskView, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, domain.ErrInvalidTaskID
	}

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanViewTasks(actor, task.TeamID); err != nil {
		return nil, err
	}

	return &TaskView{
		Task:   task,
		Status: ResolveStatus(task.StartAt, task.DeadlineAt, s.clock()),
	}, nil
}

// ListTasks returns the tasks of the actor's team. Every status in the
// result is resolved against a single clock reading.
func (s *TaskService) ListTasks(ctx context.Context, actor *domain.Member, params ListTasksParams) ([]TaskView, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *params.Status)
	}

	filters := repository.TaskListFilters{TeamID: actor.TeamID}
	if params.Mine {
		filters.AssignedTo = &actor.ID
	}

	tasks, err := s.taskRepo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		status := ResolveStatus(task.StartAt, task.DeadlineAt, now)
		if params.Status != nil && status != *params.Status {
			continue
		}
		views = append(views, TaskView{Task: task, Status: status})
	}
	return views, nil
}

func newTaskEvent(kind domain.NotificationKind, task *domain.Task, recipients []string) domain.TaskEvent {
	return domain.TaskEvent{
		ID:           uuid.NewString(),
		Kind:         kind,
		TaskID:       task.ID,
		TaskTitle:    task.Title,
		RecipientIDs: recipients,
	}
}

// subtract returns the ids in all that are not in remove, keeping order.
func subtract(all, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]string, 0, len(all))
	for _, id := range all {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
