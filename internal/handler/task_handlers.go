package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/service"
)

// handleCreateTask creates a task and notifies its responsibles.
// Leader only. Responds 201 with the task and its current status.
// @Summary Create a task
// @Description Creates a task and its assignments. Leader only. Every responsible gets a task-assigned notification.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.TaskRequest true "Task attributes and responsibles"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req dto.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(ctx, member, toTaskParams(req))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	view, err := h.taskService.GetTask(ctx, member, task.ID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(*view))
}

// handleListTasks lists the tasks of the caller's team.
// Query: status=Pending|In Progress|Complete, mine=true.
// @Summary List tasks
// @Description Lists the tasks of the caller's team with their derived status
// @Tags tasks
// @Produce json
// @Param status query string false "Pending, In Progress or Complete"
// @Param mine query bool false "Only tasks the caller is responsible for"
// @Success 200 {object} dto.TasksListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}

	var params service.ListTasksParams

	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		params.Status = &status
	}
	if raw := query.Get("mine"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "mine must be a boolean")
			return
		}
		params.Mine = mine
	}

	views, err := h.taskService.ListTasks(ctx, member, params)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dto.TasksListResponse{
		Tasks: make([]dto.TaskResponse, len(views)),
		Total: len(views),
	}
	for i, view := range views {
		resp.Tasks[i] = dto.ToTaskResponse(view)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetTask returns one task of the caller's team.
// @Summary Get a task
// @Description Returns a task of the caller's team with its derived status and responsibles
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "task")
	if !ok {
		return
	}

	view, err := h.taskService.GetTask(ctx, member, taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(*view))
}

// handleUpdateTask replaces a task's attributes and responsibles.
// @Summary Update a task
// @Description Replaces the task and its responsibles. Leader only. Added members get task-assigned, retained members task-updated.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.TaskRequest true "Task attributes and responsibles"
// @Success 200 {object} dto.TaskResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "task")
	if !ok {
		return
	}

	var req dto.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if _, err := h.taskService.UpdateTask(ctx, member, taskID, toTaskParams(req)); err != nil {
		respondDomainError(w, err)
		return
	}

	view, err := h.taskService.GetTask(ctx, member, taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToTaskResponse(*view))
}

// handleDeleteTask deletes a task. Responds 204.
// @Summary Delete a task
// @Description Deletes the task and its assignments. Notifications already sent are kept. Leader only.
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}
	taskID, ok := extractID(w, r, "task")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(ctx, member, taskID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toTaskParams(req dto.TaskRequest) service.TaskParams {
	return service.TaskParams{
		Title:        req.Title,
		Description:  req.Description,
		StartAt:      req.StartAt,
		DeadlineAt:   req.DeadlineAt,
		Responsibles: req.Responsibles,
	}
}
