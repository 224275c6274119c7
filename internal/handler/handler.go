package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mtlprog/teamtask/docs" // Register the OpenAPI description
	"github.com/mtlprog/teamtask/internal/config"
	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/live"
	"github.com/mtlprog/teamtask/internal/middleware"
	"github.com/mtlprog/teamtask/internal/repository"
	"github.com/mtlprog/teamtask/internal/service"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Options configures a Handler.
type Options struct {
	// Publisher fans live signals out. Defaults to Hub.
	Publisher live.Publisher
	// FanoutConcurrency bounds concurrent recipients per dispatch.
	FanoutConcurrency int
	// Keepalive is the interval between stream keepalive comments.
	Keepalive time.Duration
	// Clock resolves task statuses. Defaults to the system clock.
	Clock service.Clock
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool                *pgxpool.Pool
	hub                 *live.Hub
	taskService         *service.TaskService
	notificationService *service.NotificationService
	authMiddleware      *middleware.AuthMiddleware
	keepalive           time.Duration
}

// New creates a new Handler instance with all dependencies. hub is the
// instance's subscription table; streams register on it.
func New(pool *pgxpool.Pool, hub *live.Hub, opts Options) *Handler {
	if opts.Publisher == nil {
		opts.Publisher = hub
	}
	if opts.FanoutConcurrency == 0 {
		opts.FanoutConcurrency = config.DefaultFanoutConcurrency
	}
	if opts.Keepalive == 0 {
		opts.Keepalive = config.StreamKeepalive
	}

	// Create repositories
	taskRepo := repository.NewTaskRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	// Create services
	dispatcher := service.NewDispatcher(notificationRepo, opts.Publisher, opts.FanoutConcurrency)
	taskService := service.NewTaskService(pool, taskRepo, assignmentRepo, memberRepo, teamRepo, dispatcher, opts.Clock)
	notificationService := service.NewNotificationService(notificationRepo, opts.Publisher)

	return &Handler{
		pool:                pool,
		hub:                 hub,
		taskService:         taskService,
		notificationService: notificationService,
		authMiddleware:      middleware.NewAuthMiddleware(memberRepo),
		keepalive:           opts.Keepalive,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	auth := func(fn http.HandlerFunc) http.Handler {
		return h.authMiddleware.Authenticate(fn)
	}

	// Tasks
	mux.Handle("GET /api/v1/tasks", auth(h.handleListTasks))
	mux.Handle("POST /api/v1/tasks", auth(h.handleCreateTask))
	mux.Handle("GET /api/v1/tasks/{id}", auth(h.handleGetTask))
	mux.Handle("PUT /api/v1/tasks/{id}", auth(h.handleUpdateTask))
	mux.Handle("DELETE /api/v1/tasks/{id}", auth(h.handleDeleteTask))

	// Notifications
	mux.Handle("GET /api/v1/notifications", auth(h.handleListNotifications))
	mux.Handle("GET /api/v1/notifications/unread-count", auth(h.handleUnreadCount))
	mux.Handle("GET /api/v1/notifications/stream", h.authMiddleware.AuthenticateStream(http.HandlerFunc(h.handleStream)))
	mux.Handle("PATCH /api/v1/notifications/read", auth(h.handleMarkAllRead))
	mux.Handle("PATCH /api/v1/notifications/{id}/read", auth(h.handleMarkRead))
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err and writes it.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// extractID extracts and validates the {id} path parameter.
// Returns (id, true) if valid, ("", false) if invalid (error already sent to client).
func extractID(w http.ResponseWriter, r *http.Request, what string) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", what+" id is required")
		return "", false
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", what+" id must be a valid UUID")
		return "", false
	}

	return parsed.String(), true
}

// currentMember returns the authenticated member or writes 401.
func currentMember(w http.ResponseWriter, r *http.Request) (*domain.Member, bool) {
	member, err := middleware.GetMemberFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return nil, false
	}
	return member, true
}
