package handler

import (
	"net/http"

	"github.com/mtlprog/teamtask/internal/handler/dto"
)

// handleListNotifications returns the caller's notifications, newest first,
// read and unread alike.
// @Summary List notifications
// @Description Returns the caller's notifications, newest first, with the unread count
// @Tags notifications
// @Produce json
// @Success 200 {object} dto.NotificationsListResponse
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /notifications [get]
func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}

	notifications, err := h.notificationService.List(ctx, member)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToNotificationsListResponse(notifications))
}

// handleUnreadCount returns the caller's unread badge count.
// @Summary Unread count
// @Description Returns how many of the caller's notifications are unread
// @Tags notifications
// @Produce json
// @Success 200 {object} dto.UnreadCountResponse
// @Security BearerAuth
// @Router /notifications/unread-count [get]
func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(ctx, member)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.UnreadCountResponse{UnreadCount: count})
}

// handleMarkAllRead marks every notification of the caller as read.
// @Summary Mark all notifications read
// @Description Clears the unread flag on every notification of the caller. Idempotent.
// @Tags notifications
// @Success 204
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /notifications/read [patch]
func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllRead(ctx, member); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleMarkRead marks one of the caller's notifications as read.
// @Summary Mark a notification read
// @Description Clears the unread flag of one notification owned by the caller
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [patch]
func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}
	notificationID, ok := extractID(w, r, "notification")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(ctx, member, notificationID); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
