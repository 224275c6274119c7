package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtlprog/teamtask/internal/live"
)

// handleStream keeps a Server-Sent Events connection open and writes one
// frame per live signal for the caller:
//
//	event: notifications-changed
//	data: {}
//
// The stream starts with a ": connected" comment once the subscription is
// registered and sends ": keepalive" comments while idle.
// @Summary Live notification stream
// @Description Server-Sent Events stream of notifications-changed signals for the caller. The token may also be passed as access_token.
// @Tags notifications
// @Produce text/event-stream
// @Param access_token query string false "Member token for clients that cannot set headers"
// @Success 200 {string} string "event stream"
// @Failure 401 {string} string
// @Failure 503 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /notifications/stream [get]
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	member, ok := currentMember(w, r)
	if !ok {
		return
	}

	sub, err := h.hub.Subscribe(member.ID)
	if err != nil {
		if errors.Is(err, live.ErrHubClosed) {
			respondError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down")
			return
		}
		respondDomainError(w, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, rc, ": connected\n\n"); err != nil {
		slog.Warn("stream not supported", "member_id", member.ID, "error", err)
		return
	}

	slog.Info("notification stream opened", "member_id", member.ID)
	defer slog.Info("notification stream closed", "member_id", member.ID)

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case signal, ok := <-sub.Signals():
			if !ok {
				return
			}
			if err := writeFrame(w, rc, fmt.Sprintf("event: %s\ndata: {}\n\n", signal)); err != nil {
				return
			}
		case <-keepalive.C:
			if err := writeFrame(w, rc, ": keepalive\n\n"); err != nil {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, rc *http.ResponseController, frame string) error {
	if _, err := w.Write([]byte(frame)); err != nil {
		return err
	}
	return rc.Flush()
}
