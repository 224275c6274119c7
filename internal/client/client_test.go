package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/live"
)

const testToken = "secret-token"

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
}

func TestClient_ListNotifications(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.NotificationsListResponse{
			Notifications: []dto.NotificationResponse{{
				ID:        "n1",
				Kind:      string(domain.NotificationKindTaskAssigned),
				EventID:   "ev1",
				TaskID:    "t1",
				TaskTitle: "Write report",
				IsUnread:  true,
				CreatedAt: created,
			}},
			UnreadCount: 1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", testToken, srv.Client())
	items, err := c.ListNotifications(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	n := items[0]
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, domain.NotificationKindTaskAssigned, n.Event.Kind)
	assert.Equal(t, "ev1", n.Event.EventID)
	assert.Equal(t, "t1", n.Event.TaskID)
	assert.Equal(t, "Write report", n.Event.TaskTitle)
	assert.True(t, n.IsUnread)
	assert.True(t, created.Equal(n.CreatedAt))
}

func TestClient_MarkRequests(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, http.MethodPatch, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, testToken, srv.Client())
	require.NoError(t, c.MarkAllRead(context.Background()))
	require.NoError(t, c.MarkRead(context.Background(), "n1"))

	assert.Equal(t, []string{"/api/v1/notifications/read", "/api/v1/notifications/n1/read"}, paths)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		category error
	}{
		{"forbidden", http.StatusForbidden, "NOT_NOTIFICATION_OWNER", domain.ErrAuthorization},
		{"not found", http.StatusNotFound, "NOTIFICATION_NOT_FOUND", domain.ErrNotFound},
		{"validation", http.StatusUnprocessableEntity, "VALIDATION_ERROR", domain.ErrValidation},
		{"store down", http.StatusServiceUnavailable, "STORE_UNAVAILABLE", domain.ErrTransientStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(dto.NewErrorResponse(tt.code, "boom"))
			}))
			defer srv.Close()

			err := New(srv.URL, testToken, srv.Client()).MarkRead(context.Background(), "n1")
			require.ErrorIs(t, err, tt.category)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, "boom", apiErr.Message)
		})
	}
}

func TestClient_ErrorWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, testToken, srv.Client()).ListNotifications(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.NoError(t, apiErr.Unwrap())
}

func TestClient_StreamParsesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, "/api/v1/notifications/stream", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprintf(w, "event: %s\ndata: {}\n\n", live.SignalNotificationsChanged)
		fmt.Fprintf(w, "event: %s\r\ndata: {}\r\n\r\n", live.SignalNotificationsChanged)
		flusher.Flush()
	}))
	defer srv.Close()

	signals, err := New(srv.URL, testToken, srv.Client()).Stream(context.Background())
	require.NoError(t, err)

	var got []live.Signal
	for signal := range signals {
		got = append(got, signal)
	}
	assert.Equal(t, []live.Signal{live.SignalNotificationsChanged, live.SignalNotificationsChanged}, got)
}

func TestClient_StreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(dto.NewErrorResponse("UNAUTHORIZED", "invalid token"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "wrong", srv.Client()).Stream(context.Background())

	require.ErrorIs(t, err, domain.ErrAuthorization)
}

func TestClient_StreamClosesOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	signals, err := New(srv.URL, testToken, srv.Client()).Stream(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-signals:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel not closed after cancel")
	}
}

func TestClient_CacheFollowsStream(t *testing.T) {
	fetches := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		fetches++
		resp := dto.NotificationsListResponse{Notifications: []dto.NotificationResponse{}}
		for i := range fetches {
			resp.Notifications = append(resp.Notifications, dto.NotificationResponse{
				ID:       fmt.Sprintf("n%d", i),
				Kind:     string(domain.NotificationKindTaskAssigned),
				IsUnread: true,
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /api/v1/notifications/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprintf(w, "event: %s\ndata: {}\n\n", live.SignalNotificationsChanged)
		w.(http.Flusher).Flush()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, testToken, srv.Client())
	cache := NewCache(c)
	ctx := context.Background()

	require.NoError(t, cache.Refresh(ctx))
	assert.Equal(t, 1, cache.UnreadCount())

	signals, err := c.Stream(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Watch(ctx, signals))

	assert.Equal(t, 2, cache.UnreadCount())
}
