package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/teamtask/internal/handler"
	"github.com/mtlprog/teamtask/internal/live"
)

func TestSwaggerDocServed(t *testing.T) {
	mux := http.NewServeMux()
	handler.New(nil, live.NewHub(), handler.Options{}).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		BasePath            string                    `json:"basePath"`
		Paths               map[string]map[string]any `json:"paths"`
		SecurityDefinitions map[string]any            `json:"securityDefinitions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.SecurityDefinitions, "BearerAuth")
	for path, methods := range map[string][]string{
		"/tasks":                      {"get", "post"},
		"/tasks/{id}":                 {"get", "put", "delete"},
		"/notifications":              {"get"},
		"/notifications/unread-count": {"get"},
		"/notifications/read":         {"patch"},
		"/notifications/{id}/read":    {"patch"},
		"/notifications/stream":       {"get"},
	} {
		require.Contains(t, doc.Paths, path)
		for _, m := range methods {
			assert.Contains(t, doc.Paths[path], m, "%s %s", m, path)
		}
	}
}

func TestSwaggerUIServed(t *testing.T) {
	mux := http.NewServeMux()
	handler.New(nil, live.NewHub(), handler.Options{}).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}
