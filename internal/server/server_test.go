package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(r http.Handler, method string, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNewRouter_Routes(t *testing.T) {
	mcpHit := false
	r := NewRouter(RouteConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		MCP: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mcpHit = true
			w.WriteHeader(http.StatusAccepted)
		}),
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/swagger/doc.json").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodGet, "/api/chat").Code)

	assert.Equal(t, http.StatusAccepted, serve(r, http.MethodPost, "/mcp").Code)
	assert.True(t, mcpHit)
}

func TestNewRouter_RecoversPanics(t *testing.T) {
	r := NewRouter(RouteConfig{})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/boom").Code)
}

func TestNewRouter_WithoutMCP(t *testing.T) {
	r := NewRouter(RouteConfig{})
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/mcp").Code)
}
