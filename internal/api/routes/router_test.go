package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erboard/backend/internal/api/handlers"
	"github.com/erboard/backend/internal/api/routes"
)

func newTestRouter() http.Handler {
	er := handlers.NewERHandler(nil, nil, nil, nil)
	sync := handlers.NewSyncHandler(nil, nil, nil, 0)
	return routes.NewRouter(er, sync, nil, nil, nil).SetupRoutes()
}

func TestRouter_Routes(t *testing.T) {
	handler := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"detail with bad id", http.MethodGet, "/api/er/abc", http.StatusBadRequest},
		{"search without index", http.MethodGet, "/api/er/search?q=x", http.StatusServiceUnavailable},
		{"reindex without index", http.MethodPost, "/api/admin/reindex", http.StatusServiceUnavailable},
		{"stream disabled", http.MethodGet, "/api/er/stream", http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/api/er/preferences", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_CORSHeaders(t *testing.T) {
	handler := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
