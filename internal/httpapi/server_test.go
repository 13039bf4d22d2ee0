package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/sandboxd/internal/config"
	"github.com/oriys/sandboxd/internal/sandboxstore"
)

func testServer() *Server {
	return NewServer(Deps{
		Config: config.DefaultConfig(),
		Store:  sandboxstore.New(),
	})
}

func TestHandleHealthz(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleRootReportsConfigAndStoreSnapshot(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "memory_budget_bytes")
}

func TestHandleExecuteRejectsMalformedJSON(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestHandleExecuteRejectsEmptyScript(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString(`{"script":""}`))
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestHandleExecuteRejectsMutuallyExclusiveInit(t *testing.T) {
	s := testServer()
	body := `{"script":"1+1","init_script":"a","init_script_ref":"b"}`
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "mutually exclusive")
}

func TestMetricsRouteAbsentWithoutMetricsDep(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
