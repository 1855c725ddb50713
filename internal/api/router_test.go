package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/canslim-screener/internal/api/handlers"
	"github.com/wonny/canslim-screener/internal/data/memory"
	"github.com/wonny/canslim-screener/pkg/logger"
)

func newTestRouter() http.Handler {
	log := logger.Nop()
	screener := handlers.NewScreenerHandler(memory.NewScoredSymbolRepo(), memory.NewBenchmarkRepo(), memory.NewSnapshotRepo(), log)
	flows := handlers.NewFlowHandler(nil, time.UTC, log)
	return NewRouter(flows, screener, log)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRouter_MethodsAndRecovery(t *testing.T) {
	r := newTestRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/screener", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// nil flow service panics inside the handler; the middleware answers 500
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/flows", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
