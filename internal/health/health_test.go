package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadyRequiresCriticalHealth(t *testing.T) {
	m := NewManager(zap.NewNop())
	assert.False(t, m.Ready(), "no results yet means not ready")

	m.Register(NewFuncChecker("nlp-service", true, func(context.Context) error { return nil }))
	m.Register(NewFuncChecker("redis", false, func(context.Context) error { return errors.New("down") }))
	m.runAll(context.Background())

	assert.True(t, m.Ready(), "non-critical failure must not block readiness")

	m.Register(NewFuncChecker("qdrant", true, func(context.Context) error { return errors.New("down") }))
	m.runAll(context.Background())
	assert.False(t, m.Ready())
}

func TestHTTPChecker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	ok := NewHTTPChecker("svc", srv.URL+"/good", true)
	assert.NoError(t, ok.Check(context.Background()))

	bad := NewHTTPChecker("svc", srv.URL+"/bad", true)
	assert.Error(t, bad.Check(context.Background()))
}

func TestHandlerProbes(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(NewFuncChecker("qdrant", true, func(context.Context) error { return nil }))
	m.runAll(context.Background())

	h := m.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "qdrant")
}
