package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestReadinessAllUp(t *testing.T) {
	h := New("test", "SN_SEPOLIA")
	h.RegisterCheck("rpc", func(context.Context) error { return nil })

	rec, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, map[string]any{"rpc": "up"}, body["checks"])
}

func TestReadinessReportsDownDependency(t *testing.T) {
	h := New("test", "SN_SEPOLIA")
	h.RegisterCheck("rpc", func(context.Context) error { return nil })
	h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	rec, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "down: connection refused", checks["redis"])
	assert.Equal(t, "up", checks["rpc"])
}

func TestReadinessCheckTimeout(t *testing.T) {
	h := New("test", "SN_SEPOLIA", WithCheckTimeout(10*time.Millisecond))
	h.RegisterCheck("kafka", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rec, _ := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	h := New("prod", "SN_SEPOLIA", WithClock(func() time.Time { return now }))
	now = start.Add(90 * time.Second)

	rec, body := serve(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SN_SEPOLIA", body["network"])
	assert.Equal(t, "prod", body["environment"])
	assert.EqualValues(t, 90, body["uptime_seconds"])
}

func TestLiveness(t *testing.T) {
	_, body := serve(t, New("test", ""), "/health/live")
	assert.Equal(t, "alive", body["status"])
}
