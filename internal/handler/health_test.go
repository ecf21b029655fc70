package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pos-loyalty/internal/testutil"
)

type readinessBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func readiness(t *testing.T, h *HealthHandler) (int, readinessBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body readinessBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil, nil).Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadiness_DatabaseDown(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://nobody@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	code, body := readiness(t, NewHealthHandler(db, nil))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "down", body.Status)
	assert.Equal(t, "down", body.Checks["database"])
}

func TestReadiness_OptionalChecksOnlyDegrade(t *testing.T) {
	db := testutil.SetupTestDB(t)

	h := NewHealthHandler(db, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
		"nats":  func(context.Context) error { return nil },
	})
	code, body := readiness(t, h)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "degraded", body.Checks["redis"])
	assert.Equal(t, "ok", body.Checks["nats"])
}
