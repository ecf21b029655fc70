package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pos-loyalty/internal/auth"
	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/handler"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func tokenFor(t *testing.T, role domain.UserRole) (string, uuid.UUID) {
	t.Helper()
	user := &domain.User{ID: uuid.New(), Email: "op@test.com", Role: role}
	token, err := auth.GenerateToken(user, testSecret, time.Hour)
	require.NoError(t, err)
	return token, user.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	handler.RespondSuccess(w, http.StatusCreated, map[string]string{"ok": "yes"})
})

func TestAuth(t *testing.T) {
	token, userID := tokenFor(t, domain.UserRoleCashier)

	t.Run("valid token populates context", func(t *testing.T) {
		var gotID uuid.UUID
		var gotRole domain.UserRole
		h := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID, _ = auth.UserIDFromContext(r.Context())
			gotRole, _ = auth.RoleFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, userID, gotID)
		assert.Equal(t, domain.UserRoleCashier, gotRole)
	})

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{name: "missing header", header: "", code: "MISSING_TOKEN"},
		{name: "wrong scheme", header: "Basic abc", code: "INVALID_TOKEN"},
		{name: "garbage token", header: "Bearer nope", code: "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Auth(testSecret)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestRequirePermission(t *testing.T) {
	cashier, _ := tokenFor(t, domain.UserRoleCashier)
	manager, _ := tokenFor(t, domain.UserRoleManager)

	h := Chain(okHandler, Auth(testSecret), RequirePermission(auth.PermLoyaltyApprove))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+cashier)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+manager)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRequirePermission_WithoutAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	RequirePermission(auth.PermLoyaltyView)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*repository.IdempotencyCacheEntry
}

func newMemoryStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{entries: map[string]*repository.IdempotencyCacheEntry{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string, userID uuid.UUID) (*repository.IdempotencyCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key+userID.String()], nil
}

func (m *memoryIdempotencyStore) Reserve(_ context.Context, key string, userID uuid.UUID, hash string, now, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.entries[key+userID.String()]; held {
		return false, nil
	}
	m.entries[key+userID.String()] = &repository.IdempotencyCacheEntry{
		Key: key, UserID: userID, RequestHash: hash, CreatedAt: now, ExpiresAt: expiresAt,
	}
	return true, nil
}

func (m *memoryIdempotencyStore) Complete(_ context.Context, e *repository.IdempotencyCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.entries[e.Key+e.UserID.String()]; ok && held.InFlight() {
		held.StatusCode, held.ResponseBody, held.ExpiresAt = e.StatusCode, e.ResponseBody, e.ExpiresAt
	}
	return nil
}

func (m *memoryIdempotencyStore) Release(_ context.Context, key string, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.entries[key+userID.String()]; ok && held.InFlight() {
		delete(m.entries, key+userID.String())
	}
	return nil
}

func TestIdempotency(t *testing.T) {
	token, _ := tokenFor(t, domain.UserRoleManager)

	var calls int
	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		okHandler.ServeHTTP(w, r)
	})

	store := newMemoryStore()
	h := Chain(counting, Auth(testSecret), Idempotency(store))

	send := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers/x/points", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("k1", `{"points":5}`)
	require.Equal(t, http.StatusCreated, first.Code)

	replayed := send("k1", `{"points":5}`)
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), replayed.Body.String())
	assert.Equal(t, 1, calls)

	conflict := send("k1", `{"points":6}`)
	assert.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", errorCode(t, conflict))

	missing := send("", `{"points":5}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ErrorsNotStored(t *testing.T) {
	token, _ := tokenFor(t, domain.UserRoleManager)
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.RespondAppError(w, handler.ErrInsufficientBalance, nil)
	})
	store := newMemoryStore()
	h := Chain(failing, Auth(testSecret), Idempotency(store))

	req := httptest.NewRequest(http.MethodPost, "/redeem", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "k2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, store.entries)
}

func TestIdempotency_ConcurrentDuplicateRefused(t *testing.T) {
	token, _ := tokenFor(t, domain.UserRoleCashier)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var calls atomic.Int32
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(entered)
		<-proceed
		okHandler.ServeHTTP(w, r)
	})
	h := Chain(slow, Auth(testSecret), Idempotency(newMemoryStore()))

	redeem := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/redeem", strings.NewReader(`{"points":30}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "till-4-redeem")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() { firstDone <- redeem() }()
	<-entered

	second := redeem()
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "IDEMPOTENCY_IN_PROGRESS", errorCode(t, second))

	close(proceed)
	first := <-firstDone
	assert.Equal(t, http.StatusCreated, first.Code)

	third := redeem()
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "true", third.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	token, _ := tokenFor(t, domain.UserRoleManager)

	var calls int
	flaky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			panic("ledger unavailable")
		}
		okHandler.ServeHTTP(w, r)
	})
	store := newMemoryStore()
	h := Chain(flaky, Recovery, Auth(testSecret), Idempotency(store))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/points", strings.NewReader(`{"points":5}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "k3")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusInternalServerError, send().Code)
	assert.Empty(t, store.entries)

	assert.Equal(t, http.StatusCreated, send().Code)
	assert.Equal(t, 2, calls)
}

func TestTracing(t *testing.T) {
	var seen string
	h := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "till-7-sale-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "till-7-sale-42", seen)
	assert.Equal(t, "till-7-sale-42", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}
