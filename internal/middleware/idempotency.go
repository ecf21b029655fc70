package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/auth"
	"github.com/josh-kwaku/pos-loyalty/internal/handler"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "X-Idempotent-Replayed"
	idempotencyTTL    = 24 * time.Hour
	reservationTTL    = 2 * time.Minute
	maxKeyLength      = 255
)

type idempotencyStore interface {
	Get(ctx context.Context, key string, userID uuid.UUID) (*repository.IdempotencyCacheEntry, error)
	Reserve(ctx context.Context, key string, userID uuid.UUID, requestHash string, now, expiresAt time.Time) (bool, error)
	Complete(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key string, userID uuid.UUID) error
}

// Idempotency replays the stored response for a repeated key from the same operator. The key is
// reserved before the handler runs, so a concurrent duplicate is refused instead of executed.
// Only 2xx responses are kept; any other outcome releases the key for a corrected retry.
// It must run after Auth.
func Idempotency(store idempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut {
				next.ServeHTTP(w, r)
				return
			}

			log := logging.FromContext(r.Context())

			key := r.Header.Get(idempotencyHeader)
			if key == "" || len(key) > maxKeyLength {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fingerprint := requestFingerprint(r.Method, r.URL.Path, body)

			now := time.Now().UTC()
			reserved, err := store.Reserve(r.Context(), key, userID, fingerprint, now, now.Add(reservationTTL))
			if err != nil {
				log.Error("idempotency reserve failed", "error", err, "idempotency_key", key)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}
			if !reserved {
				cached, err := store.Get(r.Context(), key, userID)
				if err != nil {
					log.Error("idempotency lookup failed", "error", err, "idempotency_key", key)
					handler.RespondAppError(w, handler.ErrInternalError, nil)
					return
				}
				respondHeld(w, cached, fingerprint, log.Error)
				return
			}

			// Finishing must survive a client that hangs up mid-request.
			finishCtx := context.WithoutCancel(r.Context())
			rec := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			succeeded := false
			defer func() {
				if succeeded {
					return
				}
				if err := store.Release(finishCtx, key, userID); err != nil {
					log.Error("idempotency release failed", "error", err, "idempotency_key", key)
				}
			}()

			next.ServeHTTP(rec, r)

			if rec.status < 200 || rec.status >= 300 {
				return
			}
			// A failed Complete leaves the reservation to expire rather than allow a second run.
			succeeded = true

			err = store.Complete(finishCtx, &repository.IdempotencyCacheEntry{
				Key:          key,
				UserID:       userID,
				RequestHash:  fingerprint,
				StatusCode:   rec.status,
				ResponseBody: rec.body.Bytes(),
				ExpiresAt:    time.Now().UTC().Add(idempotencyTTL),
			})
			if err != nil {
				log.Error("idempotency store failed", "error", err, "idempotency_key", key)
			}
		})
	}
}

// respondHeld answers a request whose key is already taken. cached is nil when the holder
// released it between our reserve and lookup; that case is answered as in flight.
func respondHeld(w http.ResponseWriter, cached *repository.IdempotencyCacheEntry, fingerprint string, logErr func(msg string, args ...any)) {
	switch {
	case cached != nil && cached.RequestHash != fingerprint:
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
	case cached == nil || cached.InFlight():
		handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
	default:
		replay(w, cached, logErr)
	}
}

func replay(w http.ResponseWriter, cached *repository.IdempotencyCacheEntry, logErr func(msg string, args ...any)) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.ResponseBody); err != nil {
		logErr("failed to write idempotent replay", "error", err, "idempotency_key", cached.Key)
	}
}

func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *capturingWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
