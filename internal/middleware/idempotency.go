package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/digital-banking/internal/auth"
	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/handler"
	"github.com/josh-kwaku/digital-banking/internal/logging"
	"github.com/josh-kwaku/digital-banking/internal/repository"
)

type idempotencyRepository interface {
	Reserve(ctx context.Context, key string, userID int64, requestHash string, ttl time.Duration) (*repository.IdempotencyRecord, bool, error)
	Complete(ctx context.Context, key string, userID int64, statusCode int, body []byte) error
	Release(ctx context.Context, key string, userID int64) error
}

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// Idempotency replays the stored response when a mutating request repeats
// an Idempotency-Key for the same user. The key is reserved before the
// handler runs, so a concurrent duplicate gets 409 instead of running
// twice. Requests without the header pass through untouched. Only 2xx
// responses are kept; anything else frees the key for a retry.
func Idempotency(repo idempotencyRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			log := logging.FromContext(r.Context()).With("idempotency_key", key)

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			reqHash := computeHash(r.Method, r.URL.Path, body)

			existing, reserved, err := repo.Reserve(r.Context(), key, userID, reqHash, idempotencyTTL)
			switch {
			case errors.Is(err, domain.ErrVersionConflict):
				handler.RespondAppError(w, handler.ErrIdempotencyPending, nil)
				return
			case err != nil:
				log.Error("idempotency reservation failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			case !reserved:
				replay(w, existing, reqHash, log)
				return
			}

			// The slot outlives the request context.
			storeCtx := context.WithoutCancel(r.Context())
			completed := false
			defer func() {
				if completed {
					return
				}
				if err := repo.Release(storeCtx, key, userID); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode >= 300 {
				return
			}
			if err := repo.Complete(storeCtx, key, userID, rec.statusCode, rec.body.Bytes()); err != nil {
				log.Error("idempotency cache store failed", "error", err)
				return
			}
			completed = true
		})
	}
}

func replay(w http.ResponseWriter, existing *repository.IdempotencyRecord, reqHash string, log *slog.Logger) {
	if existing.RequestHash != reqHash {
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	}
	if existing.Pending() {
		handler.RespondAppError(w, handler.ErrIdempotencyPending, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replayed", "true")
	w.WriteHeader(existing.StatusCode)
	if _, err := w.Write(existing.ResponseBody); err != nil {
		log.Error("failed to write idempotent replay", "error", err)
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
