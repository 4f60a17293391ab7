package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/digital-banking/internal/auth"
	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/repository"
)

type fakeIdempotencyRepo struct {
	mu         sync.Mutex
	entries    map[string]*repository.IdempotencyRecord
	reserveErr error
}

func newFakeIdempotencyRepo() *fakeIdempotencyRepo {
	return &fakeIdempotencyRepo{entries: map[string]*repository.IdempotencyRecord{}}
}

func entryKey(key string, userID int64) string { return fmt.Sprintf("%s/%d", key, userID) }

func (f *fakeIdempotencyRepo) Reserve(_ context.Context, key string, userID int64, hash string, ttl time.Duration) (*repository.IdempotencyRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return nil, false, f.reserveErr
	}
	if e, ok := f.entries[entryKey(key, userID)]; ok {
		return e, false, nil
	}
	e := &repository.IdempotencyRecord{Key: key, UserID: userID, RequestHash: hash, ExpiresAt: time.Now().Add(ttl)}
	f.entries[entryKey(key, userID)] = e
	return e, true, nil
}

func (f *fakeIdempotencyRepo) Complete(_ context.Context, key string, userID int64, status int, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryKey(key, userID)]
	if !ok || !e.Pending() {
		return fmt.Errorf("Complete: %w", domain.ErrNotFound)
	}
	e.StatusCode = status
	e.ResponseBody = append([]byte(nil), body...)
	return nil
}

func (f *fakeIdempotencyRepo) Release(_ context.Context, key string, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[entryKey(key, userID)]; ok && e.Pending() {
		delete(f.entries, entryKey(key, userID))
	}
	return nil
}

func (f *fakeIdempotencyRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// countingHandler responds with status and counts invocations.
func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"call":%d}`, *calls)
	})
}

func idempotentRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/debit", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	ctx := auth.ContextWithClaims(req.Context(), &auth.Claims{UserID: 7, Role: domain.RoleUser})
	return req.WithContext(ctx)
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	var calls int
	h := Idempotency(repo)(countingHandler(http.StatusCreated, &calls))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idempotentRequest("k1", `{"amount":"10"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest("k1", `{"amount":"10"}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotent-Replayed"))
	assert.JSONEq(t, `{"call":1}`, second.Body.String())
}

func TestIdempotency_DifferentBodySameKeyConflicts(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	var calls int
	h := Idempotency(repo)(countingHandler(http.StatusCreated, &calls))

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest("k1", `{"amount":"10"}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idempotentRequest("k1", `{"amount":"20"}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_CONFLICT", errorCode(t, rec))
}

func TestIdempotency_WithoutKeyPassesThrough(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	var calls int
	h := Idempotency(repo)(countingHandler(http.StatusCreated, &calls))

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, idempotentRequest("", `{"amount":"10"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}

	assert.Equal(t, 2, calls)
	assert.Zero(t, repo.count())
}

func TestIdempotency_FailuresAreNotCached(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	var calls int
	h := Idempotency(repo)(countingHandler(http.StatusUnprocessableEntity, &calls))

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest("k1", `{}`))
	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest("k1", `{}`))

	assert.Equal(t, 2, calls)
	assert.Zero(t, repo.count())
}

func TestIdempotency_ReservationErrorIsInternal(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	repo.reserveErr = fmt.Errorf("connection reset")
	var calls int
	h := Idempotency(repo)(countingHandler(http.StatusCreated, &calls))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, idempotentRequest("k1", `{}`))

	assert.Equal(t, 0, calls)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIdempotency_ConcurrentDuplicateDoesNotRunTwice(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int
	h := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ok":true}`)
	}))

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(first, idempotentRequest("k1", `{"amount":"10"}`))
	}()
	<-entered

	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest("k1", `{"amount":"10"}`))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "IDEMPOTENCY_IN_PROGRESS", errorCode(t, second))

	close(release)
	<-done
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)

	third := httptest.NewRecorder()
	h.ServeHTTP(third, idempotentRequest("k1", `{"amount":"10"}`))
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "true", third.Header().Get("X-Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	repo := newFakeIdempotencyRepo()
	h := Idempotency(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), idempotentRequest("k1", `{}`))
	})
	assert.Zero(t, repo.count())
}
