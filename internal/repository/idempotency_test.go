package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/repository"
	"github.com/josh-kwaku/digital-banking/internal/testutil"
)

func TestIdempotencyReserve_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	_, reserved, err := repo.Reserve(ctx, "k1", 7, "hash-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)

	held, reserved, err := repo.Reserve(ctx, "k1", 7, "hash-a", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.True(t, held.Pending())

	_, reserved, err = repo.Reserve(ctx, "k1", 8, "hash-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved, "keys are scoped per user")

	require.NoError(t, repo.Complete(ctx, "k1", 7, 201, []byte(`{"ok":true}`)))
	assert.ErrorIs(t, repo.Complete(ctx, "k1", 7, 201, []byte(`{}`)), domain.ErrNotFound)

	done, reserved, err := repo.Reserve(ctx, "k1", 7, "hash-a", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.False(t, done.Pending())
	assert.Equal(t, 201, done.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(done.ResponseBody))

	require.NoError(t, repo.Release(ctx, "k1", 7))
	_, reserved, err = repo.Reserve(ctx, "k1", 7, "hash-a", time.Hour)
	require.NoError(t, err)
	assert.False(t, reserved, "completed responses survive a release")
}

func TestIdempotencyReserve_ReleaseAllowsRetry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	_, _, err := repo.Reserve(ctx, "k1", 7, "hash-a", time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, "k1", 7))

	_, reserved, err := repo.Reserve(ctx, "k1", 7, "hash-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestIdempotencyReserve_TakesOverExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	_, _, err := repo.Reserve(ctx, "k1", 7, "hash-a", time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, "k1", 7, 201, []byte(`{}`)))
	_, err = db.Exec(`UPDATE idempotency_cache SET expires_at = now() - interval '1 minute'`)
	require.NoError(t, err)

	rec, reserved, err := repo.Reserve(ctx, "k1", 7, "hash-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, "hash-b", rec.RequestHash)
	assert.True(t, rec.Pending())

	n, err := repo.CleanExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIdempotencyReserve_ConcurrentSingleWinner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewIdempotencyRepository(db)
	ctx := context.Background()

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			_, reserved, err := repo.Reserve(ctx, "race", 7, "hash", time.Hour)
			assert.NoError(t, err)
			if reserved {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
