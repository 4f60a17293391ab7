// Package scheduler runs periodic maintenance: ledger reconciliation and
// expiry sweeps for the idempotency cache and refresh tokens.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

const jobTimeout = 5 * time.Minute

type reconciler interface {
	ReconcileAll(ctx context.Context) ([]domain.Reconciliation, error)
}

type expiredCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

type Jobs struct {
	ledger      reconciler
	idempotency expiredCleaner
	tokens      expiredCleaner
	logger      *slog.Logger
}

func NewJobs(ledger reconciler, idempotency, tokens expiredCleaner, logger *slog.Logger) *Jobs {
	return &Jobs{
		ledger:      ledger,
		idempotency: idempotency,
		tokens:      tokens,
		logger:      logger,
	}
}

// ReconcileLedger compares every stored balance with its ledger. Drift is
// logged by the ledger service; this job only reports the count.
func (j *Jobs) ReconcileLedger() {
	ctx, cancel := j.jobContext("reconcile_ledger")
	defer cancel()

	start := time.Now()
	drift, err := j.ledger.ReconcileAll(ctx)
	if err != nil {
		j.logger.Error("ledger reconciliation failed", "error", err)
		return
	}

	j.logger.Info("ledger reconciliation finished",
		"drifted_accounts", len(drift),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (j *Jobs) CleanIdempotencyCache() {
	ctx, cancel := j.jobContext("clean_idempotency_cache")
	defer cancel()

	n, err := j.idempotency.CleanExpired(ctx)
	if err != nil {
		j.logger.Error("idempotency cache cleanup failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("expired idempotency entries removed", "count", n)
	}
}

func (j *Jobs) CleanExpiredRefreshTokens() {
	ctx, cancel := j.jobContext("clean_refresh_tokens")
	defer cancel()

	n, err := j.tokens.CleanExpired(ctx)
	if err != nil {
		j.logger.Error("refresh token cleanup failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("expired refresh tokens removed", "count", n)
	}
}

func (j *Jobs) jobContext(name string) (context.Context, context.CancelFunc) {
	ctx := logging.WithLogger(context.Background(), j.logger.With("job", name))
	return context.WithTimeout(ctx, jobTimeout)
}
