package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

// IdempotencyRecord is one (key, user) slot. A zero StatusCode means the
// first request holding the key is still running.
type IdempotencyRecord struct {
	Key          string
	UserID       int64
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (r *IdempotencyRecord) Pending() bool {
	return r.StatusCode == 0
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

const idempotencyColumns = `idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at`

// Reserve claims the key for userID. It returns reserved=true when the
// caller now owns the slot, including when it took over an expired one.
// Otherwise it returns the record currently holding the key.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key string, userID int64, requestHash string, ttl time.Duration) (*IdempotencyRecord, bool, error) {
	now := time.Now().UTC()
	rec, err := scanIdempotency(r.db.QueryRowContext(ctx,
		`INSERT INTO idempotency_cache (idempotency_key, user_id, request_hash, status_code, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, 0, '', $4, $5)
		ON CONFLICT (idempotency_key, user_id) DO UPDATE
			SET request_hash = EXCLUDED.request_hash,
				status_code = 0,
				response_body = '',
				created_at = EXCLUDED.created_at,
				expires_at = EXCLUDED.expires_at
			WHERE idempotency_cache.expires_at <= now()
		RETURNING `+idempotencyColumns,
		key, userID, requestHash, now, now.Add(ttl),
	))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("Reserve: %w", err)
	}

	existing, err := scanIdempotency(r.db.QueryRowContext(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_cache WHERE idempotency_key = $1 AND user_id = $2`,
		key, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// Released between the insert and the read.
		return nil, false, fmt.Errorf("Reserve: %w", domain.ErrVersionConflict)
	}
	if err != nil {
		return nil, false, fmt.Errorf("Reserve: %w", err)
	}
	return existing, false, nil
}

// Complete stores the response for a slot reserved by the caller.
func (r *IdempotencyRepository) Complete(ctx context.Context, key string, userID int64, statusCode int, body []byte) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE idempotency_cache SET status_code = $3, response_body = $4
		WHERE idempotency_key = $1 AND user_id = $2 AND status_code = 0`,
		key, userID, statusCode, body,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Complete: %w", domain.ErrNotFound)
	}
	return nil
}

// Release drops a pending reservation so the key can be retried.
func (r *IdempotencyRepository) Release(ctx context.Context, key string, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_cache WHERE idempotency_key = $1 AND user_id = $2 AND status_code = 0`,
		key, userID,
	)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_cache WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}

func scanIdempotency(s scanner) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	if err := s.Scan(&rec.Key, &rec.UserID, &rec.RequestHash, &rec.StatusCode,
		&rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
