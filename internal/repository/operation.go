package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

const operationColumns = `id, operation_type, amount, description, operation_date, account_id`

const signedAmount = `CASE WHEN o.operation_type = 'CREDIT' THEN o.amount ELSE -o.amount END`

// OperationRepository is append-only. There is no update or delete path.
type OperationRepository struct {
	db *sql.DB
}

func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Create(ctx context.Context, tx *sql.Tx, op *domain.Operation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO operations (`+operationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		op.ID, op.Type, op.Amount, op.Description, op.OperationDate, op.AccountID,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *OperationRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE account_id = $1 ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	ops, err := collectOperations(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByAccount: %w", err)
	}
	return ops, nil
}

// PageByAccount returns operations newest first together with the total
// number of operations on the account.
func (r *OperationRepository) PageByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Operation, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("PageByAccount: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations
		WHERE account_id = $1 ORDER BY operation_date DESC, id DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("PageByAccount: %w", err)
	}
	ops, err := collectOperations(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("PageByAccount: %w", err)
	}
	return ops, total, nil
}

const reconcileSelect = `SELECT a.id, a.balance, a.initial_balance + COALESCE(SUM(` + signedAmount + `), 0)
	FROM accounts a LEFT JOIN operations o ON o.account_id = a.id`

// Reconcile reads the stored and ledger-derived balance in one statement.
func (r *OperationRepository) Reconcile(ctx context.Context, accountID string) (*domain.Reconciliation, error) {
	var rec domain.Reconciliation
	err := r.db.QueryRowContext(ctx,
		reconcileSelect+` WHERE a.id = $1 GROUP BY a.id, a.balance, a.initial_balance`, accountID,
	).Scan(&rec.AccountID, &rec.Stored, &rec.Expected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Reconcile: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	return &rec, nil
}

// FindDrift returns every account whose stored balance disagrees with
// its ledger.
func (r *OperationRepository) FindDrift(ctx context.Context) ([]domain.Reconciliation, error) {
	rows, err := r.db.QueryContext(ctx,
		reconcileSelect+` GROUP BY a.id, a.balance, a.initial_balance
		HAVING a.balance <> a.initial_balance + COALESCE(SUM(`+signedAmount+`), 0)
		ORDER BY a.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("FindDrift: %w", err)
	}
	defer rows.Close()

	drift := []domain.Reconciliation{}
	for rows.Next() {
		var d domain.Reconciliation
		if err := rows.Scan(&d.AccountID, &d.Stored, &d.Expected); err != nil {
			return nil, fmt.Errorf("FindDrift: scan: %w", err)
		}
		drift = append(drift, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindDrift: rows: %w", err)
	}
	return drift, nil
}

func collectOperations(rows *sql.Rows) ([]domain.Operation, error) {
	defer rows.Close()

	ops := []domain.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return ops, nil
}

func scanOperation(s scanner) (*domain.Operation, error) {
	var op domain.Operation
	err := s.Scan(&op.ID, &op.Type, &op.Amount, &op.Description, &op.OperationDate, &op.AccountID)
	if err != nil {
		return nil, err
	}
	return &op, nil
}
