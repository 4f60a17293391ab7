package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

const accountSelect = `SELECT a.id, a.account_type, a.balance, a.initial_balance, a.status,
	a.customer_id, a.over_draft, a.interest_rate, a.version, a.created_at,
	c.name, c.email, c.created_at
	FROM accounts a LEFT JOIN customers c ON c.id = a.customer_id`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	overDraft, interestRate := variantColumns(account)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (
			id, account_type, balance, initial_balance, status, customer_id,
			over_draft, interest_rate, version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.Type, account.Balance, account.InitialBalance, account.Status,
		account.CustomerID, overDraft, interestRate, account.Version, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, accountSelect+` WHERE a.id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return exists, nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx, accountSelect+` WHERE a.id = $1 FOR UPDATE OF a`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return a, nil
}

// List returns accounts ordered by creation. Suspended and closed
// accounts are skipped unless includeInactive is set.
func (r *AccountRepository) List(ctx context.Context, includeInactive bool) ([]domain.Account, error) {
	query := accountSelect
	if !includeInactive {
		query += ` WHERE a.status IN ('CREATED', 'ACTIVATED')`
	}
	query += ` ORDER BY a.created_at, a.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) ListByCustomer(ctx context.Context, q Querier, customerID int64) ([]domain.Account, error) {
	rows, err := q.QueryContext(ctx,
		accountSelect+` WHERE a.customer_id = $1 ORDER BY a.created_at, a.id`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, fmt.Errorf("ListByCustomer: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id string, newBalance decimal.Decimal, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, version = $2 WHERE id = $3 AND version = $4`,
		newBalance, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}
	return expectOneRow(res, "UpdateBalance")
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status domain.AccountStatus, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET status = $1, version = $2 WHERE id = $3 AND version = $4`,
		status, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return expectOneRow(res, "UpdateStatus")
}

// SuspendAndDetach suspends every account owned by the customer and
// clears the owner, returning the affected account ids. Rows are locked
// in ascending id order first, the same order transfers lock in.
func (r *AccountRepository) SuspendAndDetach(ctx context.Context, tx *sql.Tx, customerID int64) ([]string, error) {
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM accounts WHERE customer_id = $1 ORDER BY id COLLATE "C" FOR UPDATE`, customerID,
	); err != nil {
		return nil, fmt.Errorf("SuspendAndDetach: lock: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`UPDATE accounts
		SET status = 'SUSPENDED', customer_id = NULL, version = version + 1
		WHERE customer_id = $1
		RETURNING id`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("SuspendAndDetach: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("SuspendAndDetach: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SuspendAndDetach: rows: %w", err)
	}
	return ids, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrVersionConflict)
	}
	return nil
}

func variantColumns(a *domain.Account) (overDraft, interestRate decimal.NullDecimal) {
	switch a.Type {
	case domain.AccountTypeCurrent:
		overDraft = decimal.NewNullDecimal(a.OverDraft)
	case domain.AccountTypeSaving:
		interestRate = decimal.NewNullDecimal(a.InterestRate)
	}
	return overDraft, interestRate
}

func collectAccounts(rows *sql.Rows) ([]domain.Account, error) {
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return accounts, nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var (
		a             domain.Account
		customerID    sql.NullInt64
		overDraft     decimal.NullDecimal
		interestRate  decimal.NullDecimal
		customerName  sql.NullString
		customerEmail sql.NullString
		customerSince sql.NullTime
	)
	err := s.Scan(
		&a.ID, &a.Type, &a.Balance, &a.InitialBalance, &a.Status,
		&customerID, &overDraft, &interestRate, &a.Version, &a.CreatedAt,
		&customerName, &customerEmail, &customerSince,
	)
	if err != nil {
		return nil, err
	}

	if overDraft.Valid {
		a.OverDraft = overDraft.Decimal
	}
	if interestRate.Valid {
		a.InterestRate = interestRate.Decimal
	}
	if customerID.Valid {
		id := customerID.Int64
		a.CustomerID = &id
		a.Customer = &domain.Customer{
			ID:        id,
			Name:      customerName.String,
			Email:     customerEmail.String,
			CreatedAt: customerSince.Time,
		}
	}
	return &a, nil
}
