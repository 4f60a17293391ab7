package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

func SeedCustomer(t *testing.T, db *sql.DB, name, email string) *domain.Customer {
	t.Helper()

	c := &domain.Customer{Name: name, Email: email, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	err := db.QueryRow(
		`INSERT INTO customers (name, email, created_at) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Email, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		t.Fatalf("seed customer %s: %v", email, err)
	}
	return c
}

func SeedCurrentAccount(t *testing.T, db *sql.DB, customerID int64, balance, overDraft string, status domain.AccountStatus) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:             uuid.NewString(),
		Type:           domain.AccountTypeCurrent,
		Balance:        decimal.RequireFromString(balance),
		InitialBalance: decimal.RequireFromString(balance),
		OverDraft:      decimal.RequireFromString(overDraft),
		Status:         status,
		CustomerID:     &customerID,
		Version:        1,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := db.Exec(
		`INSERT INTO accounts (id, account_type, balance, initial_balance, status, customer_id, over_draft, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Type, a.Balance, a.InitialBalance, a.Status, customerID, a.OverDraft, a.Version, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed current account for customer %d: %v", customerID, err)
	}
	return a
}

func SeedSavingAccount(t *testing.T, db *sql.DB, customerID int64, balance, interestRate string, status domain.AccountStatus) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:             uuid.NewString(),
		Type:           domain.AccountTypeSaving,
		Balance:        decimal.RequireFromString(balance),
		InitialBalance: decimal.RequireFromString(balance),
		InterestRate:   decimal.RequireFromString(interestRate),
		Status:         status,
		CustomerID:     &customerID,
		Version:        1,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := db.Exec(
		`INSERT INTO accounts (id, account_type, balance, initial_balance, status, customer_id, interest_rate, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Type, a.Balance, a.InitialBalance, a.Status, customerID, a.InterestRate, a.Version, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed saving account for customer %d: %v", customerID, err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID string) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance); err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func GetAccountStatus(t *testing.T, db *sql.DB, accountID string) domain.AccountStatus {
	t.Helper()

	var status domain.AccountStatus
	if err := db.QueryRow(`SELECT status FROM accounts WHERE id = $1`, accountID).Scan(&status); err != nil {
		t.Fatalf("get account status %s: %v", accountID, err)
	}
	return status
}

func CountOperations(t *testing.T, db *sql.DB, accountID string, opType domain.OperationType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM operations WHERE account_id = $1 AND operation_type = $2`, accountID, opType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count %s operations for %s: %v", opType, accountID, err)
	}
	return count
}

// Dec parses a decimal literal. It panics on bad input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
