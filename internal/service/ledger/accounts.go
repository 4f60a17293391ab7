package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type accountBuilder func(id string, status domain.AccountStatus, now time.Time) (*domain.Account, error)

func (s *Service) OpenCurrentAccount(ctx context.Context, initialBalance, overDraft decimal.Decimal, customerID int64) (*domain.Account, error) {
	acct, err := s.openAccount(ctx, customerID, func(id string, status domain.AccountStatus, now time.Time) (*domain.Account, error) {
		return domain.NewCurrentAccount(id, initialBalance, overDraft, customerID, status, now)
	})
	if err != nil {
		return nil, fmt.Errorf("OpenCurrentAccount: %w", err)
	}
	return acct, nil
}

func (s *Service) OpenSavingAccount(ctx context.Context, initialBalance, interestRate decimal.Decimal, customerID int64) (*domain.Account, error) {
	acct, err := s.openAccount(ctx, customerID, func(id string, status domain.AccountStatus, now time.Time) (*domain.Account, error) {
		return domain.NewSavingAccount(id, initialBalance, interestRate, customerID, status, now)
	})
	if err != nil {
		return nil, fmt.Errorf("OpenSavingAccount: %w", err)
	}
	return acct, nil
}

// openAccount locks the customer row so two concurrent openings agree on
// which one is the customer's first account.
func (s *Service) openAccount(ctx context.Context, customerID int64, build accountBuilder) (*domain.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("openAccount: begin tx: %w", err)
	}
	defer tx.Rollback()

	customer, err := s.customers.GetForUpdate(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("openAccount: %w", notFoundAs(err, domain.ErrCustomerNotFound))
	}

	existing, err := s.accounts.ListByCustomer(ctx, tx, customerID)
	if err != nil {
		return nil, fmt.Errorf("openAccount: %w", err)
	}

	acct, err := build(s.newAccountID(), domain.InitialStatus(existing), s.timestamp())
	if err != nil {
		return nil, fmt.Errorf("openAccount: %w", err)
	}

	if err := s.accounts.Create(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("openAccount: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("openAccount: commit: %w", err)
	}
	acct.Customer = customer

	logging.FromContext(ctx).Info("account opened",
		"account_id", acct.ID,
		"type", acct.Type,
		"status", acct.Status,
		"customer_id", customerID,
		"initial_balance", acct.InitialBalance,
	)
	s.publish(ctx, events.RoutingAccountOpened, events.AccountOpened{
		AccountID:  acct.ID,
		Type:       string(acct.Type),
		Status:     string(acct.Status),
		CustomerID: customerID,
		Balance:    acct.Balance,
		Timestamp:  acct.CreatedAt,
	})

	return acct, nil
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", notFoundAs(err, domain.ErrAccountNotFound))
	}
	return acct, nil
}

func (s *Service) ListAccounts(ctx context.Context, includeInactive bool) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	return accounts, nil
}

// ListAccountsForCustomer returns the customer's accounts in every status.
func (s *Service) ListAccountsForCustomer(ctx context.Context, customerID int64) ([]domain.Account, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, fmt.Errorf("ListAccountsForCustomer: %w", notFoundAs(err, domain.ErrCustomerNotFound))
	}

	accounts, err := s.accounts.ListByCustomer(ctx, s.db, customerID)
	if err != nil {
		return nil, fmt.Errorf("ListAccountsForCustomer: %w", err)
	}
	return accounts, nil
}

func (s *Service) ChangeStatus(ctx context.Context, accountID string, target domain.AccountStatus) (*domain.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ChangeStatus: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", notFoundAs(err, domain.ErrAccountNotFound))
	}

	from := acct.Status
	if err := acct.TransitionTo(target); err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", err)
	}

	if err := s.accounts.UpdateStatus(ctx, tx, acct.ID, acct.Status, acct.Version+1); err != nil {
		return nil, fmt.Errorf("ChangeStatus: %w", err)
	}
	acct.Version++

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ChangeStatus: commit: %w", err)
	}

	logging.FromContext(ctx).Info("account status changed",
		"account_id", acct.ID,
		"from", from,
		"to", acct.Status,
	)
	s.publish(ctx, events.RoutingAccountStatusChanged, events.AccountStatusChanged{
		AccountID: acct.ID,
		From:      string(from),
		To:        string(acct.Status),
		Timestamp: s.timestamp(),
	})

	return acct, nil
}
