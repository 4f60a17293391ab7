package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

func (s *Service) Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.Operation, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}

	op, acct, err := s.applySingle(ctx, accountID, domain.OperationTypeCredit, amount,
		orDefault(description, domain.DefaultCreditDescription))
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}

	logging.FromContext(ctx).Info("credit applied",
		"account_id", accountID,
		"operation_id", op.ID,
		"amount", amount,
		"balance", acct.Balance,
	)
	s.publishOperation(ctx, op, acct.Balance)
	return op, nil
}

// Debit honours the variant's balance floor: an overdraft for current
// accounts, zero for saving accounts.
func (s *Service) Debit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.Operation, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	op, acct, err := s.applySingle(ctx, accountID, domain.OperationTypeDebit, amount,
		orDefault(description, domain.DefaultDebitDescription))
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}

	logging.FromContext(ctx).Info("debit applied",
		"account_id", accountID,
		"operation_id", op.ID,
		"amount", amount,
		"balance", acct.Balance,
	)
	s.publishOperation(ctx, op, acct.Balance)
	return op, nil
}

func (s *Service) applySingle(ctx context.Context, accountID string, opType domain.OperationType, amount decimal.Decimal, description string) (*domain.Operation, *domain.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("applySingle: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("applySingle: %w", notFoundAs(err, domain.ErrAccountNotFound))
	}

	op, err := s.apply(ctx, tx, acct, opType, amount, description)
	if err != nil {
		return nil, nil, fmt.Errorf("applySingle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("applySingle: commit: %w", err)
	}
	return op, acct, nil
}

// apply records one operation against an account already locked in tx
// and updates acct in place.
func (s *Service) apply(ctx context.Context, tx *sql.Tx, acct *domain.Account, opType domain.OperationType, amount decimal.Decimal, description string) (*domain.Operation, error) {
	if err := domain.CheckTransactable(acct.Status); err != nil {
		return nil, fmt.Errorf("apply: account %s: %w", acct.ID, err)
	}

	var newBalance decimal.Decimal
	switch opType {
	case domain.OperationTypeCredit:
		if err := acct.CheckCredit(amount); err != nil {
			return nil, fmt.Errorf("apply: %w", err)
		}
		newBalance = acct.Balance.Add(amount)
	case domain.OperationTypeDebit:
		if err := acct.CheckDebit(amount); err != nil {
			return nil, fmt.Errorf("apply: %w", err)
		}
		newBalance = acct.Balance.Sub(amount)
	default:
		return nil, fmt.Errorf("apply: unknown operation type %q", opType)
	}

	op := &domain.Operation{
		ID:            s.ids.Generate().Int64(),
		Type:          opType,
		Amount:        amount,
		Description:   description,
		OperationDate: s.timestamp(),
		AccountID:     acct.ID,
	}
	if err := s.operations.Create(ctx, tx, op); err != nil {
		return nil, fmt.Errorf("apply: record %s: %w", opType, err)
	}

	if err := s.accounts.UpdateBalance(ctx, tx, acct.ID, newBalance, acct.Version+1); err != nil {
		return nil, fmt.Errorf("apply: update balance: %w", err)
	}
	acct.Balance = newBalance
	acct.Version++

	return op, nil
}

func (s *Service) publishOperation(ctx context.Context, op *domain.Operation, balance decimal.Decimal) {
	s.publish(ctx, events.RoutingOperationRecorded, events.OperationRecorded{
		OperationID: op.ID,
		AccountID:   op.AccountID,
		Type:        string(op.Type),
		Amount:      op.Amount,
		Balance:     balance,
		Description: op.Description,
		Timestamp:   op.OperationDate,
	})
}

func orDefault(description, fallback string) string {
	if strings.TrimSpace(description) == "" {
		return fallback
	}
	return description
}
