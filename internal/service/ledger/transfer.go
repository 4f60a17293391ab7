package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type TransferResult struct {
	Debit  *domain.Operation
	Credit *domain.Operation
}

// Transfer moves amount from source to dest in one transaction. Both
// rows are locked in ascending id order so opposite transfers between
// the same pair cannot deadlock.
func (s *Service) Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) (*TransferResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	if sourceID == destID {
		return nil, fmt.Errorf("Transfer: source and destination are the same account: %w", domain.ErrInvalidArgument)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Transfer: begin tx: %w", err)
	}
	defer tx.Rollback()

	locked, err := lockAccountsInOrder(ctx, tx, s.accounts, sourceID, destID)
	if err != nil {
		return nil, fmt.Errorf("Transfer: %w", err)
	}
	source, dest := locked[sourceID], locked[destID]

	if err := domain.CheckTransactable(dest.Status); err != nil {
		return nil, fmt.Errorf("Transfer: destination %s: %w", destID, err)
	}

	debit, err := s.apply(ctx, tx, source, domain.OperationTypeDebit, amount, domain.TransferOutDescription(destID))
	if err != nil {
		return nil, fmt.Errorf("Transfer: debit leg: %w", err)
	}
	credit, err := s.apply(ctx, tx, dest, domain.OperationTypeCredit, amount, domain.TransferInDescription(sourceID))
	if err != nil {
		return nil, fmt.Errorf("Transfer: credit leg: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Transfer: commit: %w", err)
	}

	logging.FromContext(ctx).Info("transfer completed",
		"source_account", sourceID,
		"dest_account", destID,
		"amount", amount,
		"debit_operation_id", debit.ID,
		"credit_operation_id", credit.ID,
	)

	s.publishOperation(ctx, debit, source.Balance)
	s.publishOperation(ctx, credit, dest.Balance)
	s.publish(ctx, events.RoutingTransferCompleted, events.TransferCompleted{
		SourceAccountID: sourceID,
		DestAccountID:   destID,
		Amount:          amount,
		DebitID:         debit.ID,
		CreditID:        credit.ID,
		Timestamp:       debit.OperationDate,
	})

	return &TransferResult{Debit: debit, Credit: credit}, nil
}
