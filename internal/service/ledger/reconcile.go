package ledger

import (
	"context"
	"fmt"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

func (s *Service) Reconcile(ctx context.Context, accountID string) (*domain.Reconciliation, error) {
	rec, err := s.operations.Reconcile(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Reconcile: %w", notFoundAs(err, domain.ErrAccountNotFound))
	}
	return rec, nil
}

// ReconcileAll returns the accounts whose balance drifted from the ledger.
func (s *Service) ReconcileAll(ctx context.Context) ([]domain.Reconciliation, error) {
	log := logging.FromContext(ctx)

	drift, err := s.operations.FindDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReconcileAll: %w", err)
	}

	for _, d := range drift {
		log.Error("ledger drift detected",
			"account_id", d.AccountID,
			"stored_balance", d.Stored,
			"expected_balance", d.Expected,
		)
	}
	return drift, nil
}
