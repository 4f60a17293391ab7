package ledger

import (
	"context"
	"fmt"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

// FullHistory returns every operation of the account in insertion order.
func (s *Service) FullHistory(ctx context.Context, accountID string) ([]domain.Operation, error) {
	exists, err := s.accounts.Exists(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("FullHistory: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("FullHistory: %w", domain.ErrAccountNotFound)
	}

	ops, err := s.operations.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("FullHistory: %w", err)
	}
	return ops, nil
}

// PagedHistory returns one page of operations, newest first. An oversized
// page is clamped and the clamped size is reported.
func (s *Service) PagedHistory(ctx context.Context, accountID string, page, size int) (*domain.AccountHistory, error) {
	pr, err := domain.NewPageRequest(page, size, s.maxPageSize)
	if err != nil {
		return nil, fmt.Errorf("PagedHistory: %w", err)
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("PagedHistory: %w", notFoundAs(err, domain.ErrAccountNotFound))
	}

	ops, total, err := s.operations.PageByAccount(ctx, accountID, pr.Size, pr.Offset())
	if err != nil {
		return nil, fmt.Errorf("PagedHistory: %w", err)
	}

	return &domain.AccountHistory{
		AccountID:   acct.ID,
		Balance:     acct.Balance,
		Operations:  ops,
		CurrentPage: pr.Page,
		PageSize:    pr.Size,
		TotalPages:  domain.TotalPages(total, pr.Size),
	}, nil
}
