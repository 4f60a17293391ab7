package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PageRequest struct {
	Page int
	Size int
}

// NewPageRequest rejects a negative page or a size below one and clamps
// size to maxSize.
func NewPageRequest(page, size, maxSize int) (PageRequest, error) {
	if page < 0 {
		return PageRequest{}, fmt.Errorf("page must not be negative: %w", ErrInvalidArgument)
	}
	if size < 1 {
		return PageRequest{}, fmt.Errorf("size must be at least 1: %w", ErrInvalidArgument)
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return PageRequest{Page: page, Size: size}, nil
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

type AccountHistory struct {
	AccountID   string
	Balance     decimal.Decimal
	Operations  []Operation
	CurrentPage int
	PageSize    int
	TotalPages  int
}
