package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	OperationTypeDebit  OperationType = "DEBIT"
	OperationTypeCredit OperationType = "CREDIT"
)

const (
	DefaultCreditDescription = "Credit Operation"
	DefaultDebitDescription  = "Debit Operation"
)

type Operation struct {
	ID            int64
	Type          OperationType
	Amount        decimal.Decimal
	Description   string
	OperationDate time.Time
	AccountID     string
}

// Signed returns the amount as it applies to the balance.
func (o Operation) Signed() decimal.Decimal {
	if o.Type == OperationTypeDebit {
		return o.Amount.Neg()
	}
	return o.Amount
}

func TransferOutDescription(destID string) string {
	return "Transfer to " + destID
}

func TransferInDescription(sourceID string) string {
	return "Transfer from " + sourceID
}

// Reconciliation compares an account's stored balance with the balance
// implied by its initial balance and ledger.
type Reconciliation struct {
	AccountID string
	Stored    decimal.Decimal
	Expected  decimal.Decimal
}

func (r Reconciliation) Balanced() bool {
	return r.Stored.Equal(r.Expected)
}
