package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoutingAccountOpened        = "account.opened"
	RoutingAccountStatusChanged = "account.status_changed"
	RoutingAccountSuspended     = "account.suspended"
	RoutingOperationRecorded    = "operation.recorded"
	RoutingTransferCompleted    = "transfer.completed"
	RoutingCustomerDeleted      = "customer.deleted"
)

type AccountOpened struct {
	AccountID  string          `json:"account_id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	Timestamp  time.Time       `json:"timestamp"`
}

type AccountStatusChanged struct {
	AccountID string    `json:"account_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

type OperationRecorded struct {
	OperationID int64           `json:"operation_id"`
	AccountID   string          `json:"account_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

type TransferCompleted struct {
	SourceAccountID string          `json:"source_account_id"`
	DestAccountID   string          `json:"dest_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	DebitID         int64           `json:"debit_operation_id"`
	CreditID        int64           `json:"credit_operation_id"`
	Timestamp       time.Time       `json:"timestamp"`
}

type CustomerDeleted struct {
	CustomerID        int64     `json:"customer_id"`
	SuspendedAccounts []string  `json:"suspended_accounts"`
	Timestamp         time.Time `json:"timestamp"`
}
