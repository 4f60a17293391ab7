package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeCurrent AccountType = "CurrentAccount"
	AccountTypeSaving  AccountType = "SavingAccount"
)

// Money columns are NUMERIC(19,4) and rates NUMERIC(9,4). Values that do
// not fit would be rounded or rejected by the store.
const MoneyScale = 4

var (
	maxMoney = decimal.New(1, 15)
	maxRate  = decimal.New(1, 5)
)

func (t AccountType) IsValid() bool {
	return t == AccountTypeCurrent || t == AccountTypeSaving
}

// Account is a tagged variant. OverDraft is meaningful only for
// CurrentAccount and InterestRate only for SavingAccount.
type Account struct {
	ID             string
	Type           AccountType
	Balance        decimal.Decimal
	InitialBalance decimal.Decimal
	Status         AccountStatus
	CustomerID     *int64
	Customer       *Customer
	OverDraft      decimal.Decimal
	InterestRate   decimal.Decimal
	Version        int64
	CreatedAt      time.Time
}

func NewCurrentAccount(id string, initialBalance, overDraft decimal.Decimal, customerID int64, status AccountStatus, now time.Time) (*Account, error) {
	if overDraft.IsNegative() {
		return nil, fmt.Errorf("NewCurrentAccount: overdraft must not be negative: %w", ErrInvalidArgument)
	}
	if err := checkRepresentable("overdraft", overDraft, maxMoney); err != nil {
		return nil, fmt.Errorf("NewCurrentAccount: %w", err)
	}
	a := newAccount(id, AccountTypeCurrent, initialBalance, customerID, status, now)
	a.OverDraft = overDraft
	if err := a.checkOpeningBalance(); err != nil {
		return nil, fmt.Errorf("NewCurrentAccount: %w", err)
	}
	return a, nil
}

func NewSavingAccount(id string, initialBalance, interestRate decimal.Decimal, customerID int64, status AccountStatus, now time.Time) (*Account, error) {
	if interestRate.IsNegative() {
		return nil, fmt.Errorf("NewSavingAccount: interest rate must not be negative: %w", ErrInvalidArgument)
	}
	if err := checkRepresentable("interest rate", interestRate, maxRate); err != nil {
		return nil, fmt.Errorf("NewSavingAccount: %w", err)
	}
	a := newAccount(id, AccountTypeSaving, initialBalance, customerID, status, now)
	a.InterestRate = interestRate
	if err := a.checkOpeningBalance(); err != nil {
		return nil, fmt.Errorf("NewSavingAccount: %w", err)
	}
	return a, nil
}

func newAccount(id string, t AccountType, initialBalance decimal.Decimal, customerID int64, status AccountStatus, now time.Time) *Account {
	return &Account{
		ID:             id,
		Type:           t,
		Balance:        initialBalance,
		InitialBalance: initialBalance,
		Status:         status,
		CustomerID:     &customerID,
		Version:        1,
		CreatedAt:      now.UTC().Truncate(time.Microsecond),
	}
}

func (a *Account) checkOpeningBalance() error {
	if err := checkRepresentable("initial balance", a.InitialBalance, maxMoney); err != nil {
		return err
	}
	floor, err := a.BalanceFloor()
	if err != nil {
		return err
	}
	if a.InitialBalance.LessThan(floor) {
		return fmt.Errorf("initial balance %s below floor %s: %w", a.InitialBalance, floor, ErrInvalidArgument)
	}
	return nil
}

// BalanceFloor is the lowest balance the variant may reach.
func (a *Account) BalanceFloor() (decimal.Decimal, error) {
	switch a.Type {
	case AccountTypeCurrent:
		return a.OverDraft.Neg(), nil
	case AccountTypeSaving:
		return decimal.Zero, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("BalanceFloor: unknown account type %q", a.Type)
	}
}

func (a *Account) CheckDebit(amount decimal.Decimal) error {
	floor, err := a.BalanceFloor()
	if err != nil {
		return err
	}
	if a.Balance.Sub(amount).LessThan(floor) {
		return fmt.Errorf("account %s: %w", a.ID, ErrInsufficientBalance)
	}
	return nil
}

// CheckCredit rejects a credit whose resulting balance would not fit the
// balance column.
func (a *Account) CheckCredit(amount decimal.Decimal) error {
	if a.Balance.Add(amount).GreaterThanOrEqual(maxMoney) {
		return fmt.Errorf("account %s: balance would exceed %s: %w", a.ID, maxMoney, ErrInvalidArgument)
	}
	return nil
}

func (a *Account) HasOwner() bool {
	return a.CustomerID != nil
}

// TransitionTo checks the move against the status table. A detached
// account can be closed but never re-activated.
func (a *Account) TransitionTo(target AccountStatus) error {
	if !target.IsValid() {
		return fmt.Errorf("TransitionTo: unknown status %q: %w", target, ErrInvalidArgument)
	}
	if !a.Status.CanTransitionTo(target) {
		return fmt.Errorf("TransitionTo: %s -> %s: %w", a.Status, target, ErrActionNotAllowed)
	}
	if target == AccountStatusActivated && !a.HasOwner() {
		return fmt.Errorf("TransitionTo: account %s has no owner: %w", a.ID, ErrActionNotAllowed)
	}
	a.Status = target
	return nil
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero: %w", ErrInvalidArgument)
	}
	return checkRepresentable("amount", amount, maxMoney)
}

func checkRepresentable(field string, v, limit decimal.Decimal) error {
	if !v.Equal(v.Truncate(MoneyScale)) {
		return fmt.Errorf("%s %s has more than %d decimal places: %w", field, v, MoneyScale, ErrInvalidArgument)
	}
	if v.Abs().GreaterThanOrEqual(limit) {
		return fmt.Errorf("%s %s out of range: %w", field, v, ErrInvalidArgument)
	}
	return nil
}
