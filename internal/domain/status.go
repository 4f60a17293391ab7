package domain

import "fmt"

type AccountStatus string

const (
	AccountStatusCreated   AccountStatus = "CREATED"
	AccountStatusActivated AccountStatus = "ACTIVATED"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

var transitions = map[AccountStatus][]AccountStatus{
	AccountStatusCreated:   {AccountStatusActivated, AccountStatusSuspended, AccountStatusClosed},
	AccountStatusActivated: {AccountStatusSuspended, AccountStatusClosed},
	AccountStatusSuspended: {AccountStatusActivated, AccountStatusClosed},
	AccountStatusClosed:    {},
}

func (s AccountStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsOpen reports whether the status counts as an open account, both for
// the first-account rule and for the default account listing.
func (s AccountStatus) IsOpen() bool {
	return s == AccountStatusCreated || s == AccountStatusActivated
}

func (s AccountStatus) CanTransitionTo(target AccountStatus) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func CheckTransactable(s AccountStatus) error {
	switch s {
	case AccountStatusCreated, AccountStatusActivated:
		return nil
	case AccountStatusSuspended, AccountStatusClosed:
		return fmt.Errorf("account is %s: %w", s, ErrActionNotAllowed)
	default:
		return fmt.Errorf("unknown account status %q: %w", s, ErrActionNotAllowed)
	}
}

// InitialStatus returns CREATED for a customer's first open account and
// ACTIVATED once another CREATED or ACTIVATED account exists.
func InitialStatus(existing []Account) AccountStatus {
	for _, a := range existing {
		if a.Status.IsOpen() {
			return AccountStatusActivated
		}
	}
	return AccountStatusCreated
}
