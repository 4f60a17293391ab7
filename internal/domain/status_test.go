package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransactable(t *testing.T) {
	tests := []struct {
		status  AccountStatus
		allowed bool
	}{
		{AccountStatusCreated, true},
		{AccountStatusActivated, true},
		{AccountStatusSuspended, false},
		{AccountStatusClosed, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			err := CheckTransactable(tc.status)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrActionNotAllowed)
		})
	}
}

func TestInitialStatus(t *testing.T) {
	tests := []struct {
		name     string
		existing []AccountStatus
		want     AccountStatus
	}{
		{"first account", nil, AccountStatusCreated},
		{"only suspended accounts", []AccountStatus{AccountStatusSuspended}, AccountStatusCreated},
		{"only closed accounts", []AccountStatus{AccountStatusClosed, AccountStatusSuspended}, AccountStatusCreated},
		{"pending account exists", []AccountStatus{AccountStatusCreated}, AccountStatusActivated},
		{"active account exists", []AccountStatus{AccountStatusClosed, AccountStatusActivated}, AccountStatusActivated},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			accounts := make([]Account, len(tc.existing))
			for i, s := range tc.existing {
				accounts[i] = Account{Status: s}
			}
			assert.Equal(t, tc.want, InitialStatus(accounts))
		})
	}
}

func TestTransitionTo(t *testing.T) {
	owner := int64(1)

	tests := []struct {
		name    string
		from    AccountStatus
		to      AccountStatus
		owned   bool
		wantErr error
	}{
		{"activate pending", AccountStatusCreated, AccountStatusActivated, true, nil},
		{"suspend active", AccountStatusActivated, AccountStatusSuspended, true, nil},
		{"reactivate suspended", AccountStatusSuspended, AccountStatusActivated, true, nil},
		{"close suspended", AccountStatusSuspended, AccountStatusClosed, false, nil},
		{"reactivate orphan", AccountStatusSuspended, AccountStatusActivated, false, ErrActionNotAllowed},
		{"closed is terminal", AccountStatusClosed, AccountStatusActivated, true, ErrActionNotAllowed},
		{"same state", AccountStatusActivated, AccountStatusActivated, true, ErrActionNotAllowed},
		{"back to created", AccountStatusActivated, AccountStatusCreated, true, ErrActionNotAllowed},
		{"unknown target", AccountStatusActivated, AccountStatus("FROZEN"), true, ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &Account{ID: "acc", Status: tc.from}
			if tc.owned {
				a.CustomerID = &owner
			}

			err := a.TransitionTo(tc.to)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, a.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, a.Status)
		})
	}
}
