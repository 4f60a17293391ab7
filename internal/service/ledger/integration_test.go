package ledger_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/repository"
	"github.com/josh-kwaku/digital-banking/internal/service/ledger"
	"github.com/josh-kwaku/digital-banking/internal/testutil"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

var _ events.Publisher = (*recordingPublisher)(nil)

func setupLedgerService(t *testing.T, db *sql.DB) (*ledger.Service, *recordingPublisher) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := ledger.NewService(
		db,
		repository.NewAccountRepository(db),
		repository.NewOperationRepository(db),
		repository.NewCustomerRepository(db),
		pub,
		node,
		ledger.Options{MaxPageSize: 50},
	)
	return svc, pub
}

func assertBalance(t *testing.T, db *sql.DB, accountID, want string) {
	t.Helper()
	got := testutil.GetAccountBalance(t, db, accountID)
	assert.True(t, got.Equal(testutil.Dec(want)), "balance of %s: want %s, got %s", accountID, want, got)
}

// assertOperationsAfterOpening checks that no stored operation predates
// the account it belongs to.
func assertOperationsAfterOpening(t *testing.T, svc *ledger.Service, acct *domain.Account) {
	t.Helper()
	ops, err := svc.FullHistory(context.Background(), acct.ID)
	require.NoError(t, err)
	for _, op := range ops {
		assert.False(t, op.OperationDate.Before(acct.CreatedAt),
			"operation %d dated %s before account opened at %s", op.ID, op.OperationDate, acct.CreatedAt)
	}
}

func TestCredit_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, pub := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	acct := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "500", domain.AccountStatusActivated)

	op, err := svc.Credit(ctx, acct.ID, testutil.Dec("250.50"), "")
	require.NoError(t, err)

	assert.Equal(t, domain.OperationTypeCredit, op.Type)
	assert.Equal(t, domain.DefaultCreditDescription, op.Description)
	assert.Equal(t, acct.ID, op.AccountID)
	assert.True(t, op.Amount.Equal(testutil.Dec("250.50")))
	assert.False(t, op.OperationDate.Before(acct.CreatedAt))

	assertBalance(t, db, acct.ID, "1250.50")
	assertOperationsAfterOpening(t, svc, acct)
	assert.Equal(t, 1, testutil.CountOperations(t, db, acct.ID, domain.OperationTypeCredit))
	assert.Equal(t, []string{events.RoutingOperationRecorded}, pub.Keys())
}

func TestDebit_OverdraftFloor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	acct := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "500", domain.AccountStatusActivated)

	op, err := svc.Debit(ctx, acct.ID, testutil.Dec("1400"), "rent")
	require.NoError(t, err)
	assert.Equal(t, "rent", op.Description)
	assertBalance(t, db, acct.ID, "-400")

	_, err = svc.Debit(ctx, acct.ID, testutil.Dec("200"), "")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assertBalance(t, db, acct.ID, "-400")
	assert.Equal(t, 1, testutil.CountOperations(t, db, acct.ID, domain.OperationTypeDebit))
	assertOperationsAfterOpening(t, svc, acct)
}

func TestDebit_SavingFloor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Sam", "sam@test.com")
	acct := testutil.SeedSavingAccount(t, db, c.ID, "100", "3.5", domain.AccountStatusActivated)

	_, err := svc.Debit(ctx, acct.ID, testutil.Dec("100.01"), "")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assertBalance(t, db, acct.ID, "100")

	op, err := svc.Debit(ctx, acct.ID, testutil.Dec("100"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDebitDescription, op.Description)
	assert.False(t, op.OperationDate.Before(acct.CreatedAt))
	assertBalance(t, db, acct.ID, "0")
	assertOperationsAfterOpening(t, svc, acct)
}

func TestOperations_InvalidAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	acct := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "0", domain.AccountStatusActivated)

	for _, amount := range []string{"0", "-10", "0.00004", "0.00006", "1e20"} {
		_, err := svc.Credit(ctx, acct.ID, testutil.Dec(amount), "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = svc.Debit(ctx, acct.ID, testutil.Dec(amount), "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}

	assertBalance(t, db, acct.ID, "1000")
	assert.Equal(t, 0, testutil.CountOperations(t, db, acct.ID, domain.OperationTypeCredit))
	assert.Equal(t, 0, testutil.CountOperations(t, db, acct.ID, domain.OperationTypeDebit))
}

func TestCredit_BalanceCeiling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	acct := testutil.SeedSavingAccount(t, db, c.ID, "999999999999999", "1", domain.AccountStatusActivated)

	_, err := svc.Credit(ctx, acct.ID, testutil.Dec("1"), "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assertBalance(t, db, acct.ID, "999999999999999")
	assert.Equal(t, 0, testutil.CountOperations(t, db, acct.ID, domain.OperationTypeCredit))

	_, err = svc.Credit(ctx, acct.ID, testutil.Dec("0.9999"), "")
	require.NoError(t, err)
	assertBalance(t, db, acct.ID, "999999999999999.9999")
}

func TestOperations_AccountNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "missing", testutil.Dec("10"), "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Debit(ctx, "missing", testutil.Dec("10"), "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestOperations_StatusGate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")

	tests := []struct {
		status  domain.AccountStatus
		allowed bool
	}{
		{domain.AccountStatusCreated, true},
		{domain.AccountStatusActivated, true},
		{domain.AccountStatusSuspended, false},
		{domain.AccountStatusClosed, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			acct := testutil.SeedCurrentAccount(t, db, c.ID, "100", "0", tc.status)

			_, creditErr := svc.Credit(ctx, acct.ID, testutil.Dec("5"), "")
			_, debitErr := svc.Debit(ctx, acct.ID, testutil.Dec("5"), "")

			if tc.allowed {
				assert.NoError(t, creditErr)
				assert.NoError(t, debitErr)
				return
			}
			assert.ErrorIs(t, creditErr, domain.ErrActionNotAllowed)
			assert.ErrorIs(t, debitErr, domain.ErrActionNotAllowed)
			assertBalance(t, db, acct.ID, "100")
		})
	}
}

func TestTransfer_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, pub := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	a := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "0", domain.AccountStatusActivated)
	b := testutil.SeedSavingAccount(t, db, c.ID, "200", "2", domain.AccountStatusActivated)

	res, err := svc.Transfer(ctx, a.ID, b.ID, testutil.Dec("300"))
	require.NoError(t, err)

	assertBalance(t, db, a.ID, "700")
	assertBalance(t, db, b.ID, "500")

	assert.Equal(t, 1, testutil.CountOperations(t, db, a.ID, domain.OperationTypeDebit))
	assert.Equal(t, 0, testutil.CountOperations(t, db, a.ID, domain.OperationTypeCredit))
	assert.Equal(t, 1, testutil.CountOperations(t, db, b.ID, domain.OperationTypeCredit))
	assert.Equal(t, 0, testutil.CountOperations(t, db, b.ID, domain.OperationTypeDebit))

	assert.True(t, res.Debit.Amount.Equal(testutil.Dec("300")))
	assert.True(t, res.Credit.Amount.Equal(testutil.Dec("300")))
	assert.Equal(t, "Transfer to "+b.ID, res.Debit.Description)
	assert.Equal(t, "Transfer from "+a.ID, res.Credit.Description)

	assert.Contains(t, pub.Keys(), events.RoutingTransferCompleted)
}

func TestTransfer_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	a := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "0", domain.AccountStatusActivated)
	b := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "0", domain.AccountStatusActivated)

	_, err := svc.Transfer(ctx, a.ID, a.ID, testutil.Dec("10"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Transfer(ctx, a.ID, b.ID, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	assertBalance(t, db, a.ID, "1000")
	assertBalance(t, db, b.ID, "1000")
}

func TestTransfer_FailureLeavesBothAccountsUnchanged(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	source := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "100", domain.AccountStatusActivated)
	suspended := testutil.SeedCurrentAccount(t, db, c.ID, "50", "0", domain.AccountStatusSuspended)
	active := testutil.SeedSavingAccount(t, db, c.ID, "50", "1", domain.AccountStatusActivated)

	_, err := svc.Transfer(ctx, source.ID, "missing", testutil.Dec("10"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Transfer(ctx, source.ID, suspended.ID, testutil.Dec("10"))
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)

	_, err = svc.Transfer(ctx, suspended.ID, active.ID, testutil.Dec("10"))
	assert.ErrorIs(t, err, domain.ErrActionNotAllowed)

	_, err = svc.Transfer(ctx, source.ID, active.ID, testutil.Dec("1100.01"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assertBalance(t, db, source.ID, "1000")
	assertBalance(t, db, suspended.ID, "50")
	assertBalance(t, db, active.ID, "50")
	for _, id := range []string{source.ID, suspended.ID, active.ID} {
		assert.Equal(t, 0, testutil.CountOperations(t, db, id, domain.OperationTypeDebit))
		assert.Equal(t, 0, testutil.CountOperations(t, db, id, domain.OperationTypeCredit))
	}
}

func TestDebit_ConcurrentFloor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Sam", "sam@test.com")
	acct := testutil.SeedSavingAccount(t, db, c.ID, "100", "0", domain.AccountStatusActivated)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, acct.ID, testutil.Dec("70"), "")
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes, failures int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
			failures++
		}
	}

	assert.Equal(t, 1, successes, "exactly one debit should succeed")
	assert.Equal(t, 1, failures, "exactly one debit should fail")
	assertBalance(t, db, acct.ID, "30")
}

func TestTransfer_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	a := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "0", domain.AccountStatusActivated)
	b := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "0", domain.AccountStatusActivated)

	const rounds = 10
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)

	for range rounds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, a.ID, b.ID, testutil.Dec("10"))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, b.ID, a.ID, testutil.Dec("10"))
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	assertBalance(t, db, a.ID, "1000")
	assertBalance(t, db, b.ID, "1000")
	assert.Equal(t, rounds, testutil.CountOperations(t, db, a.ID, domain.OperationTypeDebit))
	assert.Equal(t, rounds, testutil.CountOperations(t, db, b.ID, domain.OperationTypeDebit))
}

func TestReconcile_AfterMixedOperations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := setupLedgerService(t, db)
	ctx := context.Background()

	c := testutil.SeedCustomer(t, db, "Anne", "anne@test.com")
	a := testutil.SeedCurrentAccount(t, db, c.ID, "1000", "500", domain.AccountStatusActivated)
	b := testutil.SeedSavingAccount(t, db, c.ID, "0", "1", domain.AccountStatusActivated)

	_, err := svc.Credit(ctx, a.ID, testutil.Dec("125.25"), "")
	require.NoError(t, err)
	_, err = svc.Debit(ctx, a.ID, testutil.Dec("1500"), "")
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, a.ID, b.ID, testutil.Dec("100"))
	require.NoError(t, err)

	for _, id := range []string{a.ID, b.ID} {
		rec, err := svc.Reconcile(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Balanced(), "account %s: stored %s expected %s", id, rec.Stored, rec.Expected)
	}

	drift, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	_, err = db.Exec(`UPDATE accounts SET balance = balance + 1 WHERE id = $1`, b.ID)
	require.NoError(t, err)

	drift, err = svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, b.ID, drift[0].AccountID)
	assert.True(t, drift[0].Expected.Equal(testutil.Dec("100")))

	_, err = svc.Reconcile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
