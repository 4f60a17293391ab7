package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/logging"
	"github.com/josh-kwaku/digital-banking/internal/repository"
)

const defaultMaxPageSize = 100

type accountRepo interface {
	Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	Exists(ctx context.Context, id string) (bool, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id string) (*domain.Account, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Account, error)
	ListByCustomer(ctx context.Context, q repository.Querier, customerID int64) ([]domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id string, newBalance decimal.Decimal, newVersion int64) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id string, status domain.AccountStatus, newVersion int64) error
}

type operationRepo interface {
	Create(ctx context.Context, tx *sql.Tx, op *domain.Operation) error
	ListByAccount(ctx context.Context, accountID string) ([]domain.Operation, error)
	PageByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Operation, int64, error)
	Reconcile(ctx context.Context, accountID string) (*domain.Reconciliation, error)
	FindDrift(ctx context.Context) ([]domain.Reconciliation, error)
}

type customerRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Customer, error)
}

type Options struct {
	MaxPageSize  int
	NewAccountID func() string
	Now          func() time.Time
}

type Service struct {
	db           *sql.DB
	accounts     accountRepo
	operations   operationRepo
	customers    customerRepo
	publisher    events.Publisher
	ids          *snowflake.Node
	newAccountID func() string
	now          func() time.Time
	maxPageSize  int
}

func NewService(
	db *sql.DB,
	accounts accountRepo,
	operations operationRepo,
	customers customerRepo,
	publisher events.Publisher,
	ids *snowflake.Node,
	opts Options,
) *Service {
	s := &Service{
		db:           db,
		accounts:     accounts,
		operations:   operations,
		customers:    customers,
		publisher:    publisher,
		ids:          ids,
		newAccountID: opts.NewAccountID,
		now:          opts.Now,
		maxPageSize:  opts.MaxPageSize,
	}
	if s.newAccountID == nil {
		s.newAccountID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.maxPageSize <= 0 {
		s.maxPageSize = defaultMaxPageSize
	}
	if s.publisher == nil {
		s.publisher = &events.Fallback{}
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// publish runs after commit. A failed publish never fails the operation.
func (s *Service) publish(ctx context.Context, routingKey string, body any) {
	if err := s.publisher.Publish(ctx, routingKey, body); err != nil {
		logging.FromContext(ctx).Warn("ledger event publish failed", "routing_key", routingKey, "error", err)
	}
}

func notFoundAs(err, sentinel error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return sentinel
	}
	return err
}

func lockAccountsInOrder(ctx context.Context, tx *sql.Tx, accounts accountRepo, ids ...string) (map[string]*domain.Account, error) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	result := make(map[string]*domain.Account, len(ids))
	for _, id := range sorted {
		acct, err := accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, fmt.Errorf("lockAccountsInOrder: %w", notFoundAs(err, domain.ErrAccountNotFound))
		}
		result[id] = acct
	}
	return result, nil
}
