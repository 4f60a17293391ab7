package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type CustomerService struct {
	db        *sql.DB
	customers customerRepository
	accounts  accountDetacher
	publisher events.Publisher
}

func NewCustomerService(db *sql.DB, customers customerRepository, accounts accountDetacher, publisher events.Publisher) *CustomerService {
	if publisher == nil {
		publisher = &events.Fallback{}
	}
	return &CustomerService{db: db, customers: customers, accounts: accounts, publisher: publisher}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, name, email string) (*domain.Customer, error) {
	c := &domain.Customer{
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("CreateCustomer: %w", err)
	}

	if err := s.customers.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("CreateCustomer: %w", err)
	}

	logging.FromContext(ctx).Info("customer created", "customer_id", c.ID)
	return c, nil
}

// UpdateCustomer changes name and email only.
func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, name, email string) (*domain.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateCustomer: %w", customerNotFound(err))
	}

	c.Name, c.Email = name, email
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("UpdateCustomer: %w", err)
	}

	if err := s.customers.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("UpdateCustomer: %w", customerNotFound(err))
	}

	logging.FromContext(ctx).Info("customer updated", "customer_id", c.ID)
	return c, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetCustomer: %w", customerNotFound(err))
	}
	return c, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCustomers: %w", err)
	}
	return customers, nil
}

// SearchCustomers matches name case-insensitively. A blank keyword
// returns every customer.
func (s *CustomerService) SearchCustomers(ctx context.Context, keyword string) ([]domain.Customer, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		customers, err := s.customers.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("SearchCustomers: %w", err)
		}
		return customers, nil
	}

	customers, err := s.customers.SearchByName(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("SearchCustomers: %w", err)
	}
	return customers, nil
}

// DeleteCustomer suspends and detaches the customer's accounts, then
// removes the customer, all in one transaction.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("DeleteCustomer: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.customers.GetForUpdate(ctx, tx, id); err != nil {
		return fmt.Errorf("DeleteCustomer: %w", customerNotFound(err))
	}

	suspended, err := s.accounts.SuspendAndDetach(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("DeleteCustomer: %w", err)
	}

	if err := s.customers.Delete(ctx, tx, id); err != nil {
		return fmt.Errorf("DeleteCustomer: %w", customerNotFound(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("DeleteCustomer: commit: %w", err)
	}

	logging.FromContext(ctx).Info("customer deleted",
		"customer_id", id,
		"suspended_accounts", len(suspended),
	)

	now := time.Now().UTC()
	for _, accountID := range suspended {
		s.publish(ctx, events.RoutingAccountSuspended, events.AccountStatusChanged{
			AccountID: accountID,
			To:        string(domain.AccountStatusSuspended),
			Timestamp: now,
		})
	}
	s.publish(ctx, events.RoutingCustomerDeleted, events.CustomerDeleted{
		CustomerID:        id,
		SuspendedAccounts: suspended,
		Timestamp:         now,
	})
	return nil
}

func (s *CustomerService) publish(ctx context.Context, routingKey string, body any) {
	if err := s.publisher.Publish(ctx, routingKey, body); err != nil {
		logging.FromContext(ctx).Warn("customer event publish failed", "routing_key", routingKey, "error", err)
	}
}

func customerNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrCustomerNotFound
	}
	return err
}
