package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

const customerColumns = `id, name, email, created_at`

type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO customers (name, email, created_at) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Email, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", mapCustomerErr(err))
	}
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *domain.Customer) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE customers SET name = $1, email = $2 WHERE id = $3`,
		c.Name, c.Email, c.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", mapCustomerErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Customer, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	customers, err := collectCustomers(rows)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return customers, nil
}

// SearchByName matches keyword as a case-insensitive substring of name.
func (r *CustomerRepository) SearchByName(ctx context.Context, keyword string) ([]domain.Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers
		WHERE name ILIKE $1 ESCAPE '\' ORDER BY id`,
		"%"+escapeLike(keyword)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("SearchByName: %w", err)
	}
	customers, err := collectCustomers(rows)
	if err != nil {
		return nil, fmt.Errorf("SearchByName: %w", err)
	}
	return customers, nil
}

func (r *CustomerRepository) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func collectCustomers(rows *sql.Rows) ([]domain.Customer, error) {
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return customers, nil
}

func scanCustomer(s scanner) (*domain.Customer, error) {
	var c domain.Customer
	if err := s.Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func mapCustomerErr(err error) error {
	if constraint, ok := uniqueConstraint(err); ok && constraint == "customers_email_key" {
		return domain.ErrDuplicateEmail
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
