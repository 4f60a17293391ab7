package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type Customer struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// Validate trims name and email in place before checking them.
func (c *Customer) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)

	if c.Name == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidArgument)
	}
	if c.Email == "" {
		return fmt.Errorf("email is required: %w", ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("email %q is malformed: %w", c.Email, ErrInvalidArgument)
	}
	return nil
}
