package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/josh-kwaku/digital-banking/internal/domain"
)

type customerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	Update(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
	SearchByName(ctx context.Context, keyword string) ([]domain.Customer, error)
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
}

type accountDetacher interface {
	SuspendAndDetach(ctx context.Context, tx *sql.Tx, customerID int64) ([]string, error)
}

type userRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}

type refreshTokenRepository interface {
	Replace(ctx context.Context, t *domain.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	DeleteByUserID(ctx context.Context, userID int64) error
	DeleteByID(ctx context.Context, id int64) error
}
