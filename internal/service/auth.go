package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/digital-banking/internal/auth"
	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type Session struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

type AuthService struct {
	users         userRepository
	tokens        refreshTokenRepository
	jwtSecret     string
	jwtExpiry     time.Duration
	refreshExpiry time.Duration
	bcryptCost    int
}

func NewAuthService(users userRepository, tokens refreshTokenRepository, jwtSecret string, jwtExpiry, refreshExpiry time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		tokens:        tokens,
		jwtSecret:     jwtSecret,
		jwtExpiry:     jwtExpiry,
		refreshExpiry: refreshExpiry,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

// WithBcryptCost lowers hashing cost for tests.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

// Register creates an enabled USER account.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("Register: hash password: %w", err)
	}

	u := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		Enabled:      true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("Register: %w", err)
	}

	logging.FromContext(ctx).Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Login: %w", domain.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("Login: %w", err)
	}

	if !u.Enabled {
		return nil, fmt.Errorf("Login: user disabled: %w", domain.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("Login: %w", domain.ErrInvalidCredentials)
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}
	u.LastLogin = &now

	session, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("Login: %w", err)
	}

	logging.FromContext(ctx).Info("user logged in", "user_id", u.ID)
	return session, nil
}

// Refresh exchanges a live refresh token for a new access token and a
// rotated refresh token. An expired token is deleted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	stored, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Refresh: %w", domain.ErrInvalidRefreshToken)
		}
		return nil, fmt.Errorf("Refresh: %w", err)
	}

	if stored.Expired(time.Now()) {
		if err := s.tokens.DeleteByID(ctx, stored.ID); err != nil {
			return nil, fmt.Errorf("Refresh: delete expired: %w", err)
		}
		return nil, fmt.Errorf("Refresh: expired: %w", domain.ErrInvalidRefreshToken)
	}

	u, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Refresh: %w", domain.ErrInvalidRefreshToken)
		}
		return nil, fmt.Errorf("Refresh: %w", err)
	}
	if !u.Enabled {
		return nil, fmt.Errorf("Refresh: user disabled: %w", domain.ErrInvalidRefreshToken)
	}

	session, err := s.issueSession(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("Refresh: %w", err)
	}
	return session, nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Profile: %w", err)
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("Logout: %w", err)
	}
	logging.FromContext(ctx).Info("user logged out", "user_id", userID)
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, u *domain.User) (*Session, error) {
	access, err := auth.GenerateToken(auth.Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		return nil, fmt.Errorf("issueSession: %w", err)
	}

	rt := &domain.RefreshToken{
		UserID:    u.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(s.refreshExpiry).Truncate(time.Microsecond),
	}
	if err := s.tokens.Replace(ctx, rt); err != nil {
		return nil, fmt.Errorf("issueSession: %w", err)
	}

	return &Session{AccessToken: access, RefreshToken: rt.Token, User: u}, nil
}
