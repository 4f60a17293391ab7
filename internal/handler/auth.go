package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/josh-kwaku/digital-banking/internal/auth"
	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
	"github.com/josh-kwaku/digital-banking/internal/service"
)

type authService interface {
	Register(ctx context.Context, req service.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*service.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*service.Session, error)
	Logout(ctx context.Context, userID int64) error
}

type AuthHandler struct {
	auth authService
}

func NewAuthHandler(a authService) *AuthHandler {
	return &AuthHandler{auth: a}
}

const (
	minUsernameLen = 3
	maxUsernameLen = 20
	minPasswordLen = 6
)

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r registerRequest) Validate() []FieldError {
	var errs []FieldError

	username := strings.TrimSpace(r.Username)
	if username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "required"})
	} else if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		errs = append(errs, FieldError{Field: "username", Message: "must be between 3 and 20 characters"})
	}

	email := strings.TrimSpace(r.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: "must be a valid email address"})
	}

	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	} else if utf8.RuneCountInString(r.Password) < minPasswordLen {
		errs = append(errs, FieldError{Field: "password", Message: "must be at least 6 characters"})
	}

	return errs
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	return errs
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	User         userDTO `json:"user"`
}

type userDTO struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

func toSessionResponse(s *service.Session) sessionResponse {
	return sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		User:         toUserDTO(s.User),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	u, err := h.auth.Register(r.Context(), service.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("registration failed", "username", req.Username, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toUserDTO(u))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSessionResponse(session))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if req.RefreshToken == "" {
		RespondValidationError(w, []FieldError{{Field: "refresh_token", Message: "required"}})
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toSessionResponse(session))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		logging.FromContext(r.Context()).Error("logout failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
