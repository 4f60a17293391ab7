package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrAccountNotFound     = errors.New("bank account not found")
	ErrInsufficientBalance = errors.New("balance not sufficient")
	ErrActionNotAllowed    = errors.New("action not allowed")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDuplicateEmail      = errors.New("email already in use")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("refresh token invalid or expired")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
)
