package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"}
	ErrInvalidRefresh     = &AppError{http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired"}
	ErrForbidden          = &AppError{http.StatusForbidden, "FORBIDDEN", "Insufficient role for this action"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrCustomerNotFound    = &AppError{http.StatusNotFound, "CUSTOMER_NOT_FOUND", "Customer not found"}
	ErrAccountNotFound     = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrInsufficientBalance = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient balance"}
	ErrActionNotAllowed    = &AppError{http.StatusForbidden, "ACTION_NOT_ALLOWED", "Action not allowed for the account status"}
	ErrInvalidArgument     = &AppError{http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid argument"}
	ErrDuplicateEmail      = &AppError{http.StatusConflict, "DUPLICATE_EMAIL", "Email is already in use"}
	ErrUsernameTaken       = &AppError{http.StatusConflict, "USERNAME_TAKEN", "Username is already taken"}
	ErrVersionConflict     = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyPending  = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
