package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type customerService interface {
	CreateCustomer(ctx context.Context, name, email string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, name, email string) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	SearchCustomers(ctx context.Context, keyword string) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
}

type CustomerHandler struct {
	customers customerService
}

func NewCustomerHandler(customers customerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r customerRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	return errs
}

type customerDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toCustomerDTO(c *domain.Customer) customerDTO {
	return customerDTO{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

func toCustomerDTOs(customers []domain.Customer) []customerDTO {
	dtos := make([]customerDTO, len(customers))
	for i := range customers {
		dtos[i] = toCustomerDTO(&customers[i])
	}
	return dtos
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	c, err := h.customers.CreateCustomer(r.Context(), req.Name, req.Email)
	if err != nil {
		logging.FromContext(r.Context()).Warn("customer creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/customers/%d", c.ID))
	RespondSuccess(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, appErr := int64FromPath(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrCustomerNotFound, nil)
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	c, err := h.customers.UpdateCustomer(r.Context(), id, req.Name, req.Email)
	if err != nil {
		logging.FromContext(r.Context()).Warn("customer update failed", "customer_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toCustomerDTO(c))
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := int64FromPath(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrCustomerNotFound, nil)
		return
	}

	c, err := h.customers.GetCustomer(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toCustomerDTO(c))
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.ListCustomers(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list customers", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toCustomerDTOs(customers))
}

func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.SearchCustomers(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to search customers", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toCustomerDTOs(customers))
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, appErr := int64FromPath(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrCustomerNotFound, nil)
		return
	}

	if err := h.customers.DeleteCustomer(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Warn("customer deletion failed", "customer_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
