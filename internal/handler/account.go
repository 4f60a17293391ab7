package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type accountService interface {
	OpenCurrentAccount(ctx context.Context, initialBalance, overDraft decimal.Decimal, customerID int64) (*domain.Account, error)
	OpenSavingAccount(ctx context.Context, initialBalance, interestRate decimal.Decimal, customerID int64) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, includeInactive bool) ([]domain.Account, error)
	ListAccountsForCustomer(ctx context.Context, customerID int64) ([]domain.Account, error)
	ChangeStatus(ctx context.Context, accountID string, target domain.AccountStatus) (*domain.Account, error)
	FullHistory(ctx context.Context, accountID string) ([]domain.Operation, error)
	PagedHistory(ctx context.Context, accountID string, page, size int) (*domain.AccountHistory, error)
}

const (
	defaultHistoryPage = 0
	defaultHistorySize = 5
)

type AccountHandler struct {
	accounts accountService
}

func NewAccountHandler(accounts accountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type openCurrentAccountRequest struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	OverDraft      decimal.Decimal `json:"overdraft"`
	CustomerID     int64           `json:"customer_id"`
}

func (r openCurrentAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.CustomerID <= 0 {
		errs = append(errs, FieldError{Field: "customer_id", Message: "required"})
	}
	if r.InitialBalance.IsNegative() {
		errs = append(errs, FieldError{Field: "initial_balance", Message: "must not be negative"})
	}
	if r.OverDraft.IsNegative() {
		errs = append(errs, FieldError{Field: "overdraft", Message: "must not be negative"})
	}
	return errs
}

type openSavingAccountRequest struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	CustomerID     int64           `json:"customer_id"`
}

func (r openSavingAccountRequest) Validate() []FieldError {
	var errs []FieldError
	if r.CustomerID <= 0 {
		errs = append(errs, FieldError{Field: "customer_id", Message: "required"})
	}
	if r.InitialBalance.IsNegative() {
		errs = append(errs, FieldError{Field: "initial_balance", Message: "must not be negative"})
	}
	if r.InterestRate.IsNegative() {
		errs = append(errs, FieldError{Field: "interest_rate", Message: "must not be negative"})
	}
	return errs
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (r changeStatusRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Status == "" {
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	} else if !domain.AccountStatus(r.Status).IsValid() {
		errs = append(errs, FieldError{Field: "status", Message: "must be CREATED, ACTIVATED, SUSPENDED, or CLOSED"})
	}
	return errs
}

type accountDTO struct {
	ID             string           `json:"id"`
	Type           string           `json:"type"`
	Balance        decimal.Decimal  `json:"balance"`
	InitialBalance decimal.Decimal  `json:"initial_balance"`
	Status         string           `json:"status"`
	OverDraft      *decimal.Decimal `json:"overdraft,omitempty"`
	InterestRate   *decimal.Decimal `json:"interest_rate,omitempty"`
	Customer       *customerDTO     `json:"customer"`
	CreatedAt      time.Time        `json:"created_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	dto := accountDTO{
		ID:             a.ID,
		Type:           string(a.Type),
		Balance:        a.Balance,
		InitialBalance: a.InitialBalance,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
	}
	switch a.Type {
	case domain.AccountTypeCurrent:
		od := a.OverDraft
		dto.OverDraft = &od
	case domain.AccountTypeSaving:
		rate := a.InterestRate
		dto.InterestRate = &rate
	}
	if a.Customer != nil {
		c := toCustomerDTO(a.Customer)
		dto.Customer = &c
	}
	return dto
}

func toAccountDTOs(accounts []domain.Account) []accountDTO {
	dtos := make([]accountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	return dtos
}

type operationDTO struct {
	ID            int64           `json:"id,string"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	OperationDate time.Time       `json:"operation_date"`
	AccountID     string          `json:"account_id"`
}

func toOperationDTO(op *domain.Operation) operationDTO {
	return operationDTO{
		ID:            op.ID,
		Type:          string(op.Type),
		Amount:        op.Amount,
		Description:   op.Description,
		OperationDate: op.OperationDate,
		AccountID:     op.AccountID,
	}
}

func toOperationDTOs(ops []domain.Operation) []operationDTO {
	dtos := make([]operationDTO, len(ops))
	for i := range ops {
		dtos[i] = toOperationDTO(&ops[i])
	}
	return dtos
}

type historyDTO struct {
	AccountID   string          `json:"account_id"`
	Balance     decimal.Decimal `json:"balance"`
	CurrentPage int             `json:"current_page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
	Operations  []operationDTO  `json:"operations"`
}

func (h *AccountHandler) OpenCurrent(w http.ResponseWriter, r *http.Request) {
	var req openCurrentAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	acct, err := h.accounts.OpenCurrentAccount(r.Context(), req.InitialBalance, req.OverDraft, req.CustomerID)
	h.respondOpened(w, r, acct, err)
}

func (h *AccountHandler) OpenSaving(w http.ResponseWriter, r *http.Request) {
	var req openSavingAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	acct, err := h.accounts.OpenSavingAccount(r.Context(), req.InitialBalance, req.InterestRate, req.CustomerID)
	h.respondOpened(w, r, acct, err)
}

func (h *AccountHandler) respondOpened(w http.ResponseWriter, r *http.Request, acct *domain.Account, err error) {
	if err != nil {
		logging.FromContext(r.Context()).Warn("account opening failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/accounts/%s", acct.ID))
	RespondSuccess(w, http.StatusCreated, toAccountDTO(acct))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(acct))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive, fields := boolQuery(r, "includeInactive")
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), includeInactive)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list accounts", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTOs(accounts))
}

func (h *AccountHandler) ListForCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, appErr := int64FromPath(r, "id")
	if appErr != nil {
		RespondAppError(w, ErrCustomerNotFound, nil)
		return
	}

	accounts, err := h.accounts.ListAccountsForCustomer(r.Context(), customerID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTOs(accounts))
}

func (h *AccountHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	acct, err := h.accounts.ChangeStatus(r.Context(), r.PathValue("id"), domain.AccountStatus(req.Status))
	if err != nil {
		logging.FromContext(r.Context()).Warn("account status change failed", "account_id", r.PathValue("id"), "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(acct))
}

func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	ops, err := h.accounts.FullHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toOperationDTOs(ops))
}

func (h *AccountHandler) PageHistory(w http.ResponseWriter, r *http.Request) {
	page, pageErrs := intQuery(r, "page", defaultHistoryPage)
	size, sizeErrs := intQuery(r, "size", defaultHistorySize)
	if fields := append(pageErrs, sizeErrs...); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	hist, err := h.accounts.PagedHistory(r.Context(), r.PathValue("id"), page, size)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, historyDTO{
		AccountID:   hist.AccountID,
		Balance:     hist.Balance,
		CurrentPage: hist.CurrentPage,
		PageSize:    hist.PageSize,
		TotalPages:  hist.TotalPages,
		Operations:  toOperationDTOs(hist.Operations),
	})
}
