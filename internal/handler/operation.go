package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
	"github.com/josh-kwaku/digital-banking/internal/service/ledger"
)

type ledgerService interface {
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.Operation, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.Operation, error)
	Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) (*ledger.TransferResult, error)
}

type OperationHandler struct {
	ledger ledgerService
}

func NewOperationHandler(l ledgerService) *OperationHandler {
	return &OperationHandler{ledger: l}
}

type operationRequest struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (r operationRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.AccountID) == "" {
		errs = append(errs, FieldError{Field: "account_id", Message: "required"})
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	return errs
}

type transferRequest struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
}

func (r transferRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.SourceAccountID) == "" {
		errs = append(errs, FieldError{Field: "source_account_id", Message: "required"})
	}
	if strings.TrimSpace(r.DestinationAccountID) == "" {
		errs = append(errs, FieldError{Field: "destination_account_id", Message: "required"})
	} else if r.DestinationAccountID == r.SourceAccountID {
		errs = append(errs, FieldError{Field: "destination_account_id", Message: "must differ from source_account_id"})
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	return errs
}

type transferDTO struct {
	Debit  operationDTO `json:"debit"`
	Credit operationDTO `json:"credit"`
}

func (h *OperationHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, domain.OperationTypeCredit, h.ledger.Credit)
}

func (h *OperationHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.single(w, r, domain.OperationTypeDebit, h.ledger.Debit)
}

type applyFunc func(ctx context.Context, accountID string, amount decimal.Decimal, description string) (*domain.Operation, error)

func (h *OperationHandler) single(w http.ResponseWriter, r *http.Request, opType domain.OperationType, apply applyFunc) {
	var req operationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	op, err := apply(r.Context(), req.AccountID, req.Amount, req.Description)
	if err != nil {
		logging.FromContext(r.Context()).Warn("operation failed",
			"type", opType,
			"account_id", req.AccountID,
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toOperationDTO(op))
}

func (h *OperationHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res, err := h.ledger.Transfer(r.Context(), req.SourceAccountID, req.DestinationAccountID, req.Amount)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer failed",
			"source_account_id", req.SourceAccountID,
			"destination_account_id", req.DestinationAccountID,
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, transferDTO{
		Debit:  toOperationDTO(res.Debit),
		Credit: toOperationDTO(res.Credit),
	})
}
