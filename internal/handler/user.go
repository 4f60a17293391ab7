package handler

import (
	"context"
	"net/http"

	"github.com/josh-kwaku/digital-banking/internal/auth"
	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/logging"
)

type profileReader interface {
	Profile(ctx context.Context, userID int64) (*domain.User, error)
}

type UserHandler struct {
	users profileReader
}

func NewUserHandler(users profileReader) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the authenticated caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	user, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get user", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toUserDTO(user))
}
