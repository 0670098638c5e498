package query

import (
	"context"
	"errors"

	"github.com/tair/marketplace-listing/internal/identity/domain"
)

// CheckAdminQuery asks whether a user holds the admin role
type CheckAdminQuery struct {
	UserID string
}

// CheckAdminResult is the answer served to other services
type CheckAdminResult struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

// CheckAdminHandler handles admin role checks
type CheckAdminHandler struct {
	repo domain.UserRepository
}

// NewCheckAdminHandler creates a new check admin handler
func NewCheckAdminHandler(repo domain.UserRepository) *CheckAdminHandler {
	return &CheckAdminHandler{repo: repo}
}

// Handle executes the admin check. Unknown users are reported as non-admin
// rather than as an error so callers can treat the answer as authoritative.
func (h *CheckAdminHandler) Handle(ctx context.Context, q CheckAdminQuery) (*CheckAdminResult, error) {
	user, err := h.repo.FindByID(ctx, q.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &CheckAdminResult{UserID: q.UserID, IsAdmin: false}, nil
		}
		return nil, err
	}

	return &CheckAdminResult{
		UserID:  user.ID,
		IsAdmin: user.IsActive && user.IsAdmin(),
	}, nil
}
