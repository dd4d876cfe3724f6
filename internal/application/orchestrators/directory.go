package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	accountstore "shepherd/internal/adapters/storage/account"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/account"
	"shepherd/internal/domain/fault"
)

// DirectoryDeps holds dependencies for the directory write orchestrator.
type DirectoryDeps struct {
	Accounts   accountstore.Store
	Authorizer *access.Authorizer
	Now        func() time.Time
}

// UpsertAccountInput carries input for the upsert account orchestrator.
type UpsertAccountInput struct {
	// Actor is nil for operator calls from the command line.
	Actor       *access.Actor
	ID          string
	Email       string
	DisplayName string
	Role        string
}

// ExecuteUpsertAccount creates or replaces a directory entry.
// PRE: Actor is nil (operator) or an ADMIN
// POST: account persisted; CreatedAt kept for existing ids; Conflict when
// another account holds the email
func ExecuteUpsertAccount(ctx context.Context, input UpsertAccountInput, deps DirectoryDeps) (account.Account, error) {
	if input.Actor != nil {
		if _, err := deps.Authorizer.Require(*input.Actor, access.ResourceAccount, access.ActionUpdate); err != nil {
			return account.Account{}, err
		}
	}
	if strings.TrimSpace(input.ID) == "" {
		return account.Account{}, fault.Validation("id", "cannot be empty")
	}
	role, err := account.ParseRole(input.Role)
	if err != nil {
		return account.Account{}, err
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	acc := account.Account{
		ID:          strings.TrimSpace(input.ID),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Role:        role,
		CreatedAt:   now().UTC(),
	}
	existing, err := deps.Accounts.GetByID(ctx, acc.ID)
	switch {
	case err == nil:
		acc.CreatedAt = existing.CreatedAt
	case !errors.Is(err, accountstore.ErrNotFound):
		return account.Account{}, err
	}
	if err := acc.Validate(); err != nil {
		return account.Account{}, err
	}

	if err := deps.Accounts.Save(ctx, acc); err != nil {
		if errors.Is(err, accountstore.ErrEmailTaken) {
			return account.Account{}, fault.Conflict("email already belongs to another account")
		}
		return account.Account{}, err
	}

	slog.Info("account_event", "event", "account_upserted", "account_id", acc.ID, "role", string(acc.Role))
	return acc, nil
}
