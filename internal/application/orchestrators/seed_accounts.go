package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shepherd/internal/domain/account"
)

// DevSeedDeps holds stores needed for development account seeding.
type DevSeedDeps struct {
	AccountStore devSeedAccountStore
}

type devSeedAccountStore interface {
	Save(ctx context.Context, a account.Account) error
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

type devAccountDef struct {
	Email       string
	DisplayName string
	Role        account.Role
}

func devAccounts() []devAccountDef {
	return []devAccountDef{
		{Email: "admin@shepherd.test", DisplayName: "Office Admin", Role: account.RoleAdmin},
		{Email: "counselor@shepherd.test", DisplayName: "Pastor Sam", Role: account.RoleCounselor},
		{Email: "member@shepherd.test", DisplayName: "Test Member", Role: account.RoleMember},
	}
}

// DevAccountID is the stable id given to a seeded development account, so
// tokens minted for it survive a database reset.
func DevAccountID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

// ExecuteSeedDevAccounts creates one account per role if they don't already exist.
// It is idempotent: accounts that already exist (by email) are skipped.
// PRE: Database is migrated
// POST: an admin, a counselor and a member exist with stable ids
func ExecuteSeedDevAccounts(ctx context.Context, deps DevSeedDeps) ([]account.Account, error) {
	var seeded []account.Account
	created := 0
	for _, def := range devAccounts() {
		if existing, err := deps.AccountStore.GetByEmail(ctx, def.Email); err == nil {
			seeded = append(seeded, existing)
			continue
		}

		acct := account.Account{
			ID:          DevAccountID(def.Email),
			Email:       def.Email,
			DisplayName: def.DisplayName,
			Role:        def.Role,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.AccountStore.Save(ctx, acct); err != nil {
			return nil, fmt.Errorf("seed dev account %s: save: %w", def.Email, err)
		}
		seeded = append(seeded, acct)
		created++
		slog.Info("seed_event", "event", "dev_account_created", "email", def.Email, "role", string(def.Role), "account_id", acct.ID)
	}

	if created > 0 {
		slog.Info("seed_event", "event", "dev_accounts_seeded", "created", created)
	}
	return seeded, nil
}
