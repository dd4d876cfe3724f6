package projections

import (
	"context"

	accountstore "shepherd/internal/adapters/storage/account"
	domainAccount "shepherd/internal/domain/account"
)

// AccountStore interface for directory queries.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (domainAccount.Account, error)
	List(ctx context.Context, filter accountstore.ListFilter) ([]domainAccount.Account, error)
}
