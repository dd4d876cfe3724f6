package projections

import (
	"context"
	"errors"

	accountstore "shepherd/internal/adapters/storage/account"
	"shepherd/internal/domain/access"
	domainAccount "shepherd/internal/domain/account"
)

// DirectoryDeps holds dependencies for the directory queries.
type DirectoryDeps struct {
	AccountStore AccountStore
	Authorizer   *access.Authorizer
}

// CounselorSummary is the public view of a counselor.
type CounselorSummary struct {
	ID          string
	DisplayName string
}

// GetCounselorsResult carries the query result.
type GetCounselorsResult struct {
	Counselors []CounselorSummary
}

// QueryGetCounselors lists every counselor so members can pick one.
// PRE: actor is authenticated
// POST: Returns id and display name only, ordered like the directory
func QueryGetCounselors(ctx context.Context, actor access.Actor, deps DirectoryDeps) (GetCounselorsResult, error) {
	if _, err := deps.Authorizer.Require(actor, access.ResourceCounselor, access.ActionList); err != nil {
		return GetCounselorsResult{}, err
	}
	accounts, err := deps.AccountStore.List(ctx, accountstore.ListFilter{Role: domainAccount.RoleCounselor})
	if err != nil {
		return GetCounselorsResult{}, err
	}
	out := make([]CounselorSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, CounselorSummary{ID: a.ID, DisplayName: a.DisplayName})
	}
	return GetCounselorsResult{Counselors: out}, nil
}

// GetAccountListQuery carries query parameters.
type GetAccountListQuery struct {
	// Actor is nil for operator calls from the command line.
	Actor  *access.Actor
	Role   domainAccount.Role
	Limit  int
	Offset int
}

// GetAccountListResult carries the query result.
type GetAccountListResult struct {
	Accounts []domainAccount.Account
}

// QueryGetAccountList returns a page of the directory.
// PRE: Actor is nil (operator) or an ADMIN, else Forbidden
// POST: Returns accounts matching Role (all roles when empty); Limit 0 means no limit
func QueryGetAccountList(ctx context.Context, query GetAccountListQuery, deps DirectoryDeps) (GetAccountListResult, error) {
	if query.Actor != nil {
		if _, err := deps.Authorizer.Require(*query.Actor, access.ResourceAccount, access.ActionList); err != nil {
			return GetAccountListResult{}, err
		}
	}
	accounts, err := deps.AccountStore.List(ctx, accountstore.ListFilter{
		Role:   query.Role,
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		return GetAccountListResult{}, err
	}
	return GetAccountListResult{Accounts: accounts}, nil
}

// GetPartiesQuery names the accounts referenced by records the caller is
// about to render.
type GetPartiesQuery struct {
	IDs []string
}

// GetPartiesResult maps account id to account.
type GetPartiesResult struct {
	Accounts map[string]domainAccount.Account
}

// Name returns the display name for id, or "" when the account is gone.
func (r GetPartiesResult) Name(id string) string {
	return r.Accounts[id].DisplayName
}

// Email returns the email for id, or "" when the account is gone.
func (r GetPartiesResult) Email(id string) string {
	return r.Accounts[id].Email
}

// QueryGetParties resolves the member and counselor accounts behind
// appointments and windows. It performs no authorization: the caller has
// already been allowed to see the records carrying these ids.
// PRE: none
// POST: each id is looked up once; ids without an account are left out
func QueryGetParties(ctx context.Context, query GetPartiesQuery, deps DirectoryDeps) (GetPartiesResult, error) {
	out := make(map[string]domainAccount.Account, len(query.IDs))
	seen := make(map[string]bool, len(query.IDs))
	for _, id := range query.IDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		a, err := deps.AccountStore.GetByID(ctx, id)
		if errors.Is(err, accountstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return GetPartiesResult{}, err
		}
		out[id] = a
	}
	return GetPartiesResult{Accounts: out}, nil
}
