/*
query.go - Read-side aggregation over the register

All operations are read-only and never mutate what they read. Stale
overdue flags are corrected by the scanner, not here.
*/
package register

import "context"

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// QueryService serves read models: filtered pages of entries, per-holder
// active issues, per-asset history, and fleet statistics.
type QueryService struct {
	Store Stores
}

func NewQueryService(store Stores) *QueryService {
	return &QueryService{Store: store}
}

// EntryPage is one page of ledger entries plus paging metadata.
type EntryPage struct {
	Entries []*LedgerEntry
	Total   int
	Page    int
	Limit   int
}

// ListEntries returns a filtered, paginated view of the register.
func (q *QueryService) ListEntries(ctx context.Context, f EntryFilter) (*EntryPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}

	entries, total, err := q.Store.Ledger().ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	return &EntryPage{Entries: entries, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// ActiveIssuesFor returns the holder's outstanding (issued|overdue)
// entries.
func (q *QueryService) ActiveIssuesFor(ctx context.Context, holderID string) ([]*LedgerEntry, error) {
	if holderID == "" {
		return nil, &ValidationError{Field: "holder_id", Message: "required"}
	}
	return q.Store.Ledger().ActiveByHolder(ctx, holderID)
}

// HistoryFor returns every custody cycle for an asset, newest first.
func (q *QueryService) HistoryFor(ctx context.Context, assetID string) ([]*LedgerEntry, error) {
	if assetID == "" {
		return nil, &ValidationError{Field: "asset_id", Message: "required"}
	}
	return q.Store.Ledger().HistoryByAsset(ctx, assetID)
}

// Statistics returns the fleet-level aggregate counts and the total
// penalty outstanding on unreturned overdue entries.
func (q *QueryService) Statistics(ctx context.Context) (*Statistics, error) {
	return q.Store.Ledger().Statistics(ctx)
}
