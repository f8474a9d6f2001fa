/*
store.go - Persistence interfaces and the unit-of-work contract

PURPOSE:
  Defines the boundary between the register core and the database. Three
  logical collections (assets, custody requests, ledger entries) plus the
  holder directory, each independently keyed by its identity field.

ATOMICITY CONTRACT:
  Assignment and return are read-check-then-write sequences across all
  three collections. They MUST run inside a single store transaction:
  TxStore.WithTx hands the coordinator a Stores view bound to one
  transaction, and either everything commits or nothing does. Checking
  availability and then writing in two unguarded steps is incorrect.

DOUBLE-ISSUE GUARD:
  Implementations must reject a second outstanding (issued|overdue)
  ledger entry for the same asset at the storage level, so that two
  racing assignments cannot both commit even if both passed the
  in-transaction availability check.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (partial unique index on the
    outstanding-entry predicate, WAL mode)

SEE ALSO:
  - assign.go / returns.go: The coordinators running inside WithTx
  - ids.go: ID generation, also bound to the same transaction
*/
package register

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE INTERFACES - One per collection
// =============================================================================

// AssetStore holds the current state of every physical barrel.
type AssetStore interface {
	// GetAsset returns nil (no error) when the id does not exist.
	GetAsset(ctx context.Context, id string) (*Asset, error)

	// GetAssets loads a batch in submitted order. Missing ids are reported
	// via the returned missing slice, not as an error.
	GetAssets(ctx context.Context, ids []string) (found []*Asset, missing []string, err error)

	SaveAsset(ctx context.Context, a *Asset) error

	// SetAssetCustody flips availability and holder together so the
	// status<->holder invariant cannot be broken halfway.
	SetAssetCustody(ctx context.Context, assetID string, status AssetStatus, holderID string, at *time.Time) error

	ListAssets(ctx context.Context, status AssetStatus) ([]*Asset, error)

	// MaxAssetSeq returns the highest numeric suffix among asset ids for
	// the year prefix, ignoring malformed ids. Zero when none exist.
	MaxAssetSeq(ctx context.Context, year int) (int, error)
}

// RequestStore holds custody requests and their approval state.
type RequestStore interface {
	GetRequest(ctx context.Context, id string) (*CustodyRequest, error)
	SaveRequest(ctx context.Context, r *CustodyRequest) error

	// MarkAssigned transitions the request to assigned and records which
	// assets were handed over.
	MarkAssigned(ctx context.Context, id string, assetIDs []string, at time.Time) error

	ListRequests(ctx context.Context, status RequestStatus) ([]*CustodyRequest, error)
}

// LedgerStore is the append-only register. Entries are created once and
// mutated only through the defined transitions; there is no delete.
type LedgerStore interface {
	GetEntry(ctx context.Context, registerID string) (*LedgerEntry, error)

	// GetEntries loads a batch in submitted order; missing ids reported
	// separately.
	GetEntries(ctx context.Context, registerIDs []string) (found []*LedgerEntry, missing []string, err error)

	// AppendEntry creates a new entry. Must fail with ErrStoreConflict
	// when another outstanding entry exists for the same asset.
	AppendEntry(ctx context.Context, e *LedgerEntry) error

	// CompleteEntry records a return: status, actual date, condition,
	// notes, returner, overdue counters.
	CompleteEntry(ctx context.Context, e *LedgerEntry) error

	// MarkOverdue flips a single issued entry to overdue with the given
	// day counter and accrued penalty. No-op (no error) if the entry is
	// no longer issued.
	MarkOverdue(ctx context.Context, registerID string, daysOverdue int, penalty decimal.Decimal, at time.Time) error

	// IssuedBefore returns all issued entries whose expected return date
	// is strictly before the cutoff. Feeds the overdue sweep.
	IssuedBefore(ctx context.Context, cutoff time.Time) ([]*LedgerEntry, error)

	// OutstandingByAsset returns the single issued|overdue entry for the
	// asset, or nil.
	OutstandingByAsset(ctx context.Context, assetID string) (*LedgerEntry, error)

	ListEntries(ctx context.Context, f EntryFilter) ([]*LedgerEntry, int, error)
	ActiveByHolder(ctx context.Context, holderID string) ([]*LedgerEntry, error)
	HistoryByAsset(ctx context.Context, assetID string) ([]*LedgerEntry, error)
	Statistics(ctx context.Context) (*Statistics, error)

	// MaxRegisterSeq returns the highest numeric suffix among register ids
	// for the year prefix, ignoring malformed ids.
	MaxRegisterSeq(ctx context.Context, year int) (int, error)
}

// HolderStore is the directory behind the identity-resolver boundary.
type HolderStore interface {
	GetHolder(ctx context.Context, id string) (*Holder, error)
	SaveHolder(ctx context.Context, h *Holder) error
	ListHolders(ctx context.Context) ([]*Holder, error)
}

// =============================================================================
// QUERY SHAPES
// =============================================================================

// EntryFilter selects and pages ledger entries. Zero values mean "no
// filter"; Limit defaults are applied by the query service.
type EntryFilter struct {
	Status   EntryStatus
	HolderID string
	AssetID  string
	From     *time.Time // issue date >= From
	To       *time.Time // issue date <= To
	Page     int        // 1-based
	Limit    int
}

// Statistics is the fleet-level aggregate.
type Statistics struct {
	CountIssued             int
	CountOverdue            int
	CountReturned           int
	TotalPenaltyOutstanding string // decimal string, penalties on unreturned overdue entries
}

// =============================================================================
// UNIT OF WORK
// =============================================================================

// Stores bundles the per-collection interfaces bound to one transaction
// (inside WithTx) or to autocommit (outside).
type Stores interface {
	Assets() AssetStore
	Requests() RequestStore
	Ledger() LedgerStore
	Holders() HolderStore
}

// TxStore executes fn within a single store transaction. If fn returns an
// error the transaction rolls back and none of its writes are visible.
type TxStore interface {
	Stores

	WithTx(ctx context.Context, fn func(Stores) error) error
}
