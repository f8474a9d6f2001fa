/*
Package register implements the barrel issue register: a transactional
custody ledger for a finite pool of reusable barrels moving between
central inventory, field staff, and customers.

KEY CONCEPTS IN THIS FILE (types.go):
  - Asset: A physical barrel with a status and current holder
  - CustodyRequest: A requester's demand for a quantity of barrels
  - LedgerEntry: One audit record per (asset, custody cycle)
  - Money: Penalty amounts backed by decimal.Decimal

DESIGN PRINCIPLES:
  1. Denormalized snapshots: holder name/email are copied onto the ledger
     entry at issue time and never re-resolved. This is intentional audit
     behavior - the entry must survive holder renaming or deletion.
  2. Append-only ledger: entries are created once, transitioned through
     defined states, and never deleted or re-used for a new cycle.
  3. Precision: penalties use decimal.Decimal, never float.

SEE ALSO:
  - store.go: Persistence interfaces and the unit-of-work contract
  - assign.go / returns.go: The only writers of asset custody edges
  - overdue.go: The only writer of the ISSUED -> OVERDUE edge
*/
package register

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ASSET - A physical barrel
// =============================================================================

type AssetStatus string

const (
	AssetAvailable   AssetStatus = "available"
	AssetInUse       AssetStatus = "in_use"
	AssetMaintenance AssetStatus = "maintenance"
)

// Asset is a physical barrel tracked by a human-readable identifier
// of the form BRL-<year>-<seq>.
//
// INVARIANT: Status == AssetAvailable <=> HolderID == "".
type Asset struct {
	ID       string
	Status   AssetStatus
	HolderID string // empty when in central inventory

	// Set when custody is handed over, cleared on return.
	HolderAssignedAt *time.Time

	// Descriptive attributes, immutable after registration.
	BarrelType     string
	CapacityLiters int
	Material       string

	CreatedAt time.Time
}

// InCustody reports whether the asset is currently held outside inventory.
func (a *Asset) InCustody() bool { return a.Status == AssetInUse }

// =============================================================================
// CUSTODY REQUEST - A requester's demand for barrels
// =============================================================================

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestAssigned  RequestStatus = "assigned"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
)

// CustodyRequest tracks a requester's demand for a quantity of barrels
// through approval and assignment.
//
// INVARIANT: AssignedAssetIDs is non-empty <=> Status is assigned or
// fulfilled, and once assigned len(AssignedAssetIDs) == Quantity.
type CustodyRequest struct {
	ID          string
	RequesterID string
	Quantity    int
	Purpose     string
	Status      RequestStatus

	// Populated by the assignment coordinator, ordered as submitted.
	AssignedAssetIDs []string
	AssignedAt       *time.Time

	// Approval trail.
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - One custody cycle for one asset
// =============================================================================

type EntryStatus string

const (
	EntryIssued   EntryStatus = "issued"
	EntryOverdue  EntryStatus = "overdue"
	EntryReturned EntryStatus = "returned"
	EntryLost     EntryStatus = "lost"
)

// Outstanding reports whether the entry still represents live custody.
func (s EntryStatus) Outstanding() bool { return s == EntryIssued || s == EntryOverdue }

// LedgerEntry is the audit-trail unit: one record per (asset, custody
// cycle), identified by REG-<year>-<seq>. Fields are updated in place
// through defined transitions but the entry is never deleted and never
// re-used for a new cycle.
//
// INVARIANTS:
//   - Status == returned => ActualReturnDate != nil
//   - DaysOverdue > 0    => Status is overdue or returned
//   - PenaltyAmount == DaysOverdue * dailyPenaltyRate
//   - At most one outstanding (issued|overdue) entry exists per asset
type LedgerEntry struct {
	RegisterID string
	RequestID  string
	AssetID    string

	// Snapshots of the requester identity at issue time. Deliberately
	// denormalized; must survive holder renaming and deletion.
	HolderID    string
	HolderName  string
	HolderEmail string

	IssueDate          time.Time
	ExpectedReturnDate time.Time
	ActualReturnDate   *time.Time

	IssuerID   string
	ReturnerID string

	Status          EntryStatus
	ReturnCondition string
	ReturnNotes     string

	DaysOverdue   int
	PenaltyAmount decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// HOLDER - Directory record backing identity resolution
// =============================================================================

// Holder is a party that can take custody of barrels (field staff,
// delivery crew, customer). The ledger snapshots Name/Email from here
// at issue time.
type Holder struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock returns the current time. Coordinators take a Clock so tests can
// pin "now" and exercise overdue math deterministically.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time { return time.Now().UTC() }

// DaysLate computes whole days between expected and actual, rounding any
// partial day up. Equality (or early return) yields zero - the boundary
// favors the holder.
func DaysLate(expected, actual time.Time) int {
	if !actual.After(expected) {
		return 0
	}
	d := actual.Sub(expected)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// Penalty computes the monetary penalty for a number of overdue days.
func Penalty(daysOverdue int, dailyRate decimal.Decimal) decimal.Decimal {
	if daysOverdue <= 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(daysOverdue)))
}
