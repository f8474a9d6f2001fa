/*
returns.go - Return coordinator: close out a batch of ledger entries

FLOW (single store transaction):
  1. Load every entry; reject the whole batch if any id is missing or any
     entry is already completed, listing every offending register id.
  2. For each entry: daysOverdue = max(0, ceil((actual - expected)/1d)),
     penalty = daysOverdue * daily rate, status -> returned, record
     condition/notes/returner.
  3. Free each underlying asset: status -> available, holder cleared.
  4. Commit as one unit.

Returning exactly on the expected date yields zero days overdue - the
boundary favors the holder.

OWNERSHIP:
  Sole writer of the in_use -> available edge and of entry completion.
*/
package register

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReturnCoordinator orchestrates the reverse mutation: entries completed,
// penalties computed, assets freed.
type ReturnCoordinator struct {
	Store            TxStore
	Notifier         Notifier
	Clock            Clock
	DailyPenaltyRate decimal.Decimal
}

func NewReturnCoordinator(store TxStore, notifier Notifier, dailyRate decimal.Decimal) *ReturnCoordinator {
	return &ReturnCoordinator{Store: store, Notifier: notifier, Clock: SystemClock, DailyPenaltyRate: dailyRate}
}

// Return marks registerIDs as returned in the given condition. Returns
// the updated entries with penalties filled in.
func (c *ReturnCoordinator) Return(ctx context.Context, registerIDs []string, condition, notes, returnerID string) ([]*LedgerEntry, error) {
	if len(registerIDs) == 0 {
		return nil, &ValidationError{Field: "register_ids", Message: "empty batch"}
	}
	if condition == "" {
		return nil, &ValidationError{Field: "return_condition", Message: "required"}
	}

	var updated []*LedgerEntry

	err := c.Store.WithTx(ctx, func(s Stores) error {
		entries, missing, err := s.Ledger().GetEntries(ctx, registerIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %v", ErrEntryNotFound, missing)
		}

		var completed []string
		for _, e := range entries {
			if !e.Status.Outstanding() {
				completed = append(completed, e.RegisterID)
			}
		}
		if len(completed) > 0 {
			return &AlreadyReturnedError{RegisterIDs: completed}
		}

		now := c.Clock()
		for _, e := range entries {
			days := DaysLate(e.ExpectedReturnDate, now)
			at := now
			e.ActualReturnDate = &at
			e.Status = EntryReturned
			e.ReturnCondition = condition
			e.ReturnNotes = notes
			e.ReturnerID = returnerID
			e.DaysOverdue = days
			e.PenaltyAmount = Penalty(days, c.DailyPenaltyRate)
			e.UpdatedAt = now

			if err := s.Ledger().CompleteEntry(ctx, e); err != nil {
				return err
			}
			if err := s.Assets().SetAssetCustody(ctx, e.AssetID, AssetAvailable, "", nil); err != nil {
				return err
			}
			updated = append(updated, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// One batch can span holders; notify each once.
	notified := make(map[string]bool)
	for _, e := range updated {
		if notified[e.HolderID] {
			continue
		}
		notified[e.HolderID] = true
		notifyBestEffort(ctx, c.Notifier, e.HolderID,
			"Return recorded",
			fmt.Sprintf("Barrel %s returned in condition %q", e.AssetID, condition))
	}

	return updated, nil
}
