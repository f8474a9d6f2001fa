/*
assign.go - Assignment coordinator: issue a batch of barrels against a request

FLOW (single store transaction):
  1. Load the request; it must be approved. A request that is already
     assigned is rejected, so re-invoking after success fails cleanly
     instead of double-issuing.
  2. Load all assets; reject the whole batch if any id is missing or any
     asset is not available, listing every offending id.
  3. Snapshot the requester identity (name/email) from the holder
     directory at this instant.
  4. Create one ledger entry per asset (status issued), flip each asset
     to in_use with the requester as holder, mark the request assigned.
  5. Commit. On any failure nothing takes effect and assets stay
     available.

After commit: best-effort notification to the requester with the due
date. Never transactional.

OWNERSHIP:
  This coordinator is the sole writer of ledger entry creation and of the
  asset available -> in_use edge.
*/
package register

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AssignmentCoordinator orchestrates the multi-store mutation that issues
// a batch of assets against an approved custody request.
type AssignmentCoordinator struct {
	Store    TxStore
	Notifier Notifier
	Clock    Clock
}

func NewAssignmentCoordinator(store TxStore, notifier Notifier) *AssignmentCoordinator {
	return &AssignmentCoordinator{Store: store, Notifier: notifier, Clock: SystemClock}
}

// Assign issues assetIDs against requestID with a due date of
// expectedReturnDays from now. Returns the created ledger entries.
func (c *AssignmentCoordinator) Assign(ctx context.Context, requestID string, assetIDs []string, expectedReturnDays int, issuerID string) ([]*LedgerEntry, error) {
	if requestID == "" {
		return nil, &ValidationError{Field: "request_id", Message: "required"}
	}
	if len(assetIDs) == 0 {
		return nil, &ValidationError{Field: "asset_ids", Message: "empty batch"}
	}
	if expectedReturnDays <= 0 {
		return nil, &ValidationError{Field: "expected_return_days", Message: "must be positive"}
	}
	if dup := firstDuplicate(assetIDs); dup != "" {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAssets, dup)
	}

	var entries []*LedgerEntry
	var holderID string

	err := c.Store.WithTx(ctx, func(s Stores) error {
		req, err := s.Requests().GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}
		if req.Status != RequestApproved {
			return &NotAssignableError{RequestID: requestID, Status: req.Status}
		}
		if len(assetIDs) != req.Quantity {
			return &QuantityMismatchError{Requested: req.Quantity, Submitted: len(assetIDs)}
		}

		assets, missing, err := s.Assets().GetAssets(ctx, assetIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %v", ErrAssetNotFound, missing)
		}

		var unavailable []string
		for _, a := range assets {
			if a.Status != AssetAvailable {
				unavailable = append(unavailable, a.ID)
			}
		}
		if len(unavailable) > 0 {
			return &UnavailableAssetsError{AssetIDs: unavailable}
		}

		holder, err := s.Holders().GetHolder(ctx, req.RequesterID)
		if err != nil {
			return err
		}
		if holder == nil {
			return fmt.Errorf("%w: %s", ErrHolderNotFound, req.RequesterID)
		}

		now := c.Clock()
		due := now.AddDate(0, 0, expectedReturnDays)

		for _, a := range assets {
			registerID, err := NextRegisterID(ctx, s, now.Year())
			if err != nil {
				return err
			}
			entry := &LedgerEntry{
				RegisterID:         registerID,
				RequestID:          req.ID,
				AssetID:            a.ID,
				HolderID:           holder.ID,
				HolderName:         holder.Name,
				HolderEmail:        holder.Email,
				IssueDate:          now,
				ExpectedReturnDate: due,
				IssuerID:           issuerID,
				Status:             EntryIssued,
				PenaltyAmount:      decimal.Zero,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
			if err := s.Ledger().AppendEntry(ctx, entry); err != nil {
				return err
			}
			at := now
			if err := s.Assets().SetAssetCustody(ctx, a.ID, AssetInUse, holder.ID, &at); err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		if err := s.Requests().MarkAssigned(ctx, req.ID, assetIDs, now); err != nil {
			return err
		}

		holderID = holder.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyBestEffort(ctx, c.Notifier, holderID,
		"Barrels assigned",
		fmt.Sprintf("%d barrel(s) issued against request %s, due back %s",
			len(entries), requestID, entries[0].ExpectedReturnDate.Format("2006-01-02")))

	return entries, nil
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return ""
}
