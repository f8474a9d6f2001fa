/*
overdue.go - Overdue scanner: promote issued entries past their due date

POLICY (see DESIGN.md):
  The sweep is the single writer of the issued -> overdue transition.
  Reads serve persisted state; the /overdue endpoint self-heals by
  sweeping synchronously before listing. Sweeping twice without elapsed
  time changes nothing.
*/
package register

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// OverdueScanner promotes issued entries past their expected return date
// to overdue and recalculates elapsed-day counters and accrued penalty.
type OverdueScanner struct {
	Store            TxStore
	Clock            Clock
	DailyPenaltyRate decimal.Decimal
}

func NewOverdueScanner(store TxStore, dailyRate decimal.Decimal) *OverdueScanner {
	return &OverdueScanner{Store: store, Clock: SystemClock, DailyPenaltyRate: dailyRate}
}

// Sweep flips every issued entry whose due date has passed to overdue,
// returning how many entries were promoted. Idempotent: entries already
// overdue are not touched (their day counter is refreshed lazily on
// return, using the same formula).
func (sc *OverdueScanner) Sweep(ctx context.Context) (int, error) {
	now := sc.Clock()
	count := 0

	err := sc.Store.WithTx(ctx, func(s Stores) error {
		due, err := s.Ledger().IssuedBefore(ctx, now)
		if err != nil {
			return err
		}
		for _, e := range due {
			// IssuedBefore is strict, so DaysLate is at least 1 here.
			days := DaysLate(e.ExpectedReturnDate, now)
			if err := s.Ledger().MarkOverdue(ctx, e.RegisterID, days, Penalty(days, sc.DailyPenaltyRate), now); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if count > 0 {
		log.Printf("[Overdue] promoted %d entr(ies) to overdue", count)
	}
	return count, nil
}
