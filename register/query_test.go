package register_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/barrel-register/register"
	"github.com/warp/barrel-register/store/sqlite"
)

// seedRegister builds a small register: U1 holds one issued and one overdue
// barrel, U2 returned one. Returns the store, the fixed day0, and the three
// entries in creation order (issued, overdue, returned).
func seedRegister(t *testing.T) (*sqlite.Store, time.Time, []*register.LedgerEntry) {
	t.Helper()
	store := newTestStore(t)
	ctx := context.Background()
	day0 := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

	seedHolder(t, store, "U1", "Meena Pillai")
	seedHolder(t, store, "U2", "Ravi Menon")
	for _, id := range []string{"BRL-2026-001", "BRL-2026-002", "BRL-2026-003"} {
		seedAsset(t, store, id)
	}

	assigner := register.NewAssignmentCoordinator(store, nil)

	// U1: long window, stays issued.
	assigner.Clock = clockAt(day0)
	req := seedApprovedRequest(t, store, "U1", 1)
	issued, err := assigner.Assign(ctx, req, []string{"BRL-2026-001"}, 60, "admin-1")
	require.NoError(t, err)

	// U1: short window, will go overdue.
	assigner.Clock = clockAt(day0.AddDate(0, 0, 1))
	req = seedApprovedRequest(t, store, "U1", 1)
	late, err := assigner.Assign(ctx, req, []string{"BRL-2026-002"}, 7, "admin-1")
	require.NoError(t, err)

	// U2: issued then returned on time.
	assigner.Clock = clockAt(day0.AddDate(0, 0, 2))
	req = seedApprovedRequest(t, store, "U2", 1)
	done, err := assigner.Assign(ctx, req, []string{"BRL-2026-003"}, 7, "admin-1")
	require.NoError(t, err)

	returner := register.NewReturnCoordinator(store, nil, rate10())
	returner.Clock = clockAt(day0.AddDate(0, 0, 5))
	_, err = returner.Return(ctx, []string{done[0].RegisterID}, "GOOD", "", "admin-2")
	require.NoError(t, err)

	scanner := register.NewOverdueScanner(store, rate10())
	scanner.Clock = clockAt(day0.AddDate(0, 0, 10))
	promoted, err := scanner.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, promoted)

	return store, day0, []*register.LedgerEntry{issued[0], late[0], done[0]}
}

func TestListEntries_StatusAndHolderFilters(t *testing.T) {
	store, _, entries := seedRegister(t)
	q := register.NewQueryService(store)
	ctx := context.Background()

	page, err := q.ListEntries(ctx, register.EntryFilter{Status: register.EntryOverdue})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, entries[1].RegisterID, page.Entries[0].RegisterID)

	page, err = q.ListEntries(ctx, register.EntryFilter{HolderID: "U1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = q.ListEntries(ctx, register.EntryFilter{HolderID: "U1", Status: register.EntryIssued})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, entries[0].RegisterID, page.Entries[0].RegisterID)
}

func TestListEntries_DateRangeAndPagination(t *testing.T) {
	store, day0, _ := seedRegister(t)
	q := register.NewQueryService(store)
	ctx := context.Background()

	// Only the two entries issued on day 1 and day 2.
	from := day0.AddDate(0, 0, 1)
	to := day0.AddDate(0, 0, 2)
	page, err := q.ListEntries(ctx, register.EntryFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	// Page size 2: three entries total, newest first.
	page, err = q.ListEntries(ctx, register.EntryFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Entries, 2)
	assert.True(t, !page.Entries[0].IssueDate.Before(page.Entries[1].IssueDate), "newest first")

	page, err = q.ListEntries(ctx, register.EntryFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)

	// Defaults applied when page/limit are zero or out of range.
	page, err = q.ListEntries(ctx, register.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.Limit)

	page, err = q.ListEntries(ctx, register.EntryFilter{Limit: 10000})
	require.NoError(t, err)
	assert.Equal(t, 500, page.Limit)
}

func TestActiveIssuesFor(t *testing.T) {
	store, _, _ := seedRegister(t)
	q := register.NewQueryService(store)
	ctx := context.Background()

	active, err := q.ActiveIssuesFor(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, active, 2, "issued and overdue both count as active")

	active, err = q.ActiveIssuesFor(ctx, "U2")
	require.NoError(t, err)
	assert.Empty(t, active, "returned entries are not active")

	active, err = q.ActiveIssuesFor(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = q.ActiveIssuesFor(ctx, "")
	assert.True(t, errors.Is(err, register.ErrValidation))
}

func TestHistoryFor_TracksEveryCycle(t *testing.T) {
	// GIVEN: A barrel issued and returned twice
	// WHEN:  Its history is queried
	// THEN:  Both cycles appear, newest first

	store := newTestStore(t)
	ctx := context.Background()
	day0 := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

	seedHolder(t, store, "U1", "Meena Pillai")
	seedAsset(t, store, "BRL-2026-001")

	assigner := register.NewAssignmentCoordinator(store, nil)
	returner := register.NewReturnCoordinator(store, nil, rate10())

	for cycle := 0; cycle < 2; cycle++ {
		at := day0.AddDate(0, 0, cycle*10)
		assigner.Clock = clockAt(at)
		req := seedApprovedRequest(t, store, "U1", 1)
		entries, err := assigner.Assign(ctx, req, []string{"BRL-2026-001"}, 7, "admin-1")
		require.NoError(t, err)

		returner.Clock = clockAt(at.AddDate(0, 0, 5))
		_, err = returner.Return(ctx, []string{entries[0].RegisterID}, "GOOD", "", "admin-2")
		require.NoError(t, err)
	}

	q := register.NewQueryService(store)
	history, err := q.HistoryFor(ctx, "BRL-2026-001")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IssueDate.After(history[1].IssueDate), "newest first")

	_, err = q.HistoryFor(ctx, "")
	assert.True(t, errors.Is(err, register.ErrValidation))
}

func TestStatistics(t *testing.T) {
	store, _, _ := seedRegister(t)
	q := register.NewQueryService(store)

	stats, err := q.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CountIssued)
	assert.Equal(t, 1, stats.CountOverdue)
	assert.Equal(t, 1, stats.CountReturned)

	// The overdue entry was issued day 1 with a 7-day window (due day 8)
	// and swept day 10: 2 days overdue, penalty 20.
	assert.Equal(t, "20", stats.TotalPenaltyOutstanding)
}
