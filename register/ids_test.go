package register_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/barrel-register/register"
)

func TestFormatIDs(t *testing.T) {
	assert.Equal(t, "BRL-2026-001", register.FormatAssetID(2026, 1))
	assert.Equal(t, "BRL-2026-042", register.FormatAssetID(2026, 42))
	assert.Equal(t, "BRL-2026-1234", register.FormatAssetID(2026, 1234), "width grows past padding")
	assert.Equal(t, "REG-2026-000001", register.FormatRegisterID(2026, 1))
	assert.Equal(t, "REG-2026-000999", register.FormatRegisterID(2026, 999))
}

func TestParseSeq(t *testing.T) {
	n, ok := register.ParseSeq("BRL-2026-007", register.AssetIDPrefix, 2026)
	require.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = register.ParseSeq("REG-2026-000042", register.RegisterIDPrefix, 2026)
	require.True(t, ok)
	assert.Equal(t, 42, n)

	// Malformed or mismatched ids are skipped, never an error.
	for _, id := range []string{
		"BRL-2025-007", // other year
		"REG-2026-001", // other prefix
		"BRL-2026-",    // empty suffix
		"BRL-2026-x7",  // non-numeric
		"garbage",
		"",
	} {
		_, ok := register.ParseSeq(id, register.AssetIDPrefix, 2026)
		assert.False(t, ok, "id %q should not parse", id)
	}
}

func TestMaxSeq_IgnoresMalformed(t *testing.T) {
	ids := []string{
		"BRL-2026-003",
		"BRL-2026-010",
		"BRL-2025-099", // previous year, out of scope
		"BRL-2026-bad",
		"LEGACY-17",
	}
	assert.Equal(t, 10, register.MaxSeq(ids, register.AssetIDPrefix, 2026))
	assert.Equal(t, 0, register.MaxSeq(nil, register.AssetIDPrefix, 2026))
}

func TestRegisterIDs_DenseAndSequential(t *testing.T) {
	// GIVEN: An approved request for three barrels
	// WHEN:  Assigned in one batch
	// THEN:  Register ids are dense and sequential starting at 000001

	store := newTestStore(t)
	day0 := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)

	seedHolder(t, store, "U1", "Meena Pillai")
	assetIDs := []string{"BRL-2026-001", "BRL-2026-002", "BRL-2026-003"}
	for _, id := range assetIDs {
		seedAsset(t, store, id)
	}
	requestID := seedApprovedRequest(t, store, "U1", 3)

	assigner := register.NewAssignmentCoordinator(store, nil)
	assigner.Clock = clockAt(day0)

	entries, err := assigner.Assign(context.Background(), requestID, assetIDs, 14, "admin-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, e := range entries {
		assert.Equal(t, register.FormatRegisterID(2026, i+1), e.RegisterID)
	}
}

func TestAssetIDs_ConcurrentRegistration_AllDistinct(t *testing.T) {
	// GIVEN: 20 concurrent fleet registrations
	// WHEN:  Each stamps its id inside its own transaction
	// THEN:  All succeed and all 20 ids are distinct

	store := newTestStore(t)
	fleet := register.NewFleetService(store)
	fleet.Clock = clockAt(time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC))

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := fleet.Register(context.Background(), "latex", 200, fmt.Sprintf("hdpe-%d", i))
			if assert.NoError(t, err) {
				ids <- a.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
