package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/barrel-register/register"
	"github.com/warp/barrel-register/store/sqlite"
)

// testServer wires the full router against a :memory: store with every
// coordinator pinned to the given clock.
type testServer struct {
	store    *sqlite.Store
	assigner *register.AssignmentCoordinator
	returner *register.ReturnCoordinator
	scanner  *register.OverdueScanner
	router   http.Handler
}

func newTestServer(t *testing.T, at time.Time) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := func() time.Time { return at }
	rate := decimal.NewFromInt(10)

	assigner := register.NewAssignmentCoordinator(store, nil)
	assigner.Clock = clock
	returner := register.NewReturnCoordinator(store, nil, rate)
	returner.Clock = clock
	scanner := register.NewOverdueScanner(store, rate)
	scanner.Clock = clock

	return &testServer{
		store:    store,
		assigner: assigner,
		returner: returner,
		scanner:  scanner,
		router:   NewRouter(NewHandler(store, assigner, returner, scanner)),
	}
}

// setClock repins every time source, simulating the passage of time.
func (ts *testServer) setClock(at time.Time) {
	clock := func() time.Time { return at }
	ts.assigner.Clock = clock
	ts.returner.Clock = clock
	ts.scanner.Clock = clock
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestAPI_FullCustodyFlow(t *testing.T) {
	// GIVEN: A fresh server
	// WHEN:  A holder, two barrels, and an approved request are set up and
	//        the barrels move through assign -> overdue -> return over HTTP
	// THEN:  Every endpoint reflects the ledger state at each step

	day0 := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	ts := newTestServer(t, day0)

	rec := ts.do(t, http.MethodPost, "/api/holders/", CreateHolderRequest{
		ID: "U1", Name: "Arun Nair", Email: "arun@estate.example", Role: "delivery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var assetIDs []string
	for i := 0; i < 2; i++ {
		rec = ts.do(t, http.MethodPost, "/api/assets/", RegisterAssetRequest{
			BarrelType: "latex", CapacityLiters: 200, Material: "hdpe",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		assetIDs = append(assetIDs, decode[AssetDTO](t, rec).ID)
	}
	assert.Equal(t, []string{"BRL-2026-001", "BRL-2026-002"}, assetIDs)

	rec = ts.do(t, http.MethodPost, "/api/requests/", CreateCustodyRequest{
		RequesterID: "U1", Quantity: 2, Purpose: "field collection",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	requestID := decode[CustodyRequestDTO](t, rec).ID

	rec = ts.do(t, http.MethodPost, "/api/requests/"+requestID+"/approve", DecideRequest{ActorID: "admin-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode[CustodyRequestDTO](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/api/register/assign", AssignRequest{
		RequestID: requestID, AssetIDs: assetIDs, ExpectedReturnDays: 30, IssuerID: "admin-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	issued := decode[[]LedgerEntryDTO](t, rec)
	require.Len(t, issued, 2)
	assert.Equal(t, "issued", issued[0].Status)
	assert.Equal(t, "Arun Nair", issued[0].HolderName)

	// The holder's active list shows both barrels.
	rec = ts.do(t, http.MethodGet, "/api/register/users/U1/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LedgerEntryDTO](t, rec), 2)

	// Day 35: the overdue endpoint sweeps before listing.
	ts.setClock(day0.AddDate(0, 0, 35))
	rec = ts.do(t, http.MethodGet, "/api/register/overdue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sweep := decode[OverdueSweepDTO](t, rec)
	assert.Equal(t, 2, sweep.Promoted)
	assert.Equal(t, 2, sweep.Count)
	require.Len(t, sweep.Entries, 2)
	assert.Equal(t, "overdue", sweep.Entries[0].Status)
	assert.Equal(t, 5, sweep.Entries[0].DaysOverdue)

	rec = ts.do(t, http.MethodGet, "/api/register/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatisticsDTO](t, rec)
	assert.Equal(t, 2, stats.CountOverdue)
	assert.Equal(t, "100", stats.TotalPenaltyOutstanding)

	// Day 40: return both barrels.
	ts.setClock(day0.AddDate(0, 0, 40))
	registerIDs := []string{issued[0].RegisterID, issued[1].RegisterID}
	rec = ts.do(t, http.MethodPost, "/api/register/return", ReturnRequest{
		RegisterIDs: registerIDs, ReturnCondition: "GOOD", ReturnerID: "admin-2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	returned := decode[[]LedgerEntryDTO](t, rec)
	require.Len(t, returned, 2)
	for _, e := range returned {
		assert.Equal(t, "returned", e.Status)
		assert.Equal(t, 10, e.DaysOverdue)
		assert.Equal(t, "100", e.PenaltyAmount)
	}

	rec = ts.do(t, http.MethodGet, "/api/assets/"+assetIDs[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "available", decode[AssetDTO](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/register/assets/"+assetIDs[0]+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LedgerEntryDTO](t, rec), 1)

	// The register list filters by status and holder.
	rec = ts.do(t, http.MethodGet, "/api/register/?status=returned&holder=U1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[EntryPageDTO](t, rec)
	assert.Equal(t, 2, page.Total)
}

func TestAPI_AssignConflict_ListsOffendingIDs(t *testing.T) {
	// GIVEN: One barrel already in custody
	// WHEN:  A second request tries to take it together with a free barrel
	// THEN:  400 with the blocked barrel in offending_ids and nothing issued

	day0 := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	ts := newTestServer(t, day0)

	ts.do(t, http.MethodPost, "/api/holders/", CreateHolderRequest{ID: "U1", Name: "Arun Nair"})
	ts.do(t, http.MethodPost, "/api/holders/", CreateHolderRequest{ID: "U2", Name: "Ravi Menon"})
	for i := 0; i < 2; i++ {
		ts.do(t, http.MethodPost, "/api/assets/", RegisterAssetRequest{BarrelType: "latex", CapacityLiters: 200})
	}

	issueOne := func(requester string, quantity int, assets []string) *httptest.ResponseRecorder {
		rec := ts.do(t, http.MethodPost, "/api/requests/", CreateCustodyRequest{RequesterID: requester, Quantity: quantity})
		require.Equal(t, http.StatusCreated, rec.Code)
		id := decode[CustodyRequestDTO](t, rec).ID
		rec = ts.do(t, http.MethodPost, "/api/requests/"+id+"/approve", DecideRequest{ActorID: "admin-1"})
		require.Equal(t, http.StatusOK, rec.Code)
		return ts.do(t, http.MethodPost, "/api/register/assign", AssignRequest{
			RequestID: id, AssetIDs: assets, ExpectedReturnDays: 14, IssuerID: "admin-1",
		})
	}

	rec := issueOne("U1", 1, []string{"BRL-2026-001"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = issueOne("U2", 2, []string{"BRL-2026-001", "BRL-2026-002"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{"BRL-2026-001"}, errResp.OffendingIDs)

	// The free barrel was not issued as part of the failed batch.
	rec = ts.do(t, http.MethodGet, "/api/assets/BRL-2026-002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "available", decode[AssetDTO](t, rec).Status)
}

func TestAPI_ReturnConflict_ListsOffendingIDs(t *testing.T) {
	day0 := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	ts := newTestServer(t, day0)

	ts.do(t, http.MethodPost, "/api/holders/", CreateHolderRequest{ID: "U1", Name: "Arun Nair"})
	ts.do(t, http.MethodPost, "/api/assets/", RegisterAssetRequest{BarrelType: "latex", CapacityLiters: 200})

	rec := ts.do(t, http.MethodPost, "/api/requests/", CreateCustodyRequest{RequesterID: "U1", Quantity: 1})
	requestID := decode[CustodyRequestDTO](t, rec).ID
	ts.do(t, http.MethodPost, "/api/requests/"+requestID+"/approve", DecideRequest{ActorID: "admin-1"})

	rec = ts.do(t, http.MethodPost, "/api/register/assign", AssignRequest{
		RequestID: requestID, AssetIDs: []string{"BRL-2026-001"}, ExpectedReturnDays: 14, IssuerID: "admin-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	registerID := decode[[]LedgerEntryDTO](t, rec)[0].RegisterID

	body := ReturnRequest{RegisterIDs: []string{registerID}, ReturnCondition: "GOOD", ReturnerID: "admin-2"}
	rec = ts.do(t, http.MethodPost, "/api/register/return", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/register/return", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{registerID}, errResp.OffendingIDs)
}

func TestAPI_ErrorStatusMapping(t *testing.T) {
	day0 := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	ts := newTestServer(t, day0)

	// Unknown request id -> 404.
	rec := ts.do(t, http.MethodPost, "/api/register/assign", AssignRequest{
		RequestID: "ghost", AssetIDs: []string{"BRL-2026-001"}, ExpectedReturnDays: 14,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown register id -> 404.
	rec = ts.do(t, http.MethodPost, "/api/register/return", ReturnRequest{
		RegisterIDs: []string{"REG-2026-999999"}, ReturnCondition: "GOOD",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Validation -> 400.
	rec = ts.do(t, http.MethodPost, "/api/register/assign", AssignRequest{
		RequestID: "r1", AssetIDs: nil, ExpectedReturnDays: 14,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Malformed body -> 400.
	req := httptest.NewRequest(http.MethodPost, "/api/register/assign", bytes.NewBufferString("{not json"))
	mal := httptest.NewRecorder()
	ts.router.ServeHTTP(mal, req)
	assert.Equal(t, http.StatusBadRequest, mal.Code)

	// Unknown asset lookup -> 404.
	rec = ts.do(t, http.MethodGet, "/api/assets/BRL-2026-999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Bad date filter -> 400.
	rec = ts.do(t, http.MethodGet, "/api/register/?from=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListFiltersByDate(t *testing.T) {
	day0 := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	ts := newTestServer(t, day0)

	ts.do(t, http.MethodPost, "/api/holders/", CreateHolderRequest{ID: "U1", Name: "Arun Nair"})
	for i := 0; i < 2; i++ {
		ts.do(t, http.MethodPost, "/api/assets/", RegisterAssetRequest{BarrelType: "latex", CapacityLiters: 200})
	}

	for i, day := range []int{0, 10} {
		ts.setClock(day0.AddDate(0, 0, day))
		rec := ts.do(t, http.MethodPost, "/api/requests/", CreateCustodyRequest{RequesterID: "U1", Quantity: 1})
		id := decode[CustodyRequestDTO](t, rec).ID
		ts.do(t, http.MethodPost, "/api/requests/"+id+"/approve", DecideRequest{ActorID: "admin-1"})
		rec = ts.do(t, http.MethodPost, "/api/register/assign", AssignRequest{
			RequestID: id, AssetIDs: []string{fmt.Sprintf("BRL-2026-00%d", i+1)}, ExpectedReturnDays: 30, IssuerID: "admin-1",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// The to= bound is inclusive of the whole day.
	rec := ts.do(t, http.MethodGet, "/api/register/?from=2026-03-01&to=2026-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[EntryPageDTO](t, rec).Total)

	rec = ts.do(t, http.MethodGet, "/api/register/?from=2026-03-01&to=2026-03-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[EntryPageDTO](t, rec).Total)
}
