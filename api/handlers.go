/*
handlers.go - HTTP API handlers for the barrel issue register

ENDPOINTS:
  Register (the core):
    POST /api/register/assign              Issue barrels against a request
    POST /api/register/return              Record a batch return
    GET  /api/register/overdue             Sweep + list overdue entries
    GET  /api/register/users/{id}/active   Outstanding entries per holder
    GET  /api/register/assets/{id}/history Custody history per barrel
    GET  /api/register/statistics          Fleet aggregates
    GET  /api/register/                    Filtered page of entries

  Intake and fleet:
    POST /api/requests                     Raise a custody request
    POST /api/requests/{id}/approve        Approve a pending request
    POST /api/requests/{id}/reject         Reject a pending request
    GET  /api/requests                     List requests (filter by status)
    POST /api/assets                       Register a barrel
    GET  /api/assets                       List barrels (filter by status)
    POST /api/holders, GET /api/holders    Holder directory

ERROR HANDLING:
  - 400: Validation errors and batch conflicts, with every offending id
  - 404: Missing request/asset/entry/holder
  - 409: Retryable store contention
  - 500: Everything else
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/barrel-register/register"
)

// Handler holds the register services behind the HTTP surface.
type Handler struct {
	Assigner *register.AssignmentCoordinator
	Returner *register.ReturnCoordinator
	Scanner  *register.OverdueScanner
	Query    *register.QueryService
	Requests *register.RequestService
	Fleet    *register.FleetService
	Store    register.Stores
}

// NewHandler wires the full service set against one store.
func NewHandler(store register.TxStore, assigner *register.AssignmentCoordinator, returner *register.ReturnCoordinator, scanner *register.OverdueScanner) *Handler {
	return &Handler{
		Assigner: assigner,
		Returner: returner,
		Scanner:  scanner,
		Query:    register.NewQueryService(store),
		Requests: register.NewRequestService(store),
		Fleet:    register.NewFleetService(store),
		Store:    store,
	}
}

// =============================================================================
// REGISTER HANDLERS (the core)
// =============================================================================

// Assign issues a batch of barrels against an approved request.
// POST /api/register/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entries, err := h.Assigner.Assign(r.Context(), req.RequestID, req.AssetIDs, req.ExpectedReturnDays, req.IssuerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// Return records a batch return with penalties.
// POST /api/register/return
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entries, err := h.Returner.Return(r.Context(), req.RegisterIDs, req.ReturnCondition, req.ReturnNotes, req.ReturnerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// Overdue sweeps then lists everything currently overdue.
// GET /api/register/overdue
func (h *Handler) Overdue(w http.ResponseWriter, r *http.Request) {
	promoted, err := h.Scanner.Sweep(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	page, err := h.Query.ListEntries(r.Context(), register.EntryFilter{Status: register.EntryOverdue})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OverdueSweepDTO{
		Promoted: promoted,
		Count:    page.Total,
		Entries:  toEntryDTOs(page.Entries),
	})
}

// ActiveForUser lists a holder's outstanding entries.
// GET /api/register/users/{id}/active
func (h *Handler) ActiveForUser(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Query.ActiveIssuesFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// AssetHistory lists every custody cycle of a barrel, newest first.
// GET /api/register/assets/{id}/history
func (h *Handler) AssetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Query.HistoryFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// Statistics returns fleet aggregates.
// GET /api/register/statistics
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Query.Statistics(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatisticsDTO{
		CountIssued:             stats.CountIssued,
		CountOverdue:            stats.CountOverdue,
		CountReturned:           stats.CountReturned,
		TotalPenaltyOutstanding: stats.TotalPenaltyOutstanding,
	})
}

// ListEntries returns a filtered page of the register.
// GET /api/register/?status=&holder=&asset=&from=&to=&page=&limit=
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := register.EntryFilter{
		Status:   register.EntryStatus(q.Get("status")),
		HolderID: q.Get("holder"),
		AssetID:  q.Get("asset"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		// Inclusive upper bound: entries issued any time that day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.To = &t
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	page, err := h.Query.ListEntries(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryPageDTO{
		Entries: toEntryDTOs(page.Entries),
		Total:   page.Total,
		Page:    page.Page,
		Limit:   page.Limit,
	})
}

// =============================================================================
// REQUEST INTAKE HANDLERS
// =============================================================================

// CreateRequest raises a custody request.
// POST /api/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateCustodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := h.Requests.Create(r.Context(), req.RequesterID, req.Quantity, req.Purpose)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ApproveRequest approves a pending request.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Requests.Approve(r.Context(), chi.URLParam(r, "id"), req.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// RejectRequest rejects a pending request.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Requests.Reject(r.Context(), chi.URLParam(r, "id"), req.ActorID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// GetRequest returns one custody request.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Store.Requests().GetRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Request not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListRequests lists custody requests, optionally by status.
// GET /api/requests?status=
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.Requests().ListRequests(r.Context(),
		register.RequestStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]CustodyRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FLEET HANDLERS
// =============================================================================

// RegisterAsset adds a barrel to the fleet.
// POST /api/assets
func (h *Handler) RegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asset, err := h.Fleet.Register(r.Context(), req.BarrelType, req.CapacityLiters, req.Material)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssetDTO(asset))
}

// GetAsset returns one barrel.
// GET /api/assets/{id}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.Store.Assets().GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "Asset not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAssetDTO(asset))
}

// ListAssets lists barrels, optionally by status.
// GET /api/assets?status=
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.Store.Assets().ListAssets(r.Context(),
		register.AssetStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AssetDTO, len(assets))
	for i, a := range assets {
		dtos[i] = toAssetDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HOLDER HANDLERS
// =============================================================================

// CreateHolder adds a holder to the directory.
// POST /api/holders
func (h *Handler) CreateHolder(w http.ResponseWriter, r *http.Request) {
	var req CreateHolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	holder := &register.Holder{
		ID:        req.ID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.Holders().SaveHolder(r.Context(), holder); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolderDTO(holder))
}

// ListHolders lists the directory.
// GET /api/holders
func (h *Handler) ListHolders(w http.ResponseWriter, r *http.Request) {
	holders, err := h.Store.Holders().ListHolders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]HolderDTO, len(holders))
	for i, hd := range holders {
		dtos[i] = toHolderDTO(hd)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps register errors onto HTTP statuses and surfaces
// offending id lists from batch conflicts.
func writeDomainError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var unavailable *register.UnavailableAssetsError
	var returned *register.AlreadyReturnedError
	switch {
	case errors.As(err, &unavailable):
		resp.OffendingIDs = unavailable.AssetIDs
	case errors.As(err, &returned):
		resp.OffendingIDs = returned.RegisterIDs
	}

	status := http.StatusInternalServerError
	switch {
	case register.IsNotFound(err):
		status = http.StatusNotFound
	case register.IsClientError(err):
		status = http.StatusBadRequest
	case register.IsRetryable(err):
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}
