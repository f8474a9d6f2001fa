/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

Validation happens in handlers and the domain layer; DTOs are pure data
carriers.
*/
package api

import (
	"time"

	"github.com/warp/barrel-register/register"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// AssignRequest runs the assignment coordinator.
type AssignRequest struct {
	RequestID          string   `json:"request_id"`
	AssetIDs           []string `json:"asset_ids"`
	ExpectedReturnDays int      `json:"expected_return_days"`
	IssuerID           string   `json:"issuer_id"`
}

// ReturnRequest runs the return coordinator.
type ReturnRequest struct {
	RegisterIDs     []string `json:"register_ids"`
	ReturnCondition string   `json:"return_condition"`
	ReturnNotes     string   `json:"return_notes"`
	ReturnerID      string   `json:"returner_id"`
}

// CreateCustodyRequest raises a new custody request.
type CreateCustodyRequest struct {
	RequesterID string `json:"requester_id"`
	Quantity    int    `json:"quantity"`
	Purpose     string `json:"purpose"`
}

// DecideRequest approves or rejects a pending request.
type DecideRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason,omitempty"`
}

// RegisterAssetRequest adds a barrel to the fleet.
type RegisterAssetRequest struct {
	BarrelType     string `json:"barrel_type"`
	CapacityLiters int    `json:"capacity_liters"`
	Material       string `json:"material"`
}

// CreateHolderRequest adds a holder to the directory.
type CreateHolderRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LedgerEntryDTO is a register entry in API responses.
type LedgerEntryDTO struct {
	RegisterID         string  `json:"register_id"`
	RequestID          string  `json:"request_id"`
	AssetID            string  `json:"asset_id"`
	HolderID           string  `json:"holder_id"`
	HolderName         string  `json:"holder_name"`
	HolderEmail        string  `json:"holder_email,omitempty"`
	IssueDate          string  `json:"issue_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date,omitempty"`
	IssuerID           string  `json:"issuer_id,omitempty"`
	ReturnerID         string  `json:"returner_id,omitempty"`
	Status             string  `json:"status"`
	ReturnCondition    string  `json:"return_condition,omitempty"`
	ReturnNotes        string  `json:"return_notes,omitempty"`
	DaysOverdue        int     `json:"days_overdue"`
	PenaltyAmount      string  `json:"penalty_amount"`
}

// EntryPageDTO is one page of register entries.
type EntryPageDTO struct {
	Entries []LedgerEntryDTO `json:"entries"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

// OverdueSweepDTO is the result of a sweep plus the current overdue list.
type OverdueSweepDTO struct {
	Promoted int              `json:"promoted"`
	Count    int              `json:"count"`
	Entries  []LedgerEntryDTO `json:"entries"`
}

// StatisticsDTO is the fleet-level aggregate.
type StatisticsDTO struct {
	CountIssued             int    `json:"count_issued"`
	CountOverdue            int    `json:"count_overdue"`
	CountReturned           int    `json:"count_returned"`
	TotalPenaltyOutstanding string `json:"total_penalty_outstanding"`
}

// AssetDTO is a barrel in API responses.
type AssetDTO struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	HolderID         string  `json:"holder_id,omitempty"`
	HolderAssignedAt *string `json:"holder_assigned_at,omitempty"`
	BarrelType       string  `json:"barrel_type"`
	CapacityLiters   int     `json:"capacity_liters"`
	Material         string  `json:"material,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// CustodyRequestDTO is a custody request in API responses.
type CustodyRequestDTO struct {
	ID               string   `json:"id"`
	RequesterID      string   `json:"requester_id"`
	Quantity         int      `json:"quantity"`
	Purpose          string   `json:"purpose,omitempty"`
	Status           string   `json:"status"`
	AssignedAssetIDs []string `json:"assigned_asset_ids,omitempty"`
	AssignedAt       *string  `json:"assigned_at,omitempty"`
	ApprovedBy       string   `json:"approved_by,omitempty"`
	RejectionReason  string   `json:"rejection_reason,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

// HolderDTO is a directory record.
type HolderDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ErrorResponse is the error envelope. OffendingIDs carries every id that
// blocked a batch operation so the caller can fix the batch in one pass.
type ErrorResponse struct {
	Error        string   `json:"error"`
	Details      string   `json:"details,omitempty"`
	OffendingIDs []string `json:"offending_ids,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEntryDTO(e *register.LedgerEntry) LedgerEntryDTO {
	dto := LedgerEntryDTO{
		RegisterID:         e.RegisterID,
		RequestID:          e.RequestID,
		AssetID:            e.AssetID,
		HolderID:           e.HolderID,
		HolderName:         e.HolderName,
		HolderEmail:        e.HolderEmail,
		IssueDate:          e.IssueDate.Format(time.RFC3339),
		ExpectedReturnDate: e.ExpectedReturnDate.Format(time.RFC3339),
		IssuerID:           e.IssuerID,
		ReturnerID:         e.ReturnerID,
		Status:             string(e.Status),
		ReturnCondition:    e.ReturnCondition,
		ReturnNotes:        e.ReturnNotes,
		DaysOverdue:        e.DaysOverdue,
		PenaltyAmount:      e.PenaltyAmount.String(),
	}
	if e.ActualReturnDate != nil {
		s := e.ActualReturnDate.Format(time.RFC3339)
		dto.ActualReturnDate = &s
	}
	return dto
}

func toEntryDTOs(entries []*register.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toAssetDTO(a *register.Asset) AssetDTO {
	dto := AssetDTO{
		ID:             a.ID,
		Status:         string(a.Status),
		HolderID:       a.HolderID,
		BarrelType:     a.BarrelType,
		CapacityLiters: a.CapacityLiters,
		Material:       a.Material,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
	if a.HolderAssignedAt != nil {
		s := a.HolderAssignedAt.Format(time.RFC3339)
		dto.HolderAssignedAt = &s
	}
	return dto
}

func toRequestDTO(r *register.CustodyRequest) CustodyRequestDTO {
	dto := CustodyRequestDTO{
		ID:               r.ID,
		RequesterID:      r.RequesterID,
		Quantity:         r.Quantity,
		Purpose:          r.Purpose,
		Status:           string(r.Status),
		AssignedAssetIDs: r.AssignedAssetIDs,
		ApprovedBy:       r.ApprovedBy,
		RejectionReason:  r.RejectionReason,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
	if r.AssignedAt != nil {
		s := r.AssignedAt.Format(time.RFC3339)
		dto.AssignedAt = &s
	}
	return dto
}

func toHolderDTO(h *register.Holder) HolderDTO {
	return HolderDTO{ID: h.ID, Name: h.Name, Email: h.Email, Role: h.Role}
}
