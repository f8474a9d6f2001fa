/*
requests.go - Custody request intake and approval

The assignment coordinator only consumes approved requests; this service
is the write path that produces them. Request ids are opaque UUIDs -
only barrels and register entries carry the human-readable year-scoped
identifiers.
*/
package register

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RequestService handles the request lifecycle up to approval. The
// assignment coordinator takes over from there.
type RequestService struct {
	Store TxStore
	Clock Clock
}

func NewRequestService(store TxStore) *RequestService {
	return &RequestService{Store: store, Clock: SystemClock}
}

// Create raises a pending custody request for quantity barrels.
func (rs *RequestService) Create(ctx context.Context, requesterID string, quantity int, purpose string) (*CustodyRequest, error) {
	if requesterID == "" {
		return nil, &ValidationError{Field: "requester_id", Message: "required"}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Message: "must be positive"}
	}

	holder, err := rs.Store.Holders().GetHolder(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if holder == nil {
		return nil, fmt.Errorf("%w: %s", ErrHolderNotFound, requesterID)
	}

	now := rs.Clock()
	req := &CustodyRequest{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Quantity:    quantity,
		Purpose:     purpose,
		Status:      RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := rs.Store.Requests().SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Approve moves a pending request to approved.
func (rs *RequestService) Approve(ctx context.Context, requestID, approverID string) (*CustodyRequest, error) {
	return rs.transition(ctx, requestID, RequestPending, func(req *CustodyRequest) {
		req.Status = RequestApproved
		req.ApprovedBy = approverID
		at := rs.Clock()
		req.ApprovedAt = &at
	})
}

// Reject moves a pending request to rejected with a reason.
func (rs *RequestService) Reject(ctx context.Context, requestID, approverID, reason string) (*CustodyRequest, error) {
	return rs.transition(ctx, requestID, RequestPending, func(req *CustodyRequest) {
		req.Status = RequestRejected
		req.ApprovedBy = approverID
		req.RejectionReason = reason
	})
}

// Fulfill closes out an assigned request once delivery completes.
func (rs *RequestService) Fulfill(ctx context.Context, requestID string) (*CustodyRequest, error) {
	return rs.transition(ctx, requestID, RequestAssigned, func(req *CustodyRequest) {
		req.Status = RequestFulfilled
	})
}

func (rs *RequestService) transition(ctx context.Context, requestID string, want RequestStatus, apply func(*CustodyRequest)) (*CustodyRequest, error) {
	var out *CustodyRequest
	err := rs.Store.WithTx(ctx, func(s Stores) error {
		req, err := s.Requests().GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
		}
		if req.Status != want {
			return &NotAssignableError{RequestID: requestID, Status: req.Status}
		}
		apply(req)
		req.UpdatedAt = rs.Clock()
		if err := s.Requests().SaveRequest(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
