package request

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Costs travel as JSON numbers, as clients send them.
	decimal.MarshalJSONWithoutQuotes = true
}

type Status string

const (
	StatusDraft              Status = "draft"
	StatusRequested          Status = "requested"
	StatusWaitingForApproval Status = "waiting_for_approval"
	StatusApprovalCompleted  Status = "approval_completed"
	StatusProcessed          Status = "processed"
	StatusRejected           Status = "rejected"
)

type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusPriced   ItemStatus = "priced"
	ItemStatusRejected ItemStatus = "rejected"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending_approval"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type CostProofType string

const (
	CostProofPDF   CostProofType = "pdf"
	CostProofImage CostProofType = "image"
	CostProofLink  CostProofType = "link"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Item is one line of a request. Requester, purchaser and approver each own a group of fields.
type Item struct {
	ID                string          `json:"id"`
	ItemName          string          `json:"itemName"`
	Quantity          int             `json:"quantity"`
	Justification     string          `json:"justification"`
	SupplierName      string          `json:"supplierName"`
	SupplierReference string          `json:"supplierReference"`
	EstimatedCost     decimal.Decimal `json:"estimatedCost"`
	Priority          Priority        `json:"priority"`
	NeededByDate      string          `json:"neededByDate"`

	ItemStatus      ItemStatus       `json:"itemStatus"`
	ActualCost      *decimal.Decimal `json:"actualCost,omitempty"`
	CostProof       string           `json:"costProof,omitempty"`
	CostProofType   CostProofType    `json:"costProofType,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`

	ApprovalStatus     ApprovalStatus `json:"approvalStatus,omitempty"`
	CEORejectionReason string         `json:"ceoRejectionReason,omitempty"`
	ApprovedBy         string         `json:"approvedBy,omitempty"`
	ApprovedDate       *time.Time     `json:"approvedDate,omitempty"`
}

// Request is the aggregate stored under request:<id>.
type Request struct {
	ID                    string     `json:"id"`
	RequesterName         string     `json:"requesterName"`
	RequestDate           time.Time  `json:"requestDate"`
	Status                Status     `json:"status"`
	Items                 []Item     `json:"items"`
	ProcessedBy           string     `json:"processedBy,omitempty"`
	ProcessedDate         *time.Time `json:"processedDate,omitempty"`
	ApprovalCompletedBy   string     `json:"approvalCompletedBy,omitempty"`
	ApprovalCompletedDate *time.Time `json:"approvalCompletedDate,omitempty"`
	Version               int64      `json:"version"`
}

func (i Item) IsPending() bool {
	return i.ItemStatus == "" || i.ItemStatus == ItemStatusPending
}

// Approvable items are the ones the purchaser did not reject.
func (i Item) Approvable() bool {
	return i.ItemStatus != ItemStatusRejected
}

func (i Item) Decided() bool {
	return i.ApprovalStatus == ApprovalApproved || i.ApprovalStatus == ApprovalRejected
}

// ProcessingConsistent holds when the purchaser fields agree with itemStatus.
func (i Item) ProcessingConsistent() bool {
	hasReason := strings.TrimSpace(i.RejectionReason) != ""
	hasPrice := i.ActualCost != nil && i.ActualCost.IsPositive() &&
		strings.TrimSpace(i.CostProof) != "" && i.CostProofType != ""

	switch i.ItemStatus {
	case ItemStatusRejected:
		return hasReason && !hasPrice
	case ItemStatusPriced:
		return hasPrice && !hasReason
	default:
		return !hasReason && !hasPrice
	}
}

// ApprovalConsistent holds when a ceo rejection reason is present exactly for rejected items.
func (i Item) ApprovalConsistent() bool {
	hasReason := strings.TrimSpace(i.CEORejectionReason) != ""
	return (i.ApprovalStatus == ApprovalRejected) == hasReason
}

func (r *Request) FindItem(itemID string) (int, bool) {
	for idx := range r.Items {
		if r.Items[idx].ID == itemID {
			return idx, true
		}
	}
	return -1, false
}

func (r *Request) IsOwnedBy(email string) bool {
	return strings.EqualFold(r.RequesterName, email)
}

func (r *Request) PendingItems() int {
	n := 0
	for _, item := range r.Items {
		if item.IsPending() {
			n++
		}
	}
	return n
}

// IsEditable covers the window before any purchaser work has started.
func (r *Request) IsEditable() bool {
	if r.Status != StatusDraft && r.Status != StatusRequested {
		return false
	}
	return r.PendingItems() == len(r.Items)
}

// UnreviewedItems counts approvable items still without a decision.
func (r *Request) UnreviewedItems() int {
	n := 0
	for _, item := range r.Items {
		if item.Approvable() && !item.Decided() {
			n++
		}
	}
	return n
}

func (r *Request) CanCompleteReview() bool {
	return r.UnreviewedItems() == 0
}

// FinalStatus is computed over approvable items only. With nothing left to approve the
// request counts as rejected.
func (r *Request) FinalStatus() Status {
	approved, rejected := 0, 0
	for _, item := range r.Items {
		if !item.Approvable() {
			continue
		}
		switch item.ApprovalStatus {
		case ApprovalApproved:
			approved++
		case ApprovalRejected:
			rejected++
		}
	}

	switch {
	case approved > 0 && rejected == 0:
		return StatusApprovalCompleted
	case approved == 0:
		return StatusRejected
	default:
		return StatusProcessed
	}
}

// IsTerminal reports whether the review is over and no transition can follow.
func (s Status) IsTerminal() bool {
	return s == StatusApprovalCompleted || s == StatusProcessed || s == StatusRejected
}
