package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
)

func errWrongStatus(action string, current Status) error {
	if current.IsTerminal() {
		return internal.NewInvalidTransitionError(
			fmt.Sprintf("cannot %s a request that is already closed as %s", action, current),
			internal.ErrCodeInvalidStatus,
		)
	}
	return internal.NewInvalidTransitionError(
		fmt.Sprintf("cannot %s a request in status %s", action, current),
		internal.ErrCodeInvalidStatus,
	)
}

// ApplyProcessing records a purchaser decision on one item. Nothing changes when it fails.
func (r *Request) ApplyProcessing(itemID string, dto ProcessItemDTO) error {
	if r.Status != StatusRequested {
		return errWrongStatus("process items of", r.Status)
	}
	idx, ok := r.FindItem(itemID)
	if !ok {
		return ErrItemNotFound
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	r.Items[idx] = r.Items[idx].withProcessing(dto)
	return nil
}

// withProcessing replaces only purchaser-owned fields and leaves them consistent with the new status.
func (i Item) withProcessing(dto ProcessItemDTO) Item {
	i.ItemStatus = dto.ItemStatus
	switch dto.ItemStatus {
	case ItemStatusRejected:
		i.ActualCost = nil
		i.CostProof = ""
		i.CostProofType = ""
		i.RejectionReason = strings.TrimSpace(dto.RejectionReason)
	case ItemStatusPriced:
		cost := *dto.ActualCost
		i.ActualCost = &cost
		i.CostProof = strings.TrimSpace(dto.CostProof)
		i.CostProofType = dto.CostProofType
		i.RejectionReason = ""
	default:
		i.ActualCost = nil
		i.CostProof = ""
		i.CostProofType = ""
		i.RejectionReason = ""
	}

	if name := strings.TrimSpace(dto.SupplierName); name != "" {
		i.SupplierName = name
	}
	if ref := strings.TrimSpace(dto.SupplierReference); ref != "" {
		i.SupplierReference = ref
	}
	return i
}

// SubmitForApproval moves a fully processed request to the approver.
func (r *Request) SubmitForApproval(actor string, now time.Time) error {
	if r.Status != StatusRequested {
		return errWrongStatus("submit for approval", r.Status)
	}
	if pending := r.PendingItems(); pending > 0 {
		return internal.NewInvalidTransitionError(
			fmt.Sprintf("%d items still need to be processed", pending),
			internal.ErrCodeItemsPending,
		)
	}

	for idx := range r.Items {
		if r.Items[idx].Approvable() {
			r.Items[idx].ApprovalStatus = ApprovalPending
			r.Items[idx].CEORejectionReason = ""
			r.Items[idx].ApprovedBy = ""
			r.Items[idx].ApprovedDate = nil
		}
	}

	r.Status = StatusWaitingForApproval
	r.ProcessedBy = actor
	r.ProcessedDate = &now
	return nil
}

// Submit moves a draft into the purchaser queue once every item is complete.
func (r *Request) Submit(today time.Time) error {
	if r.Status != StatusDraft {
		return errWrongStatus("submit", r.Status)
	}
	if len(r.Items) == 0 {
		return internal.NewValidationFieldError("items", "at least one item is required", internal.ErrCodeValidationFailed)
	}
	if err := ValidateStoredItems(r.Items, today); err != nil {
		return err
	}
	r.Status = StatusRequested
	return nil
}
