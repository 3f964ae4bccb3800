package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
)

// ApplyApproval records the approver's decision on one item.
func (r *Request) ApplyApproval(itemID string, dto ApproveItemDTO, actor string, now time.Time) error {
	if r.Status != StatusWaitingForApproval {
		return errWrongStatus("review items of", r.Status)
	}
	idx, ok := r.FindItem(itemID)
	if !ok {
		return ErrItemNotFound
	}
	if !r.Items[idx].Approvable() {
		return internal.NewInvalidTransitionError(
			"item was rejected by the purchaser and cannot be reviewed",
			internal.ErrCodeItemNotApprovable,
		)
	}
	if err := dto.Validate(); err != nil {
		return err
	}

	r.Items[idx] = r.Items[idx].withApproval(dto, actor, now)
	return nil
}

// withApproval replaces approver-owned fields. Repeating a decision without explicit stamps
// keeps the original ones, so retries do not move approvedDate.
func (i Item) withApproval(dto ApproveItemDTO, actor string, now time.Time) Item {
	reason := ""
	if dto.ApprovalStatus == ApprovalRejected {
		reason = strings.TrimSpace(dto.CEORejectionReason)
	}
	repeated := i.ApprovalStatus == dto.ApprovalStatus && i.CEORejectionReason == reason

	i.ApprovalStatus = dto.ApprovalStatus
	i.CEORejectionReason = reason

	if dto.ApprovalStatus == ApprovalPending {
		i.ApprovedBy = ""
		i.ApprovedDate = nil
		return i
	}

	switch {
	case strings.TrimSpace(dto.ApprovedBy) != "":
		i.ApprovedBy = strings.TrimSpace(dto.ApprovedBy)
	case !repeated || i.ApprovedBy == "":
		i.ApprovedBy = actor
	}

	switch {
	case dto.ApprovedDate != nil:
		at := dto.ApprovedDate.UTC()
		i.ApprovedDate = &at
	case !repeated || i.ApprovedDate == nil:
		at := now
		i.ApprovedDate = &at
	}
	return i
}

// CompleteReview closes the request once every approvable item is decided.
func (r *Request) CompleteReview(actor string, now time.Time) error {
	if r.Status != StatusWaitingForApproval {
		return errWrongStatus("complete review of", r.Status)
	}
	if open := r.UnreviewedItems(); open > 0 {
		return internal.NewInvalidTransitionError(
			fmt.Sprintf("%d items still need to be reviewed", open),
			internal.ErrCodeReviewIncomplete,
		)
	}

	r.Status = r.FinalStatus()
	r.ApprovalCompletedBy = actor
	r.ApprovalCompletedDate = &now
	return nil
}
