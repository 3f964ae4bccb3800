package request

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const maxRequestIDLength = 128

// Domain errors
var (
	ErrRequestNotFound = internal.NewNotFoundError("request not found", internal.ErrCodeRequestNotFound)
	ErrItemNotFound    = internal.NewNotFoundError("item not found in request", internal.ErrCodeItemNotFound)
	ErrRequestExists   = internal.NewConflictError("a request with this id already exists", internal.ErrCodeRequestExists)
	ErrVersionConflict = internal.NewConflictError("request was modified by someone else, reload and try again", internal.ErrCodeVersionConflict)
	ErrCannotModify    = internal.NewInvalidTransitionError("request can no longer be modified", internal.ErrCodeCannotModify)
	ErrNotOwner        = internal.NewForbiddenError("only the requester can change this request", internal.ErrCodeUnauthorizedAccess)
)

// ItemDTO carries the requester-owned fields of an item.
type ItemDTO struct {
	ID                string          `json:"id,omitempty"`
	ItemName          string          `json:"itemName"`
	Quantity          int             `json:"quantity"`
	Justification     string          `json:"justification"`
	SupplierName      string          `json:"supplierName"`
	SupplierReference string          `json:"supplierReference"`
	EstimatedCost     decimal.Decimal `json:"estimatedCost"`
	Priority          Priority        `json:"priority"`
	NeededByDate      string          `json:"neededByDate"`
}

type CreateRequestDTO struct {
	ID     string    `json:"id"`
	Status Status    `json:"status,omitempty"`
	Items  []ItemDTO `json:"items"`
}

// UpdateRequestDTO replaces the items of an editable request. Version, when sent, must match.
type UpdateRequestDTO struct {
	Items   []ItemDTO `json:"items"`
	Version *int64    `json:"version,omitempty"`
}

type ProcessItemDTO struct {
	ItemStatus        ItemStatus       `json:"itemStatus"`
	ActualCost        *decimal.Decimal `json:"actualCost,omitempty"`
	CostProof         string           `json:"costProof,omitempty"`
	CostProofType     CostProofType    `json:"costProofType,omitempty"`
	RejectionReason   string           `json:"rejectionReason,omitempty"`
	SupplierName      string           `json:"supplierName,omitempty"`
	SupplierReference string           `json:"supplierReference,omitempty"`
}

type ApproveItemDTO struct {
	ApprovalStatus     ApprovalStatus `json:"approvalStatus"`
	CEORejectionReason string         `json:"ceoRejectionReason,omitempty"`
	ApprovedBy         string         `json:"approvedBy,omitempty"`
	ApprovedDate       *time.Time     `json:"approvedDate,omitempty"`
}

// ProcessingUpdateDTO is the body of PUT /requests/{id}/process.
type ProcessingUpdateDTO struct {
	ItemID string         `json:"itemId"`
	Data   ProcessItemDTO `json:"data"`
}

// ApprovalUpdateDTO is the body of PUT /requests/{id}/approve.
type ApprovalUpdateDTO struct {
	ItemID string         `json:"itemId"`
	Data   ApproveItemDTO `json:"data"`
}

type TransitionResponse struct {
	Message string   `json:"message"`
	Request *Request `json:"request"`
}

type ListResponse struct {
	Requests []*Request `json:"requests"`
	Total    int        `json:"total"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Validate checks the envelope. Item fields are checked separately since drafts may be incomplete.
func (dto CreateRequestDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("id", dto.ID).Required().MaxLength(maxRequestIDLength).Custom(noWhitespace("id"))
	if dto.Status != "" {
		v.Field("status", string(dto.Status)).OneOf(string(StatusDraft), string(StatusRequested))
	}
	v.Field("items", len(dto.Items)).Custom(atLeastOneItem)
	v.Field("items", dto.Items).Custom(uniqueItemIDs)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto UpdateRequestDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("items", len(dto.Items)).Custom(atLeastOneItem)
	v.Field("items", dto.Items).Custom(uniqueItemIDs)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateItems applies the full field rules to every item; today bounds neededByDate.
func ValidateItems(items []ItemDTO, today time.Time) error {
	v := validation.NewValidator()
	for idx, item := range items {
		prefix := fmt.Sprintf("items[%d].", idx)
		v.Field(prefix+"itemName", item.ItemName).Required().MinLength(2)
		v.Field(prefix+"quantity", item.Quantity).PositiveInt()
		v.Field(prefix+"justification", item.Justification).Required().MinLength(10)
		v.Field(prefix+"supplierReference", item.SupplierReference).URLIfLink()
		v.Field(prefix+"estimatedCost", item.EstimatedCost).NonNegativeDecimal()
		v.Field(prefix+"priority", string(item.Priority)).OneOf(string(PriorityUrgent), string(PriorityMedium), string(PriorityLow))
		v.Field(prefix+"neededByDate", item.NeededByDate).DateNotBefore(today)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateStoredItems re-checks items already on a request, e.g. when a draft is submitted.
func ValidateStoredItems(items []Item, today time.Time) error {
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = ItemDTO{
			ID:                item.ID,
			ItemName:          item.ItemName,
			Quantity:          item.Quantity,
			Justification:     item.Justification,
			SupplierName:      item.SupplierName,
			SupplierReference: item.SupplierReference,
			EstimatedCost:     item.EstimatedCost,
			Priority:          item.Priority,
			NeededByDate:      item.NeededByDate,
		}
	}
	return ValidateItems(dtos, today)
}

func (dto ProcessItemDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("itemStatus", string(dto.ItemStatus)).OneOf(
		string(ItemStatusPending), string(ItemStatusPriced), string(ItemStatusRejected))

	switch dto.ItemStatus {
	case ItemStatusRejected:
		v.Field("rejectionReason", dto.RejectionReason).
			Custom(requiredWithMessage("rejectionReason", "rejection reason is required when rejecting an item"))
	case ItemStatusPriced:
		v.Field("actualCost", dto.ActualCost).PositiveDecimal()
		v.Field("costProof", dto.CostProof).
			Custom(requiredWithMessage("costProof", "cost proof (file or link) is required when pricing an item"))
		v.Field("costProofType", string(dto.CostProofType)).
			OneOf(string(CostProofPDF), string(CostProofImage), string(CostProofLink))
	}
	v.Field("supplierReference", dto.SupplierReference).URLIfLink()

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto ApproveItemDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("approvalStatus", string(dto.ApprovalStatus)).OneOf(
		string(ApprovalPending), string(ApprovalApproved), string(ApprovalRejected))
	if dto.ApprovalStatus == ApprovalRejected {
		v.Field("ceoRejectionReason", dto.CEORejectionReason).
			Custom(requiredWithMessage("ceoRejectionReason", "rejection reason is required when rejecting an item"))
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func requiredWithMessage(field, message string) validation.ValidatorFunc {
	return func(value interface{}) *internal.AppError {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return internal.NewValidationFieldError(field, message, internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

func noWhitespace(field string) validation.ValidatorFunc {
	return func(value interface{}) *internal.AppError {
		if s, ok := value.(string); ok && strings.ContainsAny(s, " \t\r\n") {
			return internal.NewValidationFieldError(field, field+" must not contain whitespace", internal.ErrCodeValidationFailed)
		}
		return nil
	}
}

func atLeastOneItem(value interface{}) *internal.AppError {
	if n, ok := value.(int); ok && n == 0 {
		return internal.NewValidationFieldError("items", "at least one item is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

func uniqueItemIDs(value interface{}) *internal.AppError {
	items, ok := value.([]ItemDTO)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return internal.NewValidationFieldError("items", "duplicate item id "+id, internal.ErrCodeValidationFailed)
		}
		seen[id] = struct{}{}
	}
	return nil
}
