package request

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/core/events"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/google/uuid"
)

// Repository stores request aggregates. Update runs mutate on a fresh copy and persists it
// only if nothing else wrote the request in between; an error from mutate aborts the write.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context) ([]*Request, error)
	Update(ctx context.Context, id string, mutate func(*Request) error) (*Request, error)
	Delete(ctx context.Context, id string, guard func(*Request) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service is the request lifecycle controller.
type Service struct {
	repo      Repository
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the service reading time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

func requireRole(actor *identity.User, role identity.Role) error {
	if actor == nil {
		return internal.ErrAuthenticationRequired
	}
	if !actor.Is(role) {
		return internal.NewForbiddenError(
			fmt.Sprintf("this action requires role: %s", role),
			internal.ErrCodeRoleRequired,
		)
	}
	return nil
}

// canSee applies the row-level filter: requesters only see their own requests.
func canSee(actor *identity.User, req *Request) bool {
	if actor.Role.AtLeast(identity.RolePurchaser) {
		return true
	}
	return req.IsOwnedBy(actor.Email)
}

func (s *Service) Create(ctx context.Context, actor *identity.User, dto CreateRequestDTO) (*Request, error) {
	if actor == nil {
		return nil, internal.ErrAuthenticationRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	status := dto.Status
	if status == "" {
		status = StatusRequested
	}
	now := s.now()
	if status == StatusRequested {
		if err := ValidateItems(dto.Items, now); err != nil {
			return nil, err
		}
	}

	req := &Request{
		ID:            strings.TrimSpace(dto.ID),
		RequesterName: actor.Email,
		RequestDate:   now,
		Status:        status,
		Items:         newItems(dto.Items),
		Version:       1,
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to create request", "error", err, "request_id", req.ID)
		return nil, err
	}

	s.logger.InfoContext(ctx, "request created",
		"request_id", req.ID,
		"actor", actor.Email,
		"status", req.Status,
		"items", len(req.Items))
	s.publish(ctx, events.EventTypeRequestCreated, req, actor)
	return req, nil
}

func (s *Service) Get(ctx context.Context, actor *identity.User, id string) (*Request, error) {
	if actor == nil {
		return nil, internal.ErrAuthenticationRequired
	}
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, req) {
		s.logger.WarnContext(ctx, "request hidden from non-owner", "request_id", id, "actor", actor.Email)
		return nil, ErrRequestNotFound
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, actor *identity.User) ([]*Request, error) {
	if actor == nil {
		return nil, internal.ErrAuthenticationRequired
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list requests", "error", err)
		return nil, err
	}

	visible := make([]*Request, 0, len(all))
	for _, req := range all {
		if canSee(actor, req) {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

// Update replaces the items of a request still inside its edit window.
func (s *Service) Update(ctx context.Context, actor *identity.User, id string, dto UpdateRequestDTO) (*Request, error) {
	if actor == nil {
		return nil, internal.ErrAuthenticationRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.repo.Update(ctx, id, func(req *Request) error {
		if err := s.checkEditable(actor, req); err != nil {
			return err
		}
		if dto.Version != nil && *dto.Version != req.Version {
			return ErrVersionConflict
		}
		if req.Status == StatusRequested {
			if err := ValidateItems(dto.Items, now); err != nil {
				return err
			}
		}
		req.Items = newItems(dto.Items)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request updated", "request_id", id, "actor", actor.Email, "version", updated.Version)
	return updated, nil
}

// Submit sends a draft to the purchasers.
func (s *Service) Submit(ctx context.Context, actor *identity.User, id string) (*Request, error) {
	if actor == nil {
		return nil, internal.ErrAuthenticationRequired
	}

	updated, err := s.repo.Update(ctx, id, func(req *Request) error {
		if !canSee(actor, req) {
			return ErrRequestNotFound
		}
		if !req.IsOwnedBy(actor.Email) {
			return ErrNotOwner
		}
		return req.Submit(s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request submitted", "request_id", id, "actor", actor.Email)
	s.publish(ctx, events.EventTypeRequestSubmitted, updated, actor)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor *identity.User, id string) error {
	if actor == nil {
		return internal.ErrAuthenticationRequired
	}

	var deleted *Request
	err := s.repo.Delete(ctx, id, func(req *Request) error {
		if err := s.checkEditable(actor, req); err != nil {
			return err
		}
		deleted = req
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "request deleted", "request_id", id, "actor", actor.Email)
	s.publish(ctx, events.EventTypeRequestDeleted, deleted, actor)
	return nil
}

func (s *Service) checkEditable(actor *identity.User, req *Request) error {
	if !canSee(actor, req) {
		return ErrRequestNotFound
	}
	if !req.IsOwnedBy(actor.Email) {
		return ErrNotOwner
	}
	if !req.IsEditable() {
		return ErrCannotModify
	}
	return nil
}

// ProcessItem records a purchaser decision on a single item.
func (s *Service) ProcessItem(ctx context.Context, actor *identity.User, id, itemID string, dto ProcessItemDTO) (*Request, error) {
	if err := requireRole(actor, identity.RolePurchaser); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, func(req *Request) error {
		return req.ApplyProcessing(itemID, dto)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "item processing refused", "request_id", id, "item_id", itemID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "item processed",
		"request_id", id,
		"item_id", itemID,
		"actor", actor.Email,
		"item_status", dto.ItemStatus)
	return updated, nil
}

func (s *Service) SubmitForApproval(ctx context.Context, actor *identity.User, id string) (*Request, error) {
	if err := requireRole(actor, identity.RolePurchaser); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, func(req *Request) error {
		return req.SubmitForApproval(actor.Email, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "request submitted for approval", "request_id", id, "actor", actor.Email)
	s.publish(ctx, events.EventTypeRequestProcessingCompleted, updated, actor)
	return updated, nil
}

// ApproveItem records the approver's decision on a single item.
func (s *Service) ApproveItem(ctx context.Context, actor *identity.User, id, itemID string, dto ApproveItemDTO) (*Request, error) {
	if err := requireRole(actor, identity.RoleCEO); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, func(req *Request) error {
		return req.ApplyApproval(itemID, dto, actor.Email, s.now())
	})
	if err != nil {
		s.logger.WarnContext(ctx, "item approval refused", "request_id", id, "item_id", itemID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "item reviewed",
		"request_id", id,
		"item_id", itemID,
		"actor", actor.Email,
		"approval_status", dto.ApprovalStatus)
	return updated, nil
}

func (s *Service) CompleteReview(ctx context.Context, actor *identity.User, id string) (*Request, error) {
	if err := requireRole(actor, identity.RoleCEO); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, func(req *Request) error {
		return req.CompleteReview(actor.Email, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review completed", "request_id", id, "actor", actor.Email, "status", updated.Status)
	s.publish(ctx, events.EventTypeRequestReviewCompleted, updated, actor)
	return updated, nil
}

func (s *Service) publish(ctx context.Context, eventType string, req *Request, actor *identity.User) {
	if s.publisher == nil || req == nil {
		return
	}
	ev := events.NewRequestEvent(eventType, req.ID, string(req.Status), actor.Email, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish lifecycle event", "error", err, "event_type", eventType, "request_id", req.ID)
	}
}

func newItems(dtos []ItemDTO) []Item {
	taken := make(map[string]struct{}, len(dtos))
	for _, dto := range dtos {
		if id := strings.TrimSpace(dto.ID); id != "" {
			taken[id] = struct{}{}
		}
	}

	items := make([]Item, len(dtos))
	for i, dto := range dtos {
		id := strings.TrimSpace(dto.ID)
		if id == "" {
			id = newItemID(taken)
		}
		items[i] = Item{
			ID:                id,
			ItemName:          strings.TrimSpace(dto.ItemName),
			Quantity:          dto.Quantity,
			Justification:     strings.TrimSpace(dto.Justification),
			SupplierName:      strings.TrimSpace(dto.SupplierName),
			SupplierReference: strings.TrimSpace(dto.SupplierReference),
			EstimatedCost:     dto.EstimatedCost,
			Priority:          dto.Priority,
			NeededByDate:      strings.TrimSpace(dto.NeededByDate),
			ItemStatus:        ItemStatusPending,
		}
	}
	return items
}

// newItemID returns an item-<8> id not present in taken and reserves it.
func newItemID(taken map[string]struct{}) string {
	for {
		id := "item-" + uuid.NewString()[:8]
		if _, dup := taken[id]; !dup {
			taken[id] = struct{}{}
			return id
		}
	}
}
