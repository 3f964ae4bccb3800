package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestCreated             = "request.created"
	EventTypeRequestSubmitted           = "request.submitted"
	EventTypeRequestProcessingCompleted = "request.processing_completed"
	EventTypeRequestReviewCompleted     = "request.review_completed"
	EventTypeRequestDeleted             = "request.deleted"
)

// RequestEventTypes lists every lifecycle event a request can emit.
var RequestEventTypes = []string{
	EventTypeRequestCreated,
	EventTypeRequestSubmitted,
	EventTypeRequestProcessingCompleted,
	EventTypeRequestReviewCompleted,
	EventTypeRequestDeleted,
}

type RequestEvent struct {
	BaseEvent
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Actor     string `json:"actor"`
}

func NewRequestEvent(eventType, requestID, status, actor string, at time.Time) *RequestEvent {
	return &RequestEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: at,
			Data: map[string]interface{}{
				"request_id": requestID,
				"status":     status,
				"actor":      actor,
			},
		},
		RequestID: requestID,
		Status:    status,
		Actor:     actor,
	}
}
