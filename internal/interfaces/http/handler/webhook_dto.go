package handler

import (
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/interfaces/http/dto"
	"github.com/google/uuid"
)

// WebhookAckResponse is the body returned to payment gateways. It is not
// the standard envelope since gateways only read the status code.
type WebhookAckResponse struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message,omitempty"`
	Error          string     `json:"error,omitempty"`
	WebhookEventID *uuid.UUID `json:"webhook_event_id,omitempty"`
	EventID        string     `json:"event_id,omitempty"`
	EventType      string     `json:"event_type,omitempty"`
	Processed      bool       `json:"processed"`
	Duplicate      bool       `json:"duplicate,omitempty"`
}

// WebhookEventListRequest filters GET /webhook-events
type WebhookEventListRequest struct {
	dto.ListRequest
	Gateway     string `form:"gateway" binding:"max=50"`
	EventType   string `form:"event_type" binding:"max=100"`
	IsProcessed *bool  `form:"is_processed"`
}

// WebhookEventResponse is the wire form of a stored delivery. The raw
// payload is returned only on the single-event endpoint.
type WebhookEventResponse struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     *uuid.UUID `json:"tenant_id,omitempty"`
	Gateway      string     `json:"gateway"`
	EventType    string     `json:"event_type"`
	EventID      *string    `json:"event_id,omitempty"`
	Payload      string     `json:"payload,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	IsProcessed  bool       `json:"is_processed"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Attempts     int        `json:"attempts"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toWebhookEventResponse(ev *billing.WebhookEvent, withPayload bool) WebhookEventResponse {
	resp := WebhookEventResponse{
		ID:           ev.ID,
		TenantID:     ev.TenantID,
		Gateway:      ev.Gateway,
		EventType:    ev.EventType,
		EventID:      ev.EventID,
		IsVerified:   ev.IsVerified,
		IsProcessed:  ev.IsProcessed,
		ProcessedAt:  ev.ProcessedAt,
		ErrorMessage: ev.ErrorMessage,
		Attempts:     ev.Attempts,
		CreatedAt:    ev.CreatedAt,
		UpdatedAt:    ev.UpdatedAt,
	}
	if withPayload {
		resp.Payload = ev.Payload
	}
	return resp
}
