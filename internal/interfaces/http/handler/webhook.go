package handler

import (
	"errors"
	"io"
	"net/http"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Signature headers, checked in order
const (
	HeaderStripeSignature  = "Stripe-Signature"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

// DefaultMaxWebhookPayloadSize bounds gateway callbacks
const DefaultMaxWebhookPayloadSize = 64 << 10

// WebhookHandler receives gateway callbacks and exposes the stored
// deliveries for audit and replay.
type WebhookHandler struct {
	BaseHandler
	processor  *billingapp.WebhookProcessor
	maxPayload int64
}

// NewWebhookHandler creates a new WebhookHandler. A non-positive
// maxPayload uses DefaultMaxWebhookPayloadSize.
func NewWebhookHandler(processor *billingapp.WebhookProcessor, maxPayload int64, logger *zap.Logger) *WebhookHandler {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxWebhookPayloadSize
	}
	return &WebhookHandler{
		BaseHandler: newBaseHandler(logger),
		processor:   processor,
		maxPayload:  maxPayload,
	}
}

// Receive handles POST /webhooks/:gateway. Only a bad signature (401), an
// unreadable or oversized body, or an infrastructure failure (500, so the
// gateway retries) are non-2xx; business failures are acknowledged with 200.
func (h *WebhookHandler) Receive(c *gin.Context) {
	gateway := c.Param("gateway")

	// the raw bytes are needed for the signature
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookAckResponse{Error: "failed to read request body"})
		return
	}
	if int64(len(payload)) > h.maxPayload {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookAckResponse{Error: "payload too large"})
		return
	}

	signature := c.GetHeader(HeaderStripeSignature)
	if signature == "" {
		signature = c.GetHeader(HeaderWebhookSignature)
	}

	result, err := h.processor.Process(c.Request.Context(), gateway, payload, signature)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrSignature):
		c.JSON(http.StatusUnauthorized, WebhookAckResponse{Error: "signature verification failed"})
		return
	case errors.Is(err, shared.ErrNotFound):
		c.JSON(http.StatusNotFound, WebhookAckResponse{Error: "unknown gateway"})
		return
	case errors.Is(err, shared.ErrValidation):
		// stored for audit; retrying the same bytes cannot succeed
		c.JSON(http.StatusOK, WebhookAckResponse{Error: "malformed payload"})
		return
	default:
		h.logger.Error("Webhook processing failed",
			zap.String("gateway", gateway),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, WebhookAckResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, toWebhookAck(result))
}

func toWebhookAck(result *billingapp.WebhookResult) WebhookAckResponse {
	ack := WebhookAckResponse{
		Success:   result.Processed,
		EventID:   result.EventID,
		EventType: result.EventType,
		Processed: result.Processed,
		Duplicate: result.Duplicate,
	}
	if result.WebhookEventID != uuid.Nil {
		id := result.WebhookEventID
		ack.WebhookEventID = &id
	}
	if result.Processed {
		ack.Message = result.Message
	} else {
		ack.Error = result.Message
	}
	return ack
}

// List handles GET /webhook-events
func (h *WebhookHandler) List(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	var req WebhookEventListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleError(c, shared.ErrValidation.WithMessage("invalid query parameters"))
		return
	}

	filters := map[string]any{}
	if req.Gateway != "" {
		filters["gateway"] = req.Gateway
	}
	if req.EventType != "" {
		filters["event_type"] = req.EventType
	}
	if req.IsProcessed != nil {
		filters["is_processed"] = *req.IsProcessed
	}
	page, err := h.processor.ListEvents(c.Request.Context(), authCtx, req.Filter(filters))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]WebhookEventResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, toWebhookEventResponse(&page.Items[i], false))
	}
	h.SuccessWithMeta(c, items, dto.PageMeta(*page))
}

// Get handles GET /webhook-events/:id
func (h *WebhookHandler) Get(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	ev, err := h.processor.GetEvent(c.Request.Context(), authCtx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toWebhookEventResponse(ev, true))
}

// Replay handles POST /webhook-events/:id/replay
func (h *WebhookHandler) Replay(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.processor.Replay(c.Request.Context(), authCtx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
