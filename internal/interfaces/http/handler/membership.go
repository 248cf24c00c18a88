package handler

import (
	membershipapp "github.com/clubledger/backend/internal/application/membership"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MembershipHandler serves membership lifecycle transitions
type MembershipHandler struct {
	BaseHandler
	lifecycle *membershipapp.LifecycleService
}

// NewMembershipHandler creates a new MembershipHandler
func NewMembershipHandler(lifecycle *membershipapp.LifecycleService, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{BaseHandler: newBaseHandler(logger), lifecycle: lifecycle}
}

// Get handles GET /memberships/:id
func (h *MembershipHandler) Get(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.lifecycle.Get(c.Request.Context(), authCtx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toMembershipResponse(m))
}

// Events handles GET /memberships/:id/events
func (h *MembershipHandler) Events(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	events, err := h.lifecycle.History(c.Request.Context(), authCtx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := make([]LifecycleEventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toLifecycleEventResponse(&events[i]))
	}
	h.Success(c, resp)
}

// Pause handles POST /memberships/:id/pause
func (h *MembershipHandler) Pause(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req PauseMembershipRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.lifecycle.Pause(c.Request.Context(), authCtx, membershipapp.PauseInput{
		MembershipID:  id,
		DurationDays:  req.DurationDays,
		Reason:        req.Reason,
		EffectiveDate: effectiveDate(req.EffectiveDate),
	})
	h.respondTransition(c, result, err)
}

// Resume handles POST /memberships/:id/resume
func (h *MembershipHandler) Resume(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req ResumeMembershipRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	result, err := h.lifecycle.Resume(c.Request.Context(), authCtx, membershipapp.ResumeInput{
		MembershipID:  id,
		Reason:        req.Reason,
		EffectiveDate: effectiveDate(req.EffectiveDate),
	})
	h.respondTransition(c, result, err)
}

// Upgrade handles POST /memberships/:id/upgrade
func (h *MembershipHandler) Upgrade(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req UpgradeMembershipRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.lifecycle.Upgrade(c.Request.Context(), authCtx, membershipapp.UpgradeInput{
		MembershipID:  id,
		NewPlanID:     uuid.MustParse(req.NewPlanID),
		Reason:        req.Reason,
		EffectiveDate: effectiveDate(req.EffectiveDate),
	})
	h.respondTransition(c, result, err)
}

// Cancel handles POST /memberships/:id/cancel
func (h *MembershipHandler) Cancel(c *gin.Context) {
	authCtx, ok := h.AuthContext(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req CancelMembershipRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	result, err := h.lifecycle.Cancel(c.Request.Context(), authCtx, membershipapp.CancelInput{
		MembershipID:    id,
		EffectiveDate:   effectiveDate(req.EffectiveDate),
		Reason:          req.Reason,
		RefundAmount:    req.RefundAmount,
		RefundReference: req.RefundReference,
	})
	h.respondTransition(c, result, err)
}

func (h *MembershipHandler) respondTransition(c *gin.Context, result *membershipapp.TransitionResult, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransitionResponse(result))
}
