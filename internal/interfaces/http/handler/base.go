// Package handler holds the gin handlers of the billing API.
package handler

import (
	"net/http"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/interfaces/http/dto"
	"github.com/clubledger/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	logger *zap.Logger
}

func newBaseHandler(logger *zap.Logger) BaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return BaseHandler{logger: logger}
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, meta *dto.Meta) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, meta))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// HandleError translates err into the error envelope. Internal failures are
// logged here since their detail never reaches the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status, body := dto.ErrorResponseFor(err, middleware.GetRequestID(c))
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

// BindJSON binds the body into req, writing a 400 on failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// AuthContext returns the caller's identity, writing a 401 when absent
func (h *BaseHandler) AuthContext(c *gin.Context) (*identity.AuthContext, bool) {
	authCtx, ok := middleware.GetAuthContext(c)
	if !ok {
		h.HandleError(c, shared.ErrUnauthorized)
		return nil, false
	}
	return authCtx, true
}

// ParamUUID parses the path parameter name, writing a 400 on failure
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.HandleError(c, shared.ErrValidation.WithMessage("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, shared.ErrValidation.WithMessage("invalid %s", field)
	}
	return &id, nil
}
