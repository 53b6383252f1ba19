// Package handler implements the ops HTTP API of the integration core.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/erpcore/internal/infrastructure/logger"
	"github.com/erp/erpcore/internal/interfaces/http/dto"
	"github.com/erp/erpcore/internal/interfaces/http/middleware"
)

// BaseHandler provides common response helpers
type BaseHandler struct{}

// Success sends a 200 response with data
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.respondError(c, http.StatusBadRequest, dto.ErrorInfo{Code: dto.ErrCodeBadRequest, Message: message})
}

// NotFound sends a 404 response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.respondError(c, http.StatusNotFound, dto.ErrorInfo{Code: dto.ErrCodeNotFound, Message: message})
}

// Error classifies err and sends the matching status. Server-side faults are
// logged with the request-scoped logger.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	status, info := dto.ErrorInfoFrom(err)
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Warn("Integration request failed", zap.String("kind", info.Kind), zap.Error(err))
	}
	_ = c.Error(err)
	h.respondError(c, status, info)
}

func (h *BaseHandler) respondError(c *gin.Context, status int, info dto.ErrorInfo) {
	c.JSON(status, dto.NewErrorResponse(info, middleware.GetRequestID(c)))
}
