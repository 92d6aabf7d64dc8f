// internal/api/handlers.go
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "audit-insights/internal/common/errors"
	"audit-insights/internal/common/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Reason    string `json:"reason"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		s.writeError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	req, err := validation.ParseRequestWithDefaults(raw, s.options.Defaults)
	if err != nil {
		s.writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.options.RequestTimeout)
	defer cancel()

	resp, err := s.service.Submit(ctx, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Status(c.Param("auditId"), c.Param("sectionId")))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleReady(c *gin.Context) {
	failures := make(map[string]string)
	for name, check := range s.options.Checks {
		if err := check(c.Request.Context()); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failures": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) writeError(c *gin.Context, err error) {
	stdErr := apperrors.Classify(err)
	status := statusFor(stdErr.Code)

	detail := errorDetail{
		Code:      string(stdErr.Code),
		Reason:    stdErr.Details,
		RequestID: c.GetString(ctxRequestID),
	}
	if field, ok := stdErr.Metadata["field"].(string); ok {
		detail.Field = field
	}
	if reason, ok := stdErr.Metadata["reason"].(string); ok {
		detail.Reason = reason
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("insight request failed", map[string]interface{}{
			"requestId": detail.RequestID,
			"code":      detail.Code,
			"error":     err.Error(),
		})
	}

	c.AbortWithStatusJSON(status, errorBody{Error: detail})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeRemoteCallFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeRemoteCallTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
