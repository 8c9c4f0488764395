package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/ido"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	ProjectID ido.ProjectID     `json:"project_id,omitempty"`
	Account   string            `json:"account,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

var statusByCode = map[ido.ErrorCode]int{
	ido.ErrCodeNotFound:                http.StatusNotFound,
	ido.ErrCodeInvalidArgument:         http.StatusBadRequest,
	ido.ErrCodeInvalidPhaseTransition:  http.StatusConflict,
	ido.ErrCodeNotInPeriod:             http.StatusConflict,
	ido.ErrCodeAlreadyRegistered:       http.StatusConflict,
	ido.ErrCodeNotWhitelisted:          http.StatusForbidden,
	ido.ErrCodeContributionOutOfBounds: http.StatusUnprocessableEntity,
	ido.ErrCodeEligibilityExceeded:     http.StatusUnprocessableEntity,
	ido.ErrCodeBelowMinimumTicketPrice: http.StatusUnprocessableEntity,
	ido.ErrCodeInsufficientBalance:     http.StatusUnprocessableEntity,
	ido.ErrCodeClaimExceedsUnlocked:    http.StatusUnprocessableEntity,
	ido.ErrCodeExternalCallFailed:      http.StatusBadGateway,
	ido.ErrCodeUnexpectedResultCount:   http.StatusInternalServerError,
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var e *ido.Error
	if errors.As(err, &e) {
		if status, ok := statusByCode[e.Code]; ok {
			return status
		}
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// BodyOf builds the response body for err. Errors outside the domain are
// reported as INTERNAL without their message.
func BodyOf(err error) ErrorBody {
	var e *ido.Error
	if errors.As(err, &e) {
		return ErrorBody{
			Code:      string(e.Code),
			Message:   e.Message,
			ProjectID: e.ProjectID,
			Account:   e.Account,
			Details:   e.Details,
		}
	}
	switch StatusOf(err) {
	case http.StatusServiceUnavailable:
		return ErrorBody{Code: "UNAVAILABLE", Message: err.Error()}
	case http.StatusGatewayTimeout:
		return ErrorBody{Code: "TIMEOUT", Message: err.Error()}
	}
	return ErrorBody{Code: "INTERNAL", Message: "internal error"}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, BodyOf(err))
}

func badRequest(field string, err error) error {
	return ido.NewInvalidArgument(field, err.Error())
}
