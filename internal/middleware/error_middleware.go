package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brickly26/iMessage/internal/services"
	"github.com/brickly26/iMessage/internal/transport/httpdto"
	apperrors "github.com/brickly26/iMessage/pkg/errors"
	"github.com/brickly26/iMessage/pkg/logger"
)

// ErrorHandler maps service errors attached via c.Error onto HTTP
// statuses. Handlers only classify input errors themselves; everything
// a service returns flows through here.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, code := classify(err)
		if status >= http.StatusInternalServerError && l != nil {
			l.Errorf("request error: %s", err.Error())
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotAuthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
