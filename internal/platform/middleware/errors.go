package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorHandler renders domain errors and echo errors as ErrorBody.
// Internal errors are logged and replaced with a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := resolveError(err)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", requestIDFrom(c)).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		body := ErrorBody{Error: msg, RequestID: requestIDFrom(c)}
		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func resolveError(err error) (int, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Internal != nil {
			if status, msg, ok := fromAppError(httpErr.Internal); ok {
				return status, msg
			}
		}
		return httpErr.Code, fmt.Sprintf("%v", httpErr.Message)
	}
	if status, msg, ok := fromAppError(err); ok {
		return status, msg
	}
	return http.StatusInternalServerError, "internal server error"
}

func fromAppError(err error) (int, string, bool) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return 0, "", false
	}
	return apperrors.HTTPStatus(appErr), apperrors.PublicMessage(appErr), true
}
