package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/platform/auth"
)

// RequestLogEntry is one persisted API request.
type RequestLogEntry struct {
	UserID    *int64
	Message   string
	StartUTC  time.Time
	EndUTC    time.Time
	RequestID string
}

// RequestLogRecorder persists request log entries.
type RequestLogRecorder interface {
	RecordRequest(ctx context.Context, entry RequestLogEntry) error
}

// RequestLogRecorderFunc is a function adapter for RequestLogRecorder.
type RequestLogRecorderFunc func(ctx context.Context, entry RequestLogEntry) error

func (f RequestLogRecorderFunc) RecordRequest(ctx context.Context, entry RequestLogEntry) error {
	return f(ctx, entry)
}

const recordTimeout = 2 * time.Second

// RequestLog records every /api/ request through recorder. Recording is best
// effort: failures are logged and never change the response.
func RequestLog(logger zerolog.Logger, recorder RequestLogRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if recorder == nil || !strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			start := time.Now().UTC()
			err := next(c)
			end := time.Now().UTC()

			status := c.Response().Status
			if err != nil {
				status, _ = resolveError(err)
			}

			entry := RequestLogEntry{
				Message:   fmt.Sprintf("%s %s -> %d", req.Method, req.URL.Path, status),
				StartUTC:  start,
				EndUTC:    end,
				RequestID: requestIDFrom(c),
			}
			if uid := auth.UserIDFromContext(c.Request().Context()); uid > 0 {
				entry.UserID = &uid
			}

			ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), recordTimeout)
			defer cancel()
			if recErr := recorder.RecordRequest(ctx, entry); recErr != nil {
				logger.Error().Err(recErr).
					Str("request_id", entry.RequestID).
					Msg("failed to record request log")
			}

			return err
		}
	}
}
