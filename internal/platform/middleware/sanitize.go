package middleware

import (
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

const maxHeaderValueSize = 8 << 10

var (
	// Logged only. Queries are parameterized, so these never reach SQL text.
	sqlPatterns    = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1)`)
	scriptPatterns = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize rejects requests carrying path traversal, null bytes, header
// injection or script payloads in query parameters. Rejections are returned
// as InvalidInput errors so HTTPErrorHandler renders them.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			raw := req.URL.RawPath
			if raw == "" {
				raw = path
			}

			if hasTraversal(path) || hasTraversal(raw) {
				return reject(logger, c, "Invalid request path.")
			}
			if hasNullByte(path) || hasNullByte(raw) {
				return reject(logger, c, "Invalid request path.")
			}

			for name, values := range req.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueSize {
						return reject(logger, c, "Header "+name+" is too large.")
					}
					if strings.ContainsAny(v, "\r\n") {
						return reject(logger, c, "Invalid header "+name+".")
					}
				}
			}

			for key, values := range req.URL.Query() {
				if hasNullByte(key) || scriptPatterns.MatchString(key) {
					return reject(logger, c, "Invalid query parameter.")
				}
				for _, v := range values {
					if hasNullByte(v) || scriptPatterns.MatchString(v) {
						return reject(logger, c, "Invalid query parameter "+key+".")
					}
					if sqlPatterns.MatchString(v) {
						logger.Warn().
							Str("param", key).
							Str("path", path).
							Str("remote_ip", c.RealIP()).
							Msg("suspicious query parameter")
					}
				}
			}

			return next(c)
		}
	}
}

func reject(logger zerolog.Logger, c echo.Context, msg string) error {
	logger.Warn().
		Str("request_id", requestIDFrom(c)).
		Str("path", c.Request().URL.Path).
		Str("remote_ip", c.RealIP()).
		Msg("request rejected: " + msg)
	return apperrors.NewInvalidInputError(msg)
}

func hasTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(s, "..") ||
		strings.Contains(lower, "%2e%2e") ||
		strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, 0) || strings.Contains(strings.ToLower(s), "%00")
}
