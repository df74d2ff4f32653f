package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header carrying the correlation id across a request
// and its response. Inbound HL7/FHIR clients that already generate one
// (common for hospital integration engines replaying a message) have it
// preserved rather than overwritten.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns a request-scoped correlation id, reusing one supplied by
// the caller in RequestIDHeader or minting a new one. It is set both on the
// echo context (key "request_id", read by Logger and Recovery) and echoed
// back on the response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}
