package server

import (
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/gridpulse/internal/correlation"
)

const correlationHeader = "X-Correlation-ID"

// correlationMiddleware tags every request with a correlation ID. An ID sent
// by the caller is kept so one operation can be traced across instances.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(correlationHeader)
		if id == "" {
			id = correlation.NewID()
		}

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlationHeader, id)

		return next(c)
	}
}
