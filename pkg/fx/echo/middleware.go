package echo

import (
	"errors"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
)

// ErrorHandler logs handler errors that are not already HTTP errors.
func ErrorHandler(log *logging.ZapEventLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			var httpErr *echo.HTTPError
			if err != nil && !errors.As(err, &httpErr) {
				log.Errorw("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
			}
			return err
		}
	}
}
