package echoapi

import (
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/access"
)

// chain composes middlewares, the first one being the outermost.
func chain(mws ...echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// adminMiddleware only lets through the principals who may manage users.
func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextPrincipal(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context principal")
			}
			if access.CanManageUsers(p) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// organizationRequired denies the users who are not a member of any organization.
func organizationRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := getContextPrincipal(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context principal")
		}
		if !p.HasOrganization() {
			return errOrganizationRequired
		}
		return next(ctx)
	}
}

// rateLimiter limits the requests per IP address and per minute. A limit <= 0 disables it.
func rateLimiter(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echo.WrapMiddleware(httprate.LimitByIP(perMinute, time.Minute))
}
