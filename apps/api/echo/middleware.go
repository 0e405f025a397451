package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/Mabu007/czane-beauty-academy/core/auth"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

// adminMiddleware guards administrative routes with a forced claim refresh:
// a demoted admin is denied even while their token still says admin.
func adminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ids, claims := sessionSources(ctx, svc)
			decision := auth.ResolveAdminRoute(ctx.Request().Context(), ids, claims)

			switch {
			case decision.Allow:
				return next(ctx)
			case decision.Loading:
				return errGateLoading
			case decision.Redirect == auth.SignInPath:
				return errGateDenied
			default:
				return errGateNotAdmin
			}
		}
	}
}
