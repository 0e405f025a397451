package echoapi

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

const (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
	bearerScheme     = "Bearer "
)

// jwtMiddleware parses the bearer token into the context claims.
// When optional, anonymous requests go through and invalid tokens are ignored.
func jwtMiddleware(secretKey string, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerScheme) || len(auth) == len(bearerScheme) {
				if optional {
					return next(ctx)
				}
				return errMissingToken
			}

			claims, err := user.ParseToken(auth[len(bearerScheme):], secretKey)
			if err != nil {
				if optional {
					return next(ctx)
				}
				return errInvalidToken
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (*user.Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*user.Claims); ok {
		return claims, nil
	}
	return nil, errMissingToken
}

// getContextUser loads the user of the session once per request.
// Deactivated accounts are rejected.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errInvalidToken
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, user.ErrAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextViewer is the session user as a reader of courses.
// Admin-ness comes from the stored user, never from the token alone.
func getContextViewer(ctx echo.Context, svc *user.Service) (enrollment.Viewer, error) {
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return enrollment.Viewer{}, err
	}
	return enrollment.Viewer{UserID: usr.ID, IsAdmin: usr.IsAdmin()}, nil
}

// tokenIdentity reports the session carried by the request token.
// A token whose user no longer exists is no session at all.
type tokenIdentity struct {
	ctx echo.Context
	svc *user.Service
}

func (ti tokenIdentity) Identity(ctx context.Context) (string, bool, error) {
	claims, err := getContextClaims(ti.ctx)
	if err != nil {
		return "", false, nil
	}
	if _, err = ti.svc.GetByID(ctx, claims.Subject); err != nil {
		if core.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "finding session user")
	}
	return claims.Subject, true, nil
}

// userClaims reads admin claims through the identity provider, the token being the cached copy.
type userClaims struct {
	svc    *user.Service
	cached *user.Claims
}

func (uc userClaims) AdminClaim(ctx context.Context, uid string, forceRefresh bool) (bool, error) {
	return uc.svc.AdminClaim(ctx, uid, uc.cached, forceRefresh)
}

func sessionSources(ctx echo.Context, svc *user.Service) (tokenIdentity, userClaims) {
	cached, _ := getContextClaims(ctx)
	return tokenIdentity{ctx: ctx, svc: svc}, userClaims{svc: svc, cached: cached}
}
