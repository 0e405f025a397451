package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/apps"
	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/auth"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

var (
	errMissingToken         = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken         = echo.NewHTTPError(http.StatusUnauthorized, user.ErrInvalidSessionToken.Error())
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, user.ErrAuthenticationFailed.Error())
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	// gate outcomes carry the destination the client should route to
	errGateDenied = echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
		"error": "user not authenticated", "redirect": auth.SignInPath,
	})
	errGateNotAdmin = echo.NewHTTPError(http.StatusForbidden, echo.Map{
		"error": "permission denied", "redirect": auth.StudentDashboardPath,
	})
	errGateLoading = echo.NewHTTPError(http.StatusServiceUnavailable, "authorization could not be resolved")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			herr   *echo.HTTPError
			vErrs  validator.ValidationErrors
			valErr *core.ValidationError
			argErr *apps.ArgumentError
		)
		switch {
		case errors.As(err, &herr):
			if herr.Internal != nil {
				if inner, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = inner
				}
			}
			code = herr.Code
			message = herr.Message
		case errors.As(err, &vErrs):
			fldErrs := make(map[string]string, len(vErrs))
			for _, vErr := range vErrs {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case errors.As(err, &valErr):
			if valErr.Fields != nil {
				fldErrs := make(map[string]string, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		case errors.As(err, &argErr):
			code = http.StatusBadRequest
			message = argErr.Error()
		case core.IsNotFound(err):
			code = http.StatusNotFound
			message = errors.Cause(err).Error()
		case core.IsPermissionDenied(err):
			code = http.StatusForbidden
			message = errors.Cause(err).Error()
		case errors.Cause(err) == user.ErrAuthenticationFailed:
			code = errAuthenticationFailed.Code
			message = errAuthenticationFailed.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, user.User{ID: claims.Subject, Email: claims.Email, DisplayName: claims.Name})
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
