package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/auth"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

type userApi struct {
	svc      *user.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt, optionalJWT echo.MiddlewareFunc,
	svc *user.Service,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := userApi{svc: svc, conf: conf, validate: validate}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` & `/password-reset`
	ag.POST("/signup", api.signUp)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset/confirm", api.confirmPasswordReset)
	ag.GET("/route/admin", api.adminRoute, optionalJWT)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, jwt)
	ag.GET("/portal", api.portal, jwt)

	ug := g.Group("/users/me", jwt)
	ug.GET("", api.me)
	ug.PUT("", api.updateMe)
}

// Handlers

func (api *userApi) token(usr user.User) (string, error) {
	token, err := user.GenerateToken(user.NewClaims(usr, api.conf), api.conf.SecretKey)
	return token, errors.Wrap(err, "generating token")
}

func (api *userApi) signUp(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.SignUp(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	token, err := api.token(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SessionResponse{Token: token, User: &usr})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.token(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	newClaims, err := api.svc.RefreshClaims(ctx.Request().Context(), *claims)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errInvalidToken
		}
		return errors.Wrap(err, "refreshing claims")
	}
	token, err := user.GenerateToken(newClaims, api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if !(err == nil || core.IsNotFound(err) || core.IsPermissionDenied(err)) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

// portal tells the client which dashboard link to show. The admin claim in the token is trusted as is.
func (api *userApi) portal(ctx echo.Context) error {
	ids, claims := sessionSources(ctx, api.svc)
	isAdmin := auth.CosmeticIsAdmin(ctx.Request().Context(), ids, claims)
	return ctx.JSON(http.StatusOK, PortalResponse{IsAdmin: isAdmin, Dashboard: auth.DashboardPath(isAdmin)})
}

// adminRoute returns the gate decision for an administrative destination.
func (api *userApi) adminRoute(ctx echo.Context) error {
	ids, claims := sessionSources(ctx, api.svc)
	return ctx.JSON(http.StatusOK, auth.ResolveAdminRoute(ctx.Request().Context(), ids, claims))
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	SessionResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	PortalResponse struct {
		IsAdmin   bool   `json:"isAdmin"`
		Dashboard string `json:"dashboard"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
