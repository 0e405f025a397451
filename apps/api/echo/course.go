package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/payment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

type courseApi struct {
	users        *user.Service
	courses      *course.Service
	enrollments  *enrollment.Service
	certificates *certificate.Service
	payments     *payment.Service
}

func registerCourseAPI(g *echo.Group, jwt, optionalJWT echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{
		users:        deps.UserSvc,
		courses:      deps.CourseSvc,
		enrollments:  deps.EnrollmentSvc,
		certificates: deps.CertificateSvc,
		payments:     deps.PaymentSvc,
	}

	// catalog
	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve, optionalJWT)

	// student portal
	cg.GET("/:id/progress", api.progress, jwt)
	cg.POST("/:id/lessons/:lid/complete", api.completeLesson, jwt)
	cg.POST("/:id/lessons/:lid/quiz", api.submitQuiz, jwt)
	cg.GET("/:id/certificate", api.certificate, jwt)
	cg.POST("/:id/checkout", api.checkout, jwt)

	g.GET("/dashboard", api.dashboard, jwt)
	g.POST("/payments/success", api.paymentSuccess, jwt)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	courses, err := api.courses.QueryPublished(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	// drafts are visible to admins only: the claim is always re-read
	var isAdmin bool
	if claims, err := getContextClaims(ctx); err == nil {
		isAdmin, _ = api.users.AdminClaim(reqCtx, claims.Subject, claims, true /* forceRefresh */)
	}

	c, err := api.courses.GetForViewer(reqCtx, ctx.Param("id"), isAdmin)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) dashboard(ctx echo.Context) error {
	v, err := getContextViewer(ctx, api.users)
	if err != nil {
		return err
	}
	views, err := api.enrollments.Dashboard(ctx.Request().Context(), v)
	if err != nil {
		return errors.Wrap(err, "loading dashboard")
	}
	if views == nil {
		views = []enrollment.CourseView{}
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *courseApi) progress(ctx echo.Context) error {
	v, err := getContextViewer(ctx, api.users)
	if err != nil {
		return err
	}
	view, err := api.enrollments.View(ctx.Request().Context(), v, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "loading course view")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *courseApi) completeLesson(ctx echo.Context) error {
	v, err := getContextViewer(ctx, api.users)
	if err != nil {
		return err
	}
	view, err := api.enrollments.MarkLessonComplete(ctx.Request().Context(), v, ctx.Param("id"), ctx.Param("lid"))
	if err != nil {
		return errors.Wrap(err, "marking lesson complete")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *courseApi) submitQuiz(ctx echo.Context) error {
	v, err := getContextViewer(ctx, api.users)
	if err != nil {
		return err
	}

	var data QuizSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizSubmission")
	}

	outcome, err := api.enrollments.SubmitQuiz(ctx.Request().Context(), v, ctx.Param("id"), ctx.Param("lid"), data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, outcome)
}

func (api *courseApi) certificate(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	file, err := api.certificates.Download(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "downloading certificate")
	}
	return sendFile(ctx, file)
}

func (api *courseApi) checkout(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	form, err := api.payments.Checkout(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building checkout form")
	}
	return ctx.JSON(http.StatusOK, form)
}

// paymentSuccess is hit by the client on the gateway's return URL.
func (api *courseApi) paymentSuccess(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}

	var data CourseRef
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseRef")
	}
	if data.CourseID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "courseId is required")
	}

	enr, err := api.payments.Complete(ctx.Request().Context(), usr, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "completing payment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func sendFile(ctx echo.Context, file certificate.File) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return ctx.Blob(http.StatusOK, file.ContentType, file.Data)
}

type (
	QuizSubmission struct {
		Answers enrollment.Answers `json:"answers"`
	}

	CourseRef struct {
		CourseID string `json:"courseId" query:"courseId"`
	}
)
