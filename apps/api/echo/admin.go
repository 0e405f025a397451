package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

type adminApi struct {
	users        *user.Service
	courses      *course.Service
	enrollments  *enrollment.Service
	certificates *certificate.Service
	validate     *validator.Validate
}

// registerAdminAPI mounts the administrative routes on g, which is already guarded by the admin gate.
func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{
		users:        deps.UserSvc,
		courses:      deps.CourseSvc,
		enrollments:  deps.EnrollmentSvc,
		certificates: deps.CertificateSvc,
		validate:     deps.Validate,
	}

	// courses
	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse)
	cg.GET("/:id", api.retrieveCourse)
	cg.PUT("/:id", api.updateCourse)
	cg.PUT("/:id/status", api.setCourseStatus)
	cg.DELETE("/:id", api.destroyCourse)

	// curriculum
	cg.POST("/:id/modules", api.addModule)
	cg.PUT("/:id/modules/:mid", api.renameModule)
	cg.DELETE("/:id/modules/:mid", api.removeModule)
	cg.PUT("/:id/modules/:mid/position", api.moveModule)
	cg.POST("/:id/modules/:mid/lessons", api.addLesson)
	cg.PUT("/:id/lessons/:lid", api.updateLesson)
	cg.DELETE("/:id/lessons/:lid", api.removeLesson)
	cg.PUT("/:id/lessons/:lid/position", api.moveLesson)

	// students
	sg := g.Group("/students")
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent)
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudent)
	sg.DELETE("/:id", api.destroyStudent)
	sg.POST("/:id/enrollments", api.enrollStudent)

	// certificate template
	tg := g.Group("/certificate-template")
	tg.GET("", api.retrieveTemplate)
	tg.PUT("", api.updateTemplate)
	tg.POST("/preview", api.previewTemplate)
}

// Courses

func (api *adminApi) queryCourses(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	courses, err := api.courses.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *adminApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	c, err := api.courses.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *adminApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.courses.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) updateCourse(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	c, err := api.courses.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) setCourseStatus(ctx echo.Context) error {
	var data StatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	c, err := api.courses.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting course status")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) destroyCourse(ctx echo.Context) error {
	if err := api.courses.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Curriculum

func (api *adminApi) addModule(ctx echo.Context) error {
	var data course.ModuleInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ModuleInput")
	}
	m, err := api.courses.AddModule(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding module")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *adminApi) renameModule(ctx echo.Context) error {
	var data course.ModuleInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ModuleInput")
	}
	c, err := api.courses.RenameModule(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"), data)
	if err != nil {
		return errors.Wrap(err, "renaming module")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) removeModule(ctx echo.Context) error {
	c, err := api.courses.RemoveModule(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"))
	if err != nil {
		return errors.Wrap(err, "removing module")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) moveModule(ctx echo.Context) error {
	var data course.Position
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Position")
	}
	c, err := api.courses.MoveModule(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"), data)
	if err != nil {
		return errors.Wrap(err, "moving module")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) addLesson(ctx echo.Context) error {
	var data course.LessonInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonInput")
	}
	l, err := api.courses.AddLesson(ctx.Request().Context(), ctx.Param("id"), ctx.Param("mid"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *adminApi) updateLesson(ctx echo.Context) error {
	var data course.LessonInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonInput")
	}
	l, err := api.courses.UpdateLesson(ctx.Request().Context(), ctx.Param("id"), ctx.Param("lid"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *adminApi) removeLesson(ctx echo.Context) error {
	c, err := api.courses.RemoveLesson(ctx.Request().Context(), ctx.Param("id"), ctx.Param("lid"))
	if err != nil {
		return errors.Wrap(err, "removing lesson")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *adminApi) moveLesson(ctx echo.Context) error {
	var data course.Position
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Position")
	}
	c, err := api.courses.MoveLesson(ctx.Request().Context(), ctx.Param("id"), ctx.Param("lid"), data)
	if err != nil {
		return errors.Wrap(err, "moving lesson")
	}
	return ctx.JSON(http.StatusOK, c)
}

// Students

func (api *adminApi) queryStudents(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	orderings, err := bindOrdering(ctx, user.OrderingFields)
	if err != nil {
		return err
	}

	users, err := api.users.Query(ctx.Request().Context(), filter, orderings...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

// createStudent adds a manual account, e.g. for a student who paid in person.
func (api *adminApi) createStudent(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.users); err != nil {
		return err
	}
	data.IsManual = true

	usr, err := api.users.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *adminApi) retrieveStudent(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := api.users.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	views, err := api.enrollments.Dashboard(reqCtx, enrollment.Viewer{UserID: usr.ID, IsAdmin: true})
	if err != nil {
		return errors.Wrap(err, "loading enrollments")
	}
	if views == nil {
		views = []enrollment.CourseView{}
	}
	return ctx.JSON(http.StatusOK, StudentDetail{User: usr, Courses: views})
}

func (api *adminApi) updateStudent(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	usr, err := api.users.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(reqCtx, usr, api.validate, api.users); err != nil {
		return err
	}

	// an admin cannot demote or deactivate themselves
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if usr.ID == ctxUsr.ID && (data.Role != usr.Role || (data.IsActive != nil && !*data.IsActive)) {
		return errHttpForbidden
	}

	usr, err = api.users.Update(reqCtx, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *adminApi) destroyStudent(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	// an admin cannot delete their own account
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if ctx.Param("id") == ctxUsr.ID {
		return errHttpForbidden
	}

	usr, err := api.users.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if err = api.enrollments.DeleteForUser(reqCtx, usr.ID); err != nil {
		return errors.Wrap(err, "deleting enrollments")
	}
	if err = api.users.Delete(reqCtx, usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// enrollStudent grants a course without payment. amountPaid records the course price.
func (api *adminApi) enrollStudent(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var data CourseRef
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CourseRef")
	}
	if data.CourseID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "courseId is required")
	}

	usr, err := api.users.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	c, err := api.courses.GetByID(reqCtx, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	enr, created, err := api.enrollments.Enroll(reqCtx, enrollment.NewEnrollment{
		UserID:        usr.ID,
		CourseID:      c.ID,
		PaymentStatus: enrollment.PaymentManualAdmin,
		AmountPaid:    c.Price,
	})
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	if !created {
		return enrollment.ErrAlreadyEnrolled
	}
	return ctx.JSON(http.StatusCreated, enr)
}

// Certificate template

func (api *adminApi) retrieveTemplate(ctx echo.Context) error {
	tpl, err := api.certificates.Template(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting certificate template")
	}
	return ctx.JSON(http.StatusOK, tpl)
}

func (api *adminApi) updateTemplate(ctx echo.Context) error {
	var data certificate.Template
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Template")
	}
	tpl, err := api.certificates.SaveTemplate(ctx.Request().Context(), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "saving certificate template")
	}
	return ctx.JSON(http.StatusOK, tpl)
}

// previewTemplate renders a sample certificate with the posted, unsaved template.
func (api *adminApi) previewTemplate(ctx echo.Context) error {
	var data certificate.Template
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Template")
	}
	file, err := api.certificates.Preview(ctx.Request().Context(), data, api.validate)
	if err != nil {
		return errors.Wrap(err, "rendering preview")
	}
	return sendFile(ctx, file)
}

type (
	StatusRequest struct {
		Status course.Status `json:"status"`
	}

	StudentDetail struct {
		User    user.User               `json:"user"`
		Courses []enrollment.CourseView `json:"courses"`
	}
)
