package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Mabu007/czane-beauty-academy/core"
	"github.com/Mabu007/czane-beauty-academy/core/certificate"
	"github.com/Mabu007/czane-beauty-academy/core/course"
	"github.com/Mabu007/czane-beauty-academy/core/enrollment"
	"github.com/Mabu007/czane-beauty-academy/core/payment"
	"github.com/Mabu007/czane-beauty-academy/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc        *user.Service
		CourseSvc      *course.Service
		EnrollmentSvc  *enrollment.Service
		CertificateSvc *certificate.Service
		PaymentSvc     *payment.Service

		// Middleware runs before every route, e.g. request metrics.
		Middleware []echo.MiddlewareFunc
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !(conf.Server.DisableReqLogs || conf.TestMode) {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{conf.FrontendBaseURL},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))
	s.app.Use(s.deps.Middleware...)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf.SecretKey, false)
	optionalJWT := jwtMiddleware(conf.SecretKey, true)
	admin := adminMiddleware(s.deps.UserSvc)

	registerUserAPI(v1, jwt, optionalJWT, s.deps.UserSvc, s.deps.Conf, s.deps.Validate)
	registerCourseAPI(v1, jwt, optionalJWT, s.deps)
	registerAdminAPI(v1.Group("/admin", jwt, admin), s.deps)
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the server, if any.
func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the main goroutine to shut the server down gracefully.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the Czane Beauty Academy API!")
}
