package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/dashboard"
	"github.com/trezcool/darasa/core/discussion"
	"github.com/trezcool/darasa/core/organization"
	"github.com/trezcool/darasa/core/resource"
	"github.com/trezcool/darasa/core/schedule"
	"github.com/trezcool/darasa/core/subject"
	"github.com/trezcool/darasa/core/user"
)

type (
	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		UserSvc         *user.Service
		OrgSvc          *organization.Service
		SubjectSvc      *subject.Service
		ClassSvc        *class.Service
		ResourceSvc     *resource.Service
		ScheduleSvc     *schedule.Service
		DiscussionSvc   *discussion.Service
		DashboardSvc    *dashboard.Service
		RevocationStore core.TokenRevocationStore
		Validate        *validator.Validate
		Translator      ut.Translator
		DisableReqLogs  bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil) // interface compliance check

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.OrgSvc, "OrgSvc"),
		vala.IsNotNil(deps.SubjectSvc, "SubjectSvc"),
		vala.IsNotNil(deps.ClassSvc, "ClassSvc"),
		vala.IsNotNil(deps.ResourceSvc, "ResourceSvc"),
		vala.IsNotNil(deps.ScheduleSvc, "ScheduleSvc"),
		vala.IsNotNil(deps.DiscussionSvc, "DiscussionSvc"),
		vala.IsNotNil(deps.DashboardSvc, "DashboardSvc"),
		vala.IsNotNil(deps.RevocationStore, "RevocationStore"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
	).CheckAndPanic()

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
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.CORSOrigins) > 0 {
		s.app.Use(echo.WrapMiddleware(cors.New(cors.Options{
			AllowedOrigins:   conf.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{echo.HeaderAuthorization, echo.HeaderContentType},
			AllowCredentials: true,
		}).Handler))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf, s.deps.UserSvc, s.deps.OrgSvc, s.deps.RevocationStore)
	authed := auth.middleware()
	orgAuthed := chain(authed, organizationRequired)
	limit := rateLimiter(conf.Server.RateLimit)

	registerUserAPI(v1, auth, authed, limit, s.deps.UserSvc, s.deps.Validate)
	registerOrganizationAPI(v1, authed, s.deps.OrgSvc, s.deps.Validate)
	registerDashboardAPI(v1, orgAuthed, s.deps.DashboardSvc)
	registerSubjectAPI(v1, orgAuthed, s.deps.SubjectSvc, s.deps.Validate)
	registerClassAPI(v1, orgAuthed, s.deps.ClassSvc, s.deps.ResourceSvc, s.deps.ScheduleSvc, s.deps.Validate)
	registerStudentAPI(v1, orgAuthed, s.deps.OrgSvc)
	registerResourceAPI(v1, orgAuthed, s.deps.ResourceSvc, s.deps.Validate)
	registerDiscussionAPI(v1, orgAuthed, s.deps.DiscussionSvc, s.deps.Validate)
	registerScheduleAPI(v1, orgAuthed, s.deps.ScheduleSvc, s.deps.Validate)
}

// Start blocks until the server stops. Listen errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives the OS interrupt signals, and core.shutdown errors caught by the HTTP error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
