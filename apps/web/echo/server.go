// Package echoweb is the portal's web front end: public pages, the resident
// portal and the board dashboard, rendered server side with echo.
package echoweb

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/contact"
	"github.com/trezcool/hoaportal/core/event"
	"github.com/trezcool/hoaportal/core/identity"
	"github.com/trezcool/hoaportal/core/resident"
	appfs "github.com/trezcool/hoaportal/fs"
)

type (
	// Deps are the collaborators of the server.
	Deps struct {
		dig.In

		Conf      *core.Config
		Logger    core.Logger
		Sessions  *auth.Sessions
		Provider  *identity.Provider
		Resets    *identity.PasswordResets
		Events    *event.Service
		Residents *resident.Service
		Contact   *contact.Service
		// StatusCheck reports the health of the storage backends.
		StatusCheck func(context.Context) error `optional:"true"`
	}

	Server struct {
		*Deps
		app      *echo.Echo
		metrics  *metrics
		codec    *sessionCodec
		shutdown chan os.Signal
		errs     chan error
	}
)

// NewServer builds the echo app. The server listens once Start is called.
func NewServer(deps Deps) (*Server, error) {
	s := &Server{
		Deps:     &deps,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errs:     make(chan error, 1),
	}
	s.metrics = newMetrics(deps.Sessions.Len, deps.Provider.Subscribers)
	s.codec = newSessionCodec(deps.Conf.SecretKey, deps.Conf.AppName, deps.Conf.Server.SessionTTL, deps.Conf.Server.SecureCookies)

	renderer, err := newTemplateRenderer(appfs.FS, appfs.WebTemplatesDir)
	if err != nil {
		return nil, err
	}
	s.app.Renderer = renderer

	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware())
	s.app.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	// endpoints without session
	s.app.GET("/healthz", s.healthz)
	s.app.GET("/metrics", s.metrics.handler())
	assets, _ := fs.Sub(appfs.FS, appfs.AssetsDir)
	s.app.GET("/assets/*", echo.WrapHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(assets)))))

	web := s.app.Group("", sessionMiddleware(s.codec))
	if !conf.Server.DisableCSRF {
		web.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:_csrf",
			ContextKey:     csrfContextKey,
			CookieName:     "hoa_csrf",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   conf.Server.SecureCookies,
		}))
	}

	// public pages
	web.GET("/", s.home)
	web.GET("/about", s.staticPage("about", "About"))
	web.GET("/amenities", s.staticPage("amenities", "Amenities"))
	web.GET("/events", s.listEvents)
	web.GET("/contact", s.contactForm)
	web.POST("/contact", s.sendContact)
	web.POST("/logout", s.logout)

	// resident portal
	web.GET("/resident/signup", s.signupForm)
	web.POST("/resident/signup", s.signup)
	web.GET("/resident/login", s.residentLoginForm)
	web.POST("/resident/login", s.residentLogin)
	web.GET("/resident", s.residentDashboard, s.guard(false))
	web.GET("/password-reset", s.passwordResetForm)
	web.POST("/password-reset", s.requestPasswordReset)
	web.GET("/password-reset/:uid/:token", s.newPasswordForm)
	web.POST("/password-reset/:uid/:token", s.setNewPassword)

	// board dashboard
	web.GET("/admin/login", s.adminLoginForm)
	web.POST("/admin/login", s.adminLogin)
	admin := web.Group("/admin", s.guard(true))
	admin.GET("", s.adminDashboard)
	admin.POST("/events", s.createEvent)
	admin.POST("/events/:id", s.updateEvent)
	admin.POST("/events/:id/delete", s.deleteEvent)
	admin.POST("/residents/:id/approve", s.approveResident)
	admin.POST("/residents/:id/delete", s.deleteResident)
	admin.POST("/messages/:id/delete", s.deleteMessage)
}

// Start listens on the configured address. Listening errors are sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errs
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the server gracefully and closes every session auth context.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Sessions.Close()
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	defer s.Sessions.Close()
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) healthz(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.Conf.Build}
	if s.StatusCheck != nil {
		if err := s.StatusCheck(ctx.Request().Context()); err != nil {
			s.Logger.Error("health check failed", errors.Wrap(err, "status check"))
			status["status"] = "db not ready"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}
