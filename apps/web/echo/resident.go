package echoweb

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/event"
	"github.com/trezcool/hoaportal/core/resident"
)

// Portals
const (
	portalResident = "resident"
	portalAdmin    = "admin"
)

type (
	loginData struct {
		Action string
		Email  string
		Admin  bool
	}

	residentData struct {
		Resident *resident.Resident
		Events   []event.Event
	}
)

func (s *Server) signupForm(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "signup", page{Title: "Resident signup", Form: resident.NewResident{}})
}

func (s *Server) signup(ctx echo.Context) error {
	var nr resident.NewResident
	if err := ctx.Bind(&nr); err != nil {
		return errHttpBadRequest
	}
	reqCtx := ctx.Request().Context()
	renderErr := func(code int, flds map[string]string, msg string) error {
		nr.Password, nr.PasswordConfirm = "", ""
		return s.render(ctx, code, "signup", page{Title: "Resident signup", Form: nr, Errors: flds, Error: msg})
	}

	if err := s.Residents.Validate(nr); err != nil {
		if flds, ok := fieldErrors(err); ok {
			return renderErr(http.StatusBadRequest, flds, "")
		}
		return errors.Wrap(err, "validating signup")
	}

	id, err := s.Provider.Register(reqCtx, nr.Email, nr.Password)
	if err != nil {
		msg := auth.FriendlyMessage(err)
		switch {
		case auth.IsCode(err, auth.CodeEmailAlreadyInUse), auth.IsCode(err, auth.CodeInvalidEmail):
			return renderErr(http.StatusBadRequest, map[string]string{"email": msg}, "")
		case auth.IsCode(err, auth.CodeWeakPassword):
			return renderErr(http.StatusBadRequest, map[string]string{"password": msg}, "")
		}
		s.Logger.Error("registering identity", err)
		return renderErr(http.StatusBadGateway, nil, msg)
	}

	if _, err = s.Residents.Register(reqCtx, id.UID, nr); err != nil {
		s.Logger.Error("registering resident", err, *id)
		// no credential without a profile
		if uerr := s.Provider.Unregister(reqCtx, id.UID); uerr != nil {
			s.Logger.Error("unregistering identity", uerr, *id)
		}
		return renderErr(http.StatusInternalServerError, nil, "Your profile could not be saved. Please try again.")
	}

	// a new account is signed in right away
	actx, err := s.signInRotated(ctx, nr.Email, nr.Password)
	if err != nil {
		s.Logger.Warn("signing in new resident", err, *id)
		return ctx.Redirect(http.StatusSeeOther, auth.PathResidentLogin)
	}
	s.waitForIdentity(ctx, actx, true)
	return ctx.Redirect(http.StatusSeeOther, "/resident")
}

func (s *Server) residentLoginForm(ctx echo.Context) error {
	return s.loginForm(ctx, false)
}

func (s *Server) residentLogin(ctx echo.Context) error {
	return s.login(ctx, false)
}

func (s *Server) adminLoginForm(ctx echo.Context) error {
	return s.loginForm(ctx, true)
}

func (s *Server) adminLogin(ctx echo.Context) error {
	return s.login(ctx, true)
}

func loginPage(admin bool, email string) page {
	p := page{Title: "Resident login", Data: loginData{Action: auth.PathResidentLogin, Email: email}}
	if admin {
		p = page{Title: "Board login", Data: loginData{Action: auth.PathAdminLogin, Email: email, Admin: true}}
	}
	return p
}

func (s *Server) loginForm(ctx echo.Context, admin bool) error {
	return s.render(ctx, http.StatusOK, "login", loginPage(admin, ""))
}

// login signs the session in. The guarded page the visitor lands on decides
// whether the identity may see it.
func (s *Server) login(ctx echo.Context, admin bool) error {
	portal, target := portalResident, "/resident"
	if admin {
		portal, target = portalAdmin, "/admin"
	}
	email := ctx.FormValue("email")

	actx, err := s.signInRotated(ctx, email, ctx.FormValue("password"))
	if err != nil {
		if !errors.As(err, new(*auth.AuthFailure)) {
			return err
		}
		outcome := loginRejected
		if auth.IsCode(err, auth.CodeInternalError) {
			outcome = loginFailed
			s.Logger.Error("signing in", err)
		}
		s.metrics.logins.WithLabelValues(portal, outcome).Inc()

		p := loginPage(admin, email)
		p.Error = auth.FriendlyMessage(err)
		return s.render(ctx, http.StatusUnauthorized, "login", p)
	}

	s.metrics.logins.WithLabelValues(portal, loginSucceeded).Inc()
	s.waitForIdentity(ctx, actx, true)
	return ctx.Redirect(http.StatusSeeOther, target)
}

func (s *Server) logout(ctx echo.Context) error {
	if isMintedSession(ctx) {
		return redirectNotice(ctx, auth.PathHome, "signed-out")
	}
	actx, err := getContextAuth(ctx, s.Sessions)
	if err != nil {
		return err
	}
	if err = actx.Logout(ctx.Request().Context()); err != nil {
		s.Logger.Error("signing out", err)
		return s.render(ctx, http.StatusBadGateway, "error", page{
			Title: "Sign out failed",
			Data:  errorData{Message: auth.FriendlyMessage(err)},
		})
	}
	s.waitForIdentity(ctx, actx, false)
	return redirectNotice(ctx, auth.PathHome, "signed-out")
}

func (s *Server) residentDashboard(ctx echo.Context) error {
	state, _ := getContextState(ctx)
	reqCtx := ctx.Request().Context()

	var data residentData
	r, err := s.Residents.Get(reqCtx, state.Identity.UID)
	switch {
	case err == nil:
		data.Resident = &r
	case !errors.Is(err, resident.ErrNotFound):
		return errors.Wrap(err, "getting resident")
	}

	if data.Events, err = s.Events.Upcoming(reqCtx, time.Now()); err != nil {
		return errors.Wrap(err, "listing upcoming events")
	}
	return s.render(ctx, http.StatusOK, "resident", page{Title: "My account", Data: data})
}
