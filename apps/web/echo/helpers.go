package echoweb

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
)

// Notices shown after a redirect, keyed by the "notice" query param.
var notices = map[string]string{
	"signed-out":        "You have been signed out.",
	"message-sent":      "Thanks! Your message has been sent to the board.",
	"event-created":     "Event created.",
	"event-updated":     "Event updated.",
	"event-deleted":     "Event deleted.",
	"resident-approved": "Resident approved. A confirmation email is on its way.",
	"resident-deleted":  "Resident removed.",
	"message-deleted":   "Message deleted.",
	"reset-requested":   "If an account exists for this email address, a link to reset the password is on its way.",
	"password-reset":    "Your password has been reset. You can sign in with the new password.",
}

// render fills the common page data and renders the named template.
func (s *Server) render(ctx echo.Context, code int, name string, p page) error {
	p.AppName = s.Conf.AppName
	if p.Notice == "" {
		p.Notice = notices[ctx.QueryParam("notice")]
	}
	if token, ok := ctx.Get(csrfContextKey).(string); ok {
		p.CSRF = token
	}
	if state, ok := getContextState(ctx); ok {
		p.Auth = state
	} else if actx, ok := ctx.Get(contextAuthKey).(*auth.Context); ok {
		p.Auth = actx.State()
	} else if _, err := getContextSessionID(ctx); err == nil && !isMintedSession(ctx) {
		// a session minted by this request renders signed out without subscribing
		if actx, err := getContextAuth(ctx, s.Sessions); err == nil {
			p.Auth = actx.State()
		}
	}
	return ctx.Render(code, name, p)
}

// redirectNotice redirects (see other) to target with a notice.
func redirectNotice(ctx echo.Context, target, notice string) error {
	u, err := url.Parse(target)
	if err != nil {
		return errors.Wrapf(err, "parsing redirect target %q", target)
	}
	if notice != "" {
		q := u.Query()
		q.Set("notice", notice)
		u.RawQuery = q.Encode()
	}
	return ctx.Redirect(http.StatusSeeOther, u.String())
}

// fieldErrors returns the form errors of a validation error, or nil.
func fieldErrors(err error) (map[string]string, bool) {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return vErr.FieldMap(), true
	}
	return nil, false
}

// waitForIdentity waits for the provider push following a login (signedIn) or logout.
// It gives up after AuthWait and returns the state at that time.
func (s *Server) waitForIdentity(ctx echo.Context, actx *auth.Context, signedIn bool) auth.State {
	wctx, cancel := context.WithTimeout(ctx.Request().Context(), s.Conf.Server.AuthWait)
	defer cancel()

	state, err := actx.WaitUntil(wctx, func(st auth.State) bool {
		return !st.Loading && (st.Identity != nil) == signedIn
	})
	if err != nil {
		s.Logger.Warn("auth: identity push not received in time", errors.Wrap(err, "waiting for identity"))
	}
	return state
}
