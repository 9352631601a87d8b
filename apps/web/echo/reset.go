package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/identity"
	"github.com/trezcool/hoaportal/core/resident"
)

const invalidResetLinkMessage = "This password reset link is invalid or has expired. Please ask for a new one."

type resetData struct {
	Email  string
	Action string
}

func (s *Server) passwordResetForm(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "password_reset", page{Title: "Reset your password", Data: resetData{}})
}

func (s *Server) requestPasswordReset(ctx echo.Context) error {
	email := ctx.FormValue("email")

	err := s.Resets.Request(ctx.Request().Context(), email)
	switch {
	case err == nil, errors.Is(err, identity.ErrNotFound):
		// unknown accounts get the same answer
		return redirectNotice(ctx, "/password-reset", "reset-requested")
	case auth.IsCode(err, auth.CodeInvalidEmail):
		return s.render(ctx, http.StatusBadRequest, "password_reset", page{
			Title:  "Reset your password",
			Errors: map[string]string{"email": auth.FriendlyMessage(err)},
			Data:   resetData{Email: email},
		})
	}
	return errors.Wrap(err, "requesting password reset")
}

func (s *Server) newPasswordForm(ctx echo.Context) error {
	if _, err := s.Resets.Check(ctx.Request().Context(), ctx.Param("uid"), ctx.Param("token")); err != nil {
		return s.invalidResetLink(ctx, err)
	}
	return s.render(ctx, http.StatusOK, "password_reset_confirm", page{
		Title: "Choose a new password",
		Data:  resetData{Action: ctx.Request().URL.Path},
	})
}

func (s *Server) setNewPassword(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	uid, token := ctx.Param("uid"), ctx.Param("token")

	id, err := s.Resets.Check(reqCtx, uid, token)
	if err != nil {
		return s.invalidResetLink(ctx, err)
	}

	var np resident.NewPassword
	if err = ctx.Bind(&np); err != nil {
		return errHttpBadRequest
	}
	np.Email = id.Email
	if r, err := s.Residents.Get(reqCtx, id.UID); err == nil {
		np.Name, np.Unit = r.Name, r.Unit
	}

	renderErr := func(flds map[string]string) error {
		return s.render(ctx, http.StatusBadRequest, "password_reset_confirm", page{
			Title:  "Choose a new password",
			Errors: flds,
			Data:   resetData{Action: ctx.Request().URL.Path},
		})
	}
	if err = s.Residents.ValidatePassword(np); err != nil {
		if flds, ok := fieldErrors(err); ok {
			return renderErr(flds)
		}
		return errors.Wrap(err, "validating new password")
	}

	if err = s.Resets.Confirm(reqCtx, uid, token, np.Password); err != nil {
		if auth.IsCode(err, auth.CodeWeakPassword) {
			return renderErr(map[string]string{"password": auth.FriendlyMessage(err)})
		}
		return s.invalidResetLink(ctx, err)
	}
	return redirectNotice(ctx, auth.PathResidentLogin, "password-reset")
}

func (s *Server) invalidResetLink(ctx echo.Context, err error) error {
	if errors.Is(err, identity.ErrInvalidResetLink) || errors.Is(err, identity.ErrResetLinkExpired) {
		return s.render(ctx, http.StatusBadRequest, "password_reset", page{
			Title: "Reset your password",
			Error: invalidResetLinkMessage,
			Data:  resetData{},
		})
	}
	return errors.Wrap(err, "checking password reset link")
}
