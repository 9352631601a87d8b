package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
)

var (
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "The page you are looking for does not exist.")
	errHttpBadRequest = echo.NewHTTPError(http.StatusBadRequest, "The request could not be understood.")
	genericErrMessage = "Something went wrong on our side. Please try again later."
)

type errorData struct {
	Message string
}

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler rendering the error page.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(s *Server, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = fmt.Sprint(origErr.Message)
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = genericErrMessage

			args := []interface{}{errors.Wrap(err, "unhandled error")}
			if actx, ok := ctx.Get(contextAuthKey).(*auth.Context); ok {
				if id := actx.State().Identity; id != nil {
					args = append(args, *id)
				}
			}
			s.Logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Request().URL.Path, err), args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = fmt.Sprintf("%+v", err)
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = s.render(ctx, code, "error", page{
				Title: http.StatusText(code),
				Data:  errorData{Message: message},
			})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
