package echoweb

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/hoaportal/core/auth"
)

const contextStateKey = "authState"

type guardData struct {
	Action string
}

// guard gates the routes behind it on the session's auth state. The provider gets up to
// AuthWait to resolve a fresh session before the loading view is shown.
func (s *Server) guard(requiresAdmin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			state, err := s.guardState(ctx)
			if err != nil {
				return err
			}

			decision := auth.Decide(state, requiresAdmin)
			s.metrics.guardDecisions.WithLabelValues(decision.Outcome.String()).Inc()

			switch decision.Outcome {
			case auth.OutcomeLoading:
				ctx.Response().Header().Set("Cache-Control", "no-store")
				return s.render(ctx, http.StatusOK, "loading", page{Title: "Loading"})
			case auth.OutcomeSignInRequired:
				return s.render(ctx, http.StatusUnauthorized, "access_denied", page{
					Title: "Access denied",
					Data:  guardData{Action: decision.Action},
				})
			case auth.OutcomeForbidden:
				return s.render(ctx, http.StatusForbidden, "permission_denied", page{
					Title: "Permission denied",
					Data:  guardData{Action: decision.Action},
				})
			default:
				ctx.Set(contextStateKey, state)
				return next(ctx)
			}
		}
	}
}

// guardState returns the auth state of the request's session, waiting up to AuthWait
// for a fresh context to resolve. A session minted by this request is signed out.
func (s *Server) guardState(ctx echo.Context) (auth.State, error) {
	if isMintedSession(ctx) {
		return auth.State{}, nil
	}
	actx, err := getContextAuth(ctx, s.Sessions)
	if err != nil {
		return auth.State{}, err
	}

	state := actx.State()
	if state.Loading {
		wctx, cancel := context.WithTimeout(ctx.Request().Context(), s.Conf.Server.AuthWait)
		state, _ = actx.WaitResolved(wctx)
		cancel()
	}
	return state, nil
}

// getContextState returns the auth state the guard allowed the request with.
func getContextState(ctx echo.Context) (auth.State, bool) {
	state, ok := ctx.Get(contextStateKey).(auth.State)
	return state, ok
}
