package auth

// Navigation targets of the guard views
const (
	PathHome          = "/"
	PathAdminLogin    = "/admin/login"
	PathResidentLogin = "/resident/login"
)

type Outcome int

const (
	// OutcomeLoading renders the loading indicator only.
	OutcomeLoading Outcome = iota
	// OutcomeSignInRequired renders the access-denied view.
	OutcomeSignInRequired
	// OutcomeForbidden renders the permission-denied view.
	OutcomeForbidden
	// OutcomeAllowed renders the protected content.
	OutcomeAllowed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeSignInRequired:
		return "sign-in-required"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// Decision tells what to render. Action is the call-to-action target of the denial views.
type Decision struct {
	Outcome Outcome
	Action  string
}

// Decide gates a protected page on the auth state.
func Decide(state State, requiresAdmin bool) Decision {
	switch {
	case state.Loading:
		return Decision{Outcome: OutcomeLoading}
	case state.Identity == nil:
		if requiresAdmin {
			return Decision{Outcome: OutcomeSignInRequired, Action: PathAdminLogin}
		}
		return Decision{Outcome: OutcomeSignInRequired, Action: PathResidentLogin}
	case requiresAdmin && !state.IsAdmin:
		return Decision{Outcome: OutcomeForbidden, Action: PathHome}
	default:
		return Decision{Outcome: OutcomeAllowed}
	}
}
