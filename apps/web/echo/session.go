package echoweb

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core/auth"
)

const (
	sessionCookieName = "hoa_session"
	contextSessionKey = "sessionID"
	contextMintedKey  = "sessionMinted"
	contextAuthKey    = "auth"
	csrfContextKey    = "csrf"
)

var errNoSession = errors.New("no session in echo.Context")

// sessionClaims is the content of the session cookie. It only carries the session id;
// who is signed in on the session is known by the identity provider.
type sessionClaims struct {
	jwt.StandardClaims
	SessionID string `json:"sid"`
}

type sessionCodec struct {
	key      []byte
	issuer   string
	ttl      time.Duration
	secure   bool
	nowFunc  func() time.Time
	idLength int
}

func newSessionCodec(secretKey, issuer string, ttl time.Duration, secure bool) *sessionCodec {
	return &sessionCodec{
		key:      []byte(secretKey),
		issuer:   issuer,
		ttl:      ttl,
		secure:   secure,
		nowFunc:  time.Now,
		idLength: 32,
	}
}

// newSessionID generates a random session id of 256 bits.
func (sc *sessionCodec) newSessionID() (string, error) {
	b := make([]byte, sc.idLength)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating session id")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (sc *sessionCodec) encode(sid string) (string, error) {
	now := sc.nowFunc()
	claims := &sessionClaims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    sc.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(sc.ttl).Unix(),
		},
		SessionID: sid,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(sc.key)
	if err != nil {
		return "", errors.Wrap(err, "signing session token")
	}
	return ss, nil
}

func (sc *sessionCodec) decode(ss string) (string, error) {
	claims := new(sessionClaims)
	token, err := jwt.ParseWithClaims(ss, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return sc.key, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.SessionID == "" || claims.Issuer != sc.issuer {
		return "", errors.New("invalid session token")
	}
	return claims.SessionID, nil
}

func (sc *sessionCodec) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   sc.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// mint returns a new session id and the cookie carrying it.
func (sc *sessionCodec) mint() (string, *http.Cookie, error) {
	sid, err := sc.newSessionID()
	if err != nil {
		return "", nil, err
	}
	ss, err := sc.encode(sid)
	if err != nil {
		return "", nil, err
	}
	return sid, sc.cookie(ss, sc.nowFunc().Add(sc.ttl)), nil
}

// sessionMiddleware reads the session id from the session cookie, minting a new
// session when the cookie is missing or invalid.
func sessionMiddleware(sc *sessionCodec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if ck, err := ctx.Cookie(sessionCookieName); err == nil {
				if sid, err := sc.decode(ck.Value); err == nil {
					ctx.Set(contextSessionKey, sid)
					return next(ctx)
				}
			}

			sid, ck, err := sc.mint()
			if err != nil {
				return err
			}
			ctx.SetCookie(ck)
			ctx.Set(contextSessionKey, sid)
			ctx.Set(contextMintedKey, true)
			return next(ctx)
		}
	}
}

// isMintedSession reports whether the session was created by this request.
// Nobody can be signed in on it yet.
func isMintedSession(ctx echo.Context) bool {
	minted, _ := ctx.Get(contextMintedKey).(bool)
	return minted
}

func getContextSessionID(ctx echo.Context) (string, error) {
	if sid, ok := ctx.Get(contextSessionKey).(string); ok && sid != "" {
		return sid, nil
	}
	return "", errNoSession
}

// getContextAuth returns the auth context of the request's session.
func getContextAuth(ctx echo.Context, sessions *auth.Sessions) (*auth.Context, error) {
	if actx, ok := ctx.Get(contextAuthKey).(*auth.Context); ok {
		return actx, nil
	}
	sid, err := getContextSessionID(ctx)
	if err != nil {
		return nil, err
	}
	actx, err := sessions.Get(sid)
	if err != nil {
		return nil, errors.Wrap(err, "getting session auth context")
	}
	ctx.Set(contextAuthKey, actx)
	return actx, nil
}

// signInRotated signs the visitor in on a new session id. The new session cookie is
// only set when the sign-in succeeds; the previous session is then signed out and closed.
func (s *Server) signInRotated(ctx echo.Context, email, password string) (*auth.Context, error) {
	reqCtx := ctx.Request().Context()

	sid, ck, err := s.codec.mint()
	if err != nil {
		return nil, err
	}
	actx, err := s.Sessions.Get(sid)
	if err != nil {
		return nil, errors.Wrap(err, "getting session auth context")
	}
	if err = actx.Login(reqCtx, email, password); err != nil {
		s.Sessions.Evict(sid)
		return nil, err
	}

	prev, _ := getContextSessionID(ctx)
	prevMinted := isMintedSession(ctx)
	ctx.SetCookie(ck)
	ctx.Set(contextSessionKey, sid)
	ctx.Set(contextMintedKey, false)
	ctx.Set(contextAuthKey, actx)

	if prev != "" && !prevMinted {
		if err = s.Provider.Client(prev).SignOut(reqCtx); err != nil {
			s.Logger.Warn("signing out previous session", err)
		}
		s.Sessions.Evict(prev)
	}
	return actx, nil
}
