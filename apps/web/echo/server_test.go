package echoweb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/contact"
	"github.com/trezcool/hoaportal/core/event"
	"github.com/trezcool/hoaportal/core/identity"
	"github.com/trezcool/hoaportal/core/resident"
	appfs "github.com/trezcool/hoaportal/fs"
	emailsvc "github.com/trezcool/hoaportal/services/email"
	inmemdb "github.com/trezcool/hoaportal/storage/database/inmem"
	"github.com/trezcool/hoaportal/tests"
)

const (
	boardPassword    = "board-secret"
	residentPassword = "Tr1cky!Pass"
)

type testApp struct {
	server   *Server
	conf     *core.Config
	creds    identity.CredentialRepository
	provider *identity.Provider
	mail     *emailsvc.ConsoleServiceMock
}

type setupOption func(conf *core.Config, deps *Deps)

// setup builds a server on in memory storage. The board account is created with boardPassword.
func setup(t *testing.T, opts ...setupOption) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	db := inmemdb.Open()
	store := inmemdb.NewDocumentStore(db)
	creds := inmemdb.NewCredentialRepository(db)
	provider := identity.NewProvider(creds, inmemdb.NewSignInStore(db), logger, conf.Server.SessionTTL)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	deps := Deps{
		Conf:      conf,
		Logger:    logger,
		Provider:  provider,
		Resets:    identity.NewPasswordResets(provider, mailSvc, conf),
		Events:    event.NewService(store, validate, translator),
		Residents: resident.NewService(store, mailSvc, validate, translator),
		Contact:   contact.NewService(store, mailSvc, conf.Auth.AdminEmails, validate, translator),
	}
	for _, opt := range opts {
		opt(conf, &deps)
	}
	if deps.Sessions == nil {
		deps.Sessions = auth.NewSessions(provider.Client, auth.NewRoleResolverFromConfig(conf), logger, 0)
	}

	s, err := NewServer(deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testutil.CreateCredential(t, creds, testutil.BoardEmail, boardPassword, false)
	return &testApp{server: s, conf: conf, creds: creds, provider: provider, mail: mailSvc}
}

// browser keeps the cookies of one visitor between requests. Redirects are not followed.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (app *testApp) newBrowser(t *testing.T) *browser {
	return &browser{t: t, handler: app.server, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		b.cookies[ck.Name] = ck
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(http.MethodGet, target, nil)
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, target, form)
}

func (b *browser) login(admin bool, email, pwd string) *httptest.ResponseRecorder {
	b.t.Helper()
	target := auth.PathResidentLogin
	if admin {
		target = auth.PathAdminLogin
	}
	return b.post(target, url.Values{"email": {email}, "password": {pwd}})
}

func (b *browser) signup(name, email, unit string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.post("/resident/signup", url.Values{
		"name":            {name},
		"email":           {email},
		"unit":            {unit},
		"password":        {residentPassword},
		"passwordConfirm": {residentPassword},
	})
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, path string, query ...string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	loc, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, path, loc.Path)
	for i := 0; i+1 < len(query); i += 2 {
		assert.Equal(t, query[i+1], loc.Query().Get(query[i]))
	}
}

func TestServer_publicPages(t *testing.T) {
	app := setup(t)
	b := app.newBrowser(t)

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{path: "/", wantCode: http.StatusOK, wantBody: "Willow Creek HOA"},
		{path: "/about", wantCode: http.StatusOK, wantBody: "About &middot; Willow Creek HOA"},
		{path: "/amenities", wantCode: http.StatusOK, wantBody: "Amenities &middot; Willow Creek HOA"},
		{path: "/events", wantCode: http.StatusOK, wantBody: "Events &middot; Willow Creek HOA"},
		{path: "/contact", wantCode: http.StatusOK, wantBody: `name="body"`},
		{path: "/resident/signup", wantCode: http.StatusOK, wantBody: `action="/resident/signup"`},
		{path: "/resident/login", wantCode: http.StatusOK, wantBody: `action="/resident/login"`},
		{path: "/admin/login", wantCode: http.StatusOK, wantBody: `action="/admin/login"`},
		{path: "/nope", wantCode: http.StatusNotFound, wantBody: "Not Found"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rec := b.get(tc.path)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}

func TestServer_sessionCookie(t *testing.T) {
	app := setup(t)

	b := app.newBrowser(t)
	b.get("/")
	first, ok := b.cookies[sessionCookieName]
	require.True(t, ok)
	assert.True(t, first.HttpOnly)

	// a valid cookie is kept
	rec := b.get("/")
	assert.Empty(t, rec.Result().Cookies())

	// a forged cookie is replaced
	b.cookies[sessionCookieName] = &http.Cookie{Name: sessionCookieName, Value: "forged"}
	b.get("/")
	assert.NotEqual(t, "forged", b.cookies[sessionCookieName].Value)
	assert.NotEqual(t, first.Value, b.cookies[sessionCookieName].Value)
}

func TestServer_anonymousTrafficOpensNoSession(t *testing.T) {
	app := setup(t)

	for i := 0; i < 50; i++ {
		for _, path := range []string{"/", "/events", "/contact", "/resident", "/admin"} {
			rec := app.newBrowser(t).get(path)
			assert.NotEqual(t, http.StatusInternalServerError, rec.Code)
		}
		app.newBrowser(t).post("/logout", nil)
	}
	assert.Equal(t, 0, app.server.Sessions.Len())
	assert.Equal(t, 0, app.provider.Subscribers())

	// a returning visitor gets a session
	b := app.newBrowser(t)
	b.get("/")
	b.get("/")
	assert.Equal(t, 1, app.server.Sessions.Len())
}

func TestServer_loginRotatesSession(t *testing.T) {
	app := setup(t)

	b := app.newBrowser(t)
	b.get("/")
	planted := *b.cookies[sessionCookieName]

	// a failed login keeps the session
	rec := b.login(true, testutil.BoardEmail, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, planted.Value, b.cookies[sessionCookieName].Value)

	assertRedirect(t, b.login(true, testutil.BoardEmail, boardPassword), "/admin")
	assert.NotEqual(t, planted.Value, b.cookies[sessionCookieName].Value)
	assert.Equal(t, http.StatusOK, b.get("/admin").Code)

	// the cookie issued before the login is not signed in
	attacker := app.newBrowser(t)
	attacker.cookies[sessionCookieName] = &planted
	assert.Equal(t, http.StatusUnauthorized, attacker.get("/admin").Code)

	// signing in again retires the previous session
	signedIn := *b.cookies[sessionCookieName]
	assertRedirect(t, b.login(true, testutil.BoardEmail, boardPassword), "/admin")
	stale := app.newBrowser(t)
	stale.cookies[sessionCookieName] = &signedIn
	assert.Equal(t, http.StatusUnauthorized, stale.get("/admin").Code)
	assert.Equal(t, http.StatusOK, b.get("/admin").Code)
}

func TestServer_healthz(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		app := setup(t, func(_ *core.Config, deps *Deps) {
			deps.StatusCheck = func(context.Context) error { return nil }
		})
		rec := app.newBrowser(t).get("/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status": "ok", "build": "test"}`, rec.Body.String())
	})

	t.Run("storage down", func(t *testing.T) {
		app := setup(t, func(_ *core.Config, deps *Deps) {
			deps.StatusCheck = func(context.Context) error { return errors.New("connection refused") }
		})
		rec := app.newBrowser(t).get("/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status": "db not ready", "build": "test"}`, rec.Body.String())
	})
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)
	b := app.newBrowser(t)

	b.get("/")
	b.login(false, "nobody@willowcreek.test", "whatever")

	rec := b.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `hoaportal_http_requests_total{code="200",method="GET",route="/"} 1`)
	assert.Contains(t, body, `hoaportal_logins_total{outcome="rejected",portal="resident"} 1`)
	assert.Contains(t, body, "hoaportal_auth_sessions 1")
}

func TestServer_csrf(t *testing.T) {
	app := setup(t, func(conf *core.Config, _ *Deps) {
		conf.Server.DisableCSRF = false
	})
	b := app.newBrowser(t)

	rec := b.get("/contact")
	require.Equal(t, http.StatusOK, rec.Code)
	token, ok := b.cookies["hoa_csrf"]
	require.True(t, ok)
	assert.Contains(t, rec.Body.String(), `name="_csrf" value="`+token.Value+`"`)

	form := url.Values{
		"name":  {"Jane Doe"},
		"email": {"jane@willowcreek.test"},
		"body":  {"Is the pool open on Mondays?"},
	}
	rec = b.post("/contact", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	form.Set("_csrf", "forged")
	rec = b.post("/contact", form)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	form.Set("_csrf", token.Value)
	rec = b.post("/contact", form)
	assertRedirect(t, rec, "/contact", "notice", "message-sent")
}

func TestServer_contact(t *testing.T) {
	app := setup(t)
	b := app.newBrowser(t)

	rec := b.post("/contact", url.Values{"name": {"Jane Doe"}, "email": {"jane"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Jane Doe"`)
	assert.Empty(t, app.mail.SentMessages())

	rec = b.post("/contact", url.Values{
		"name":    {"Jane Doe"},
		"email":   {"jane@willowcreek.test"},
		"subject": {"Pool hours"},
		"body":    {"Is the pool open on Mondays?"},
	})
	assertRedirect(t, rec, "/contact", "notice", "message-sent")

	rec = b.get(rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, rec.Body.String(), "Your message has been sent to the board.")

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, testutil.BoardEmail, sent[0].To[0].Address)
}
