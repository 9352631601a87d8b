package echoweb

import (
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/document"
	"github.com/trezcool/hoaportal/core/identity"
	"github.com/trezcool/hoaportal/core/resident"
	emailsvc "github.com/trezcool/hoaportal/services/email"
	inmemdb "github.com/trezcool/hoaportal/storage/database/inmem"
	"github.com/trezcool/hoaportal/tests"
)

// failingStore rejects writes while failing is set.
type failingStore struct {
	document.Store
	failing atomic.Bool
}

func (fs *failingStore) Set(ctx context.Context, collection, id string, flds document.Fields) error {
	if fs.failing.Load() {
		return errors.New("store unavailable")
	}
	return fs.Store.Set(ctx, collection, id, flds)
}

func TestServer_signup(t *testing.T) {
	app := setup(t)
	b := app.newBrowser(t)

	rec := b.signup("Jane Doe", "Jane@WillowCreek.test", "12B")
	assertRedirect(t, rec, "/resident")

	// the new resident is signed in right away
	rec = b.get("/resident")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Welcome, Jane Doe")
	assert.Contains(t, body, "jane@willowcreek.test")
	assert.Contains(t, body, "Pending approval by the board")

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@willowcreek.test", sent[0].To[0].Address)

	// the account exists on the provider with the same password
	other := app.newBrowser(t)
	assertRedirect(t, other.login(false, "jane@willowcreek.test", residentPassword), "/resident")
}

func TestServer_signupProfileFailure(t *testing.T) {
	store := &failingStore{Store: inmemdb.NewDocumentStore(inmemdb.Open())}
	store.failing.Store(true)
	app := setup(t, func(conf *core.Config, deps *Deps) {
		translator := core.NewTranslator()
		mailSvc := emailsvc.NewConsoleServiceMock(conf, deps.Logger)
		deps.Residents = resident.NewService(store, mailSvc, core.NewValidator(translator), translator)
	})
	b := app.newBrowser(t)

	rec := b.signup("Jane Doe", "jane@willowcreek.test", "12B")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your profile could not be saved")

	// the credential is removed with the failed profile
	_, err := app.provider.Lookup(context.Background(), "jane@willowcreek.test")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.Equal(t, http.StatusUnauthorized, b.get("/resident").Code)
	rec = b.login(false, "jane@willowcreek.test", residentPassword)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "No account was found with this email address.")

	// the same email can sign up once the store recovers
	store.failing.Store(false)
	assertRedirect(t, b.signup("Jane Doe", "jane@willowcreek.test", "12B"), "/resident")
	assert.Equal(t, http.StatusOK, b.get("/resident").Code)
}

func TestServer_signupInvalid(t *testing.T) {
	app := setup(t)
	testutil.CreateCredential(t, app.creds, "taken@willowcreek.test", residentPassword, false)

	valid := func() url.Values {
		return url.Values{
			"name":            {"Jane Doe"},
			"email":           {"jane@willowcreek.test"},
			"unit":            {"12B"},
			"password":        {residentPassword},
			"passwordConfirm": {residentPassword},
		}
	}
	with := func(key, value string) url.Values {
		form := valid()
		form.Set(key, value)
		return form
	}

	tests := []struct {
		name     string
		form     url.Values
		wantBody string
	}{
		{name: "no name", form: with("name", ""), wantBody: "this field is required"},
		{name: "bad unit", form: with("unit", "12/B"), wantBody: "only letters, digits, spaces"},
		{name: "passwords differ", form: with("passwordConfirm", "Tr1cky!Pas"), wantBody: "the two password fields didn"},
		{name: "numeric password", form: func() url.Values {
			form := with("password", "1234567890")
			form.Set("passwordConfirm", "1234567890")
			return form
		}(), wantBody: "password cannot be entirely numeric"},
		{name: "email taken", form: with("email", "taken@willowcreek.test"), wantBody: "An account with this email address already exists."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := app.newBrowser(t)
			rec := b.post("/resident/signup", tc.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, tc.wantBody)
			assert.NotContains(t, body, residentPassword)
			assert.Equal(t, http.StatusUnauthorized, b.get("/resident").Code)
		})
	}
	assert.Empty(t, app.mail.SentMessages())
}

func TestServer_login(t *testing.T) {
	app := setup(t)
	testutil.CreateCredential(t, app.creds, "jane@willowcreek.test", residentPassword, false)
	testutil.CreateCredential(t, app.creds, "gone@willowcreek.test", residentPassword, true)

	tests := []struct {
		name     string
		admin    bool
		email    string
		password string
		wantBody string
	}{
		{name: "unknown email", email: "nobody@willowcreek.test", password: residentPassword, wantBody: "No account was found with this email address."},
		{name: "wrong password", email: "jane@willowcreek.test", password: "nope", wantBody: "Incorrect password. Please try again."},
		{name: "bad email", email: "jane", password: residentPassword, wantBody: "Please enter a valid email address."},
		{name: "disabled", email: "gone@willowcreek.test", password: residentPassword, wantBody: "This account has been disabled. Please contact the board."},
		{name: "admin wrong password", admin: true, email: testutil.BoardEmail, password: "nope", wantBody: "Incorrect password. Please try again."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := app.newBrowser(t)
			rec := b.login(tc.admin, tc.email, tc.password)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
			assert.Contains(t, rec.Body.String(), `value="`+tc.email+`"`)
		})
	}
}

func TestServer_logout(t *testing.T) {
	app := setup(t)
	b := app.newBrowser(t)
	testutil.CreateCredential(t, app.creds, "jane@willowcreek.test", residentPassword, false)

	b.login(false, "jane@willowcreek.test", residentPassword)
	require.Equal(t, http.StatusOK, b.get("/resident").Code)

	rec := b.post("/logout", nil)
	assertRedirect(t, rec, "/", "notice", "signed-out")

	rec = b.get("/?notice=signed-out")
	assert.Contains(t, rec.Body.String(), "You have been signed out.")
	assert.Contains(t, rec.Body.String(), `href="/resident/login">Resident login`)

	assert.Equal(t, http.StatusUnauthorized, b.get("/resident").Code)
}
