// Package identity is the portal's in-process identity provider. It keeps the
// credentials of every account, remembers who is signed in on which browser
// session and pushes identity changes to the session's subscribers.
package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
)

// MinPasswordLength is the shortest password the provider accepts.
const MinPasswordLength = 6

type Provider struct {
	creds    CredentialRepository
	signIns  SignInStore
	logger   core.Logger
	ttl      time.Duration
	hub      *hub
	nowFunc  func() time.Time
	fetchCtx func() (context.Context, context.CancelFunc)
}

// NewProvider returns a provider. Sign-ins expire after ttl; zero means never.
func NewProvider(creds CredentialRepository, signIns SignInStore, logger core.Logger, ttl time.Duration) *Provider {
	return &Provider{
		creds:   creds,
		signIns: signIns,
		logger:  logger,
		ttl:     ttl,
		hub:     newHub(),
		nowFunc: func() time.Time { return time.Now().UTC() },
		fetchCtx: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 5*time.Second)
		},
	}
}

// Client returns the provider client bound to browser session sid.
func (p *Provider) Client(sid string) auth.Client {
	return &sessionClient{provider: p, sid: sid}
}

// Subscribers returns the number of live subscriptions.
func (p *Provider) Subscribers() int {
	return p.hub.count()
}

// Register creates an account. It does not sign anybody in.
func (p *Provider) Register(ctx context.Context, email, password string) (*auth.Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, weakPassword()
	}

	now := p.nowFunc()
	cred := Credential{
		UID:       uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = cred.SetPassword(password); err != nil {
		return nil, internalFailure(errors.Wrap(err, "hashing password"))
	}

	cred, err = p.creds.CreateCredential(ctx, cred)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, auth.NewAuthFailure(auth.CodeEmailAlreadyInUse, "The email address is already in use by another account.")
		}
		return nil, internalFailure(errors.Wrap(err, "creating credential"))
	}
	return cred.Identity(), nil
}

// Lookup returns the identity registered with email.
func (p *Provider) Lookup(ctx context.Context, email string) (*auth.Identity, error) {
	cred, err := p.creds.GetCredentialByEmail(ctx, core.CleanString(email, true))
	if err != nil {
		return nil, err
	}
	return cred.Identity(), nil
}

func (p *Provider) SetPassword(ctx context.Context, email, password string) error {
	if len(password) < MinPasswordLength {
		return weakPassword()
	}
	cred, err := p.creds.GetCredentialByEmail(ctx, core.CleanString(email, true))
	if err != nil {
		return err
	}
	if err = cred.SetPassword(password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	cred.UpdatedAt = p.nowFunc()
	_, err = p.creds.UpdateCredential(ctx, cred)
	return err
}

// SetDisabled enables or disables an account. The sessions signed in to a disabled
// account are signed out: their sign-ins are dropped and nobody is pushed to them.
func (p *Provider) SetDisabled(ctx context.Context, email string, disabled bool) error {
	cred, err := p.creds.GetCredentialByEmail(ctx, core.CleanString(email, true))
	if err != nil {
		return err
	}
	cred.Disabled = disabled
	cred.UpdatedAt = p.nowFunc()
	if _, err = p.creds.UpdateCredential(ctx, cred); err != nil {
		return err
	}
	if disabled {
		if n := p.hub.refetch(cred.UID); n > 0 {
			p.logger.Debug(fmt.Sprintf("identity: signing out %d subscriptions of disabled account %s", n, cred.UID))
		}
	}
	return nil
}

// Unregister deletes the account of uid and signs its sessions out.
func (p *Provider) Unregister(ctx context.Context, uid string) error {
	if err := p.creds.DeleteCredential(ctx, uid); err != nil {
		return err
	}
	p.hub.refetch(uid)
	return nil
}

func (p *Provider) signIn(ctx context.Context, sid, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	cred, err := p.creds.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return auth.NewAuthFailure(auth.CodeUserNotFound, "There is no user record corresponding to this identifier.")
		}
		return internalFailure(errors.Wrap(err, "getting credential"))
	}
	if err = cred.CheckPassword(password); err != nil {
		return auth.NewAuthFailure(auth.CodeWrongPassword, "The password is invalid.")
	}
	if cred.Disabled {
		return auth.NewAuthFailure(auth.CodeUserDisabled, "The user account has been disabled by an administrator.")
	}

	if err = p.signIns.SetSignIn(ctx, sid, cred.UID, p.ttl); err != nil {
		return internalFailure(errors.Wrap(err, "storing sign-in"))
	}

	cred.LastLogin = null.TimeFrom(p.nowFunc())
	if _, err = p.creds.UpdateCredential(ctx, cred); err != nil {
		p.logger.Warn(fmt.Sprintf("identity: recording last login of %s: %v", cred.UID, err))
	}

	p.hub.publish(sid, cred.Identity())
	return nil
}

func (p *Provider) signOut(ctx context.Context, sid string) error {
	if err := p.signIns.DeleteSignIn(ctx, sid); err != nil && !errors.Is(err, ErrNotFound) {
		return internalFailure(errors.Wrap(err, "deleting sign-in"))
	}
	p.hub.publish(sid, nil)
	return nil
}

func (p *Provider) subscribe(sid string, cb func(*auth.Identity)) auth.Unsubscribe {
	sub := p.hub.add(sid, cb)
	go p.deliver(sub)
	sub.requestFetch()

	return func() {
		sub.cancel()
		p.hub.remove(sub)
	}
}

func (p *Provider) deliver(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.signal:
		}

		id, fetch, ok := sub.take()
		if !ok {
			continue
		}
		if fetch {
			id = p.current(sub.sid)
			sub.resolved(id)
		}
		if sub.cancelled() {
			return
		}
		sub.cb(id)
	}
}

// current returns who is signed in on sid. Lookup failures resolve to nobody.
func (p *Provider) current(sid string) *auth.Identity {
	ctx, cancel := p.fetchCtx()
	defer cancel()

	uid, err := p.signIns.GetSignIn(ctx, sid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.logger.Error(fmt.Sprintf("identity: getting sign-in: %v", err))
		}
		return nil
	}

	cred, err := p.creds.GetCredentialByUID(ctx, uid)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = p.signIns.DeleteSignIn(ctx, sid)
		return nil
	case err != nil:
		p.logger.Error(fmt.Sprintf("identity: getting credential %s: %v", uid, err))
		return nil
	case cred.Disabled:
		_ = p.signIns.DeleteSignIn(ctx, sid)
		return nil
	}
	return cred.Identity()
}

func normalizeEmail(email string) (string, error) {
	email = core.CleanString(email, true)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return "", auth.NewAuthFailure(auth.CodeInvalidEmail, "The email address is badly formatted.")
	}
	return email, nil
}

func weakPassword() error {
	return auth.NewAuthFailure(auth.CodeWeakPassword, fmt.Sprintf("Password should be at least %d characters.", MinPasswordLength))
}

func internalFailure(err error) error {
	return &auth.AuthFailure{Code: auth.CodeInternalError, Message: "An internal error has occurred.", Err: err}
}

// sessionClient is the auth.Client of one browser session.
type sessionClient struct {
	provider *Provider
	sid      string
}

func (c *sessionClient) SignIn(ctx context.Context, email, password string) error {
	return c.provider.signIn(ctx, c.sid, email, password)
}

func (c *sessionClient) SignOut(ctx context.Context) error {
	return c.provider.signOut(ctx, c.sid)
}

func (c *sessionClient) OnIdentityChanged(cb func(*auth.Identity)) auth.Unsubscribe {
	return c.provider.subscribe(c.sid, cb)
}
