package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hoaportal/core/auth"
)

var (
	// errors
	ErrNotFound    = errors.New("credential not found")
	ErrEmailExists = errors.New("a credential with this email already exists")
)

// Credential is the provider's record of an account.
type Credential struct {
	UID          string    `db:"uid"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Disabled     bool      `db:"disabled"`
	CreatedAt    time.Time `db:"created_at"` // UTC
	UpdatedAt    time.Time `db:"updated_at"` // UTC
	LastLogin    null.Time `db:"last_login"` // UTC
}

func (c *Credential) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return nil
}

func (c *Credential) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(pwd))
}

func (c Credential) Identity() *auth.Identity {
	return &auth.Identity{UID: c.UID, Email: c.Email}
}

type (
	// CredentialRepository stores the accounts of the provider.
	CredentialRepository interface {
		// CreateCredential fails with ErrEmailExists when the email is taken.
		CreateCredential(ctx context.Context, cred Credential) (Credential, error)
		GetCredentialByUID(ctx context.Context, uid string) (Credential, error)
		GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
		UpdateCredential(ctx context.Context, cred Credential) (Credential, error)
		// DeleteCredential fails with ErrNotFound when uid is unknown.
		DeleteCredential(ctx context.Context, uid string) error
	}

	// SignInStore remembers which account is signed in on which session.
	SignInStore interface {
		// GetSignIn fails with ErrNotFound when nobody is signed in on sid.
		GetSignIn(ctx context.Context, sid string) (uid string, err error)
		SetSignIn(ctx context.Context, sid, uid string, ttl time.Duration) error
		DeleteSignIn(ctx context.Context, sid string) error
	}
)
