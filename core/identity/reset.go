package identity

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core"
	"github.com/trezcool/hoaportal/core/auth"
)

const resetSalt = "hoaportal.identity.password_reset"

var (
	// errors
	ErrInvalidResetLink = errors.New("invalid password reset link")
	ErrResetLinkExpired = errors.New("password reset link expired")

	tsEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// PasswordResets emails password reset links and sets the new passwords chosen from them.
// A link stops working once the password changes or the account signs in.
type PasswordResets struct {
	provider *Provider
	mail     core.EmailService
	key      [32]byte
	timeout  time.Duration
	baseURL  string
	nowFunc  func() time.Time
}

func NewPasswordResets(provider *Provider, mailSvc core.EmailService, conf *core.Config) *PasswordResets {
	return &PasswordResets{
		provider: provider,
		mail:     mailSvc,
		key:      sha256.Sum256([]byte(resetSalt + conf.SecretKey)),
		timeout:  conf.Auth.PasswordResetTimeout,
		baseURL:  conf.BaseURL,
		nowFunc:  time.Now,
	}
}

// ResetPath returns the path of the reset link of account uid.
func ResetPath(uid, token string) string {
	return fmt.Sprintf("/password-reset/%s/%s", base64.RawURLEncoding.EncodeToString([]byte(uid)), token)
}

// Request emails a reset link to the account of email.
// It fails with ErrNotFound for unknown and disabled accounts.
func (pr *PasswordResets) Request(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	cred, err := pr.provider.creds.GetCredentialByEmail(ctx, email)
	if err != nil {
		return err
	}
	if cred.Disabled {
		return ErrNotFound
	}

	token, err := pr.makeToken(cred, daysSince2001(pr.nowFunc()))
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	pr.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: cred.Email}},
		Subject:      "Reset your password",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Link": pr.baseURL + ResetPath(cred.UID, token),
			"Days": pr.timeoutDays(),
		},
	})
	return nil
}

// Check returns the identity a reset link was issued for.
func (pr *PasswordResets) Check(ctx context.Context, encodedUID, token string) (*auth.Identity, error) {
	cred, err := pr.check(ctx, encodedUID, token)
	if err != nil {
		return nil, err
	}
	return cred.Identity(), nil
}

// Confirm sets the password chosen from a reset link. The link is spent afterwards.
func (pr *PasswordResets) Confirm(ctx context.Context, encodedUID, token, password string) error {
	cred, err := pr.check(ctx, encodedUID, token)
	if err != nil {
		return err
	}
	return pr.provider.SetPassword(ctx, cred.Email, password)
}

func (pr *PasswordResets) check(ctx context.Context, encodedUID, token string) (Credential, error) {
	uid, err := base64.RawURLEncoding.DecodeString(encodedUID)
	if err != nil {
		return Credential{}, ErrInvalidResetLink
	}
	cred, err := pr.provider.creds.GetCredentialByUID(ctx, string(uid))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credential{}, ErrInvalidResetLink
		}
		return Credential{}, errors.Wrap(err, "getting credential")
	}
	if cred.Disabled {
		return Credential{}, ErrInvalidResetLink
	}
	if err = pr.verifyToken(cred, token); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func (pr *PasswordResets) verifyToken(cred Credential, token string) error {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return ErrInvalidResetLink
	}
	data, err := tsEncoding.DecodeString(parts[0])
	if err != nil {
		return ErrInvalidResetLink
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidResetLink
	}

	// tampered?
	want, err := pr.makeToken(cred, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 0 {
		return ErrInvalidResetLink
	}

	if daysSince2001(pr.nowFunc())-ts > pr.timeoutDays() {
		return ErrResetLinkExpired
	}
	return nil
}

func (pr *PasswordResets) timeoutDays() int {
	return int(pr.timeout / (24 * time.Hour))
}

func (pr *PasswordResets) makeToken(cred Credential, ts int) (string, error) {
	h := hmac.New(sha256.New, pr.key[:])
	if _, err := h.Write(tokenState(cred, ts)); err != nil {
		return "", err
	}
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return tsEncoding.EncodeToString([]byte(strconv.Itoa(ts))) + "-" + sig, nil
}

// tokenState is the signed account state: changing the password or signing in invalidates the token.
func tokenState(cred Credential, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(cred.UID)
	val.Write(cred.PasswordHash)
	if cred.LastLogin.Valid {
		val.WriteString(cred.LastLogin.Time.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}

func daysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}
