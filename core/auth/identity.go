// Package auth holds the authentication gate of the portal: the identity
// provider boundary, the role resolver, the per-session auth context and the
// route guard deciding what a visitor may see.
package auth

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Identity is the provider's record of a signed-in person.
// A nil *Identity means nobody is signed in.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
}

// Unsubscribe deregisters a callback registered with Client.OnIdentityChanged.
// Implementations must tolerate repeated calls.
type Unsubscribe func()

// Client is the per-session view of the identity provider.
type Client interface {
	// SignIn fails with *AuthFailure when the provider rejects the credentials.
	// On success the new identity is pushed to the registered callbacks; SignIn does not return it.
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	// OnIdentityChanged registers cb. The current identity is pushed asynchronously after
	// registration, then again on every change.
	OnIdentityChanged(cb func(*Identity)) Unsubscribe
}

// Provider error codes
const (
	CodeUserNotFound       = "auth/user-not-found"
	CodeWrongPassword      = "auth/wrong-password"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeUserDisabled       = "auth/user-disabled"
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeWeakPassword       = "auth/weak-password"
	CodeTooManyRequests    = "auth/too-many-requests"
	CodeInternalError      = "auth/internal-error"
	CodeInvalidCredentials = "auth/invalid-credential"
)

var friendlyMessages = map[string]string{
	CodeUserNotFound:       "No account was found with this email address.",
	CodeWrongPassword:      "Incorrect password. Please try again.",
	CodeInvalidCredentials: "Invalid email or password.",
	CodeInvalidEmail:       "Please enter a valid email address.",
	CodeUserDisabled:       "This account has been disabled. Please contact the board.",
	CodeEmailAlreadyInUse:  "An account with this email address already exists.",
	CodeTooManyRequests:    "Too many attempts. Please wait a moment and try again.",
}

// AuthFailure is a rejection reported by the identity provider.
type AuthFailure struct {
	Code    string
	Message string
	Err     error
}

func NewAuthFailure(code, msg string) *AuthFailure {
	return &AuthFailure{Code: code, Message: msg}
}

func (f *AuthFailure) Error() string {
	if f.Message == "" {
		return f.Code
	}
	return fmt.Sprintf("%s (%s)", f.Message, f.Code)
}

func (f *AuthFailure) Unwrap() error { return f.Err }

// FriendlyMessage returns the text shown to a visitor for err.
// Known provider codes get a friendlier text; anything else is surfaced verbatim.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var failure *AuthFailure
	if errors.As(err, &failure) {
		if msg, ok := friendlyMessages[failure.Code]; ok {
			return msg
		}
		if failure.Message != "" {
			return failure.Message
		}
	}
	return err.Error()
}

// IsCode reports whether err is an *AuthFailure with the given code.
func IsCode(err error, code string) bool {
	var failure *AuthFailure
	return errors.As(err, &failure) && failure.Code == code
}
