package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrEmailInUse         = errors.New("Email already in use")
	ErrInvalidEmail       = errors.New("email is required")
	ErrAccountNotFound    = errors.New("account not found")
	ErrNotSignedIn        = errors.New("no user is signed in")
)

// Identity is the signed-in principal as the provider sees it.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// ProfileChanges holds optional profile fields. Nil fields are left as is.
type ProfileChanges struct {
	DisplayName *string
	PhotoURL    *string
	PhoneNumber *string
}

// Apply returns a copy of id with the non-nil changes written over it.
func (c ProfileChanges) Apply(id Identity) Identity {
	if c.DisplayName != nil {
		id.DisplayName = *c.DisplayName
	}
	if c.PhotoURL != nil {
		id.PhotoURL = *c.PhotoURL
	}
	if c.PhoneNumber != nil {
		id.PhoneNumber = *c.PhoneNumber
	}
	return id
}

// Provider is the identity collaborator the session talks to.
type Provider interface {
	// OnIdentityChanged calls fn with the current identity right away and
	// again after every sign-in or sign-out. A nil identity means signed out.
	OnIdentityChanged(fn func(*Identity)) func()
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	UpdateProfile(ctx context.Context, changes ProfileChanges) (*Identity, error)
	SignOut(ctx context.Context) error
	CurrentIdentity() *Identity
}

// Account is a registered identity with its password hash.
type Account struct {
	Identity
	PasswordHash string `json:"passwordHash"`
}

// Accounts is a registry of accounts keyed by uid and email.
type Accounts interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
