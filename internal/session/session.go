package session

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/infrastructure/localcache"
)

const (
	// DefaultAvatarURL is completed with a seed derived from the user.
	DefaultAvatarURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

	// MaxProviderPhotoBytes is the largest inline photo forwarded to the
	// identity provider. Larger ones live in the local cache only.
	MaxProviderPhotoBytes = 1024 * 1024
)

var ErrNoActiveIdentity = errors.New("no authenticated user found")

type State string

const (
	StateResolving     State = "resolving"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// ProfileUpdate mirrors identity.ProfileChanges. Nil fields are untouched.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// Session tracks who is signed in for this process.
type Session struct {
	provider identity.Provider
	cache    localcache.Cache

	mu        sync.Mutex
	state     State
	user      *User
	pending   int
	lastError string
	listeners map[int]func(*User)
	nextID    int

	unsubscribe func()
}

// New subscribes to the provider. The provider reports the current identity
// immediately, so the session leaves StateResolving before New returns.
func New(provider identity.Provider, cache localcache.Cache) *Session {
	s := &Session{
		provider:  provider,
		cache:     cache,
		state:     StateResolving,
		listeners: make(map[int]func(*User)),
	}
	s.unsubscribe = provider.OnIdentityChanged(s.handleIdentityChanged)
	return s
}

// Close stops listening to the provider.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) handleIdentityChanged(id *identity.Identity) {
	var user *User
	if id != nil {
		user = &User{
			ID:     id.UID,
			Email:  id.Email,
			Name:   id.DisplayName,
			Phone:  id.PhoneNumber,
			Avatar: s.resolveAvatar(id),
		}
	}

	s.mu.Lock()
	s.user = user
	if user != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateAnonymous
	}
	s.mu.Unlock()

	s.notify(user)
}

// resolveAvatar prefers the cached inline avatar, then the provider photo,
// then a generated default.
func (s *Session) resolveAvatar(id *identity.Identity) string {
	var saved string
	ok, err := s.cache.Get(localcache.KeyUserAvatar, &saved)
	if err != nil {
		log.Printf("[Session] Failed to read cached avatar: %v", err)
	}
	if ok && err == nil && saved != "" {
		return saved
	}
	if id.PhotoURL != "" {
		return id.PhotoURL
	}
	seed := stripWhitespace(id.DisplayName)
	if seed == "" {
		seed = id.UID
	}
	return DefaultAvatarURL + seed
}

var whitespace = regexp.MustCompile(`\s+`)

func stripWhitespace(s string) string {
	return whitespace.ReplaceAllString(s, "")
}

// DefaultAvatar returns the generated avatar for a display name.
func DefaultAvatar(name string) string {
	return DefaultAvatarURL + stripWhitespace(name)
}

// Login reports whether the sign-in succeeded. Failures are available
// through LastError.
func (s *Session) Login(ctx context.Context, email, password string) bool {
	s.begin()
	defer s.end()

	if _, err := s.provider.SignIn(ctx, email, password); err != nil {
		log.Printf("[Session] Login error: %v", err)
		s.fail(err, "Invalid email or password")
		return false
	}
	s.clearError()
	log.Printf("[Session] Logged in %s", email)
	return true
}

// Signup creates the identity, names it and signs it in.
func (s *Session) Signup(ctx context.Context, name, email, password string) bool {
	s.begin()
	defer s.end()

	if _, err := s.provider.SignUp(ctx, email, password); err != nil {
		log.Printf("[Session] Signup error: %v", err)
		s.fail(err, "An error occurred during signup")
		return false
	}

	avatar := DefaultAvatar(name)
	if _, err := s.provider.UpdateProfile(ctx, identity.ProfileChanges{
		DisplayName: &name,
		PhotoURL:    &avatar,
	}); err != nil {
		log.Printf("[Session] Signup error: %v", err)
		s.fail(err, "An error occurred during signup")
		return false
	}

	s.mu.Lock()
	var user *User
	if s.user != nil {
		updated := *s.user
		updated.Name = name
		updated.Avatar = avatar
		s.user = &updated
		user = &updated
	}
	s.mu.Unlock()
	if user != nil {
		s.notify(user)
	}

	s.clearError()
	log.Printf("[Session] Account created for %s", email)
	return true
}

// Logout signs out. Provider errors are logged and recorded only.
func (s *Session) Logout(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		log.Printf("[Session] Logout error: %v", err)
		s.fail(err, "An error occurred during logout")
		return
	}
	s.clearError()
}

// UpdateProfile forwards changes to the provider and applies them to the
// in-memory user. Inline data:image photos are cached under "userAvatar";
// ones larger than MaxProviderPhotoBytes are not sent to the provider.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) (bool, error) {
	s.begin()
	defer s.end()

	if s.provider.CurrentIdentity() == nil {
		return false, ErrNoActiveIdentity
	}

	changes := identity.ProfileChanges{
		DisplayName: update.DisplayName,
		PhotoURL:    update.PhotoURL,
		PhoneNumber: update.PhoneNumber,
	}
	if photo := update.PhotoURL; photo != nil && strings.HasPrefix(*photo, "data:image") {
		if err := s.cache.Set(localcache.KeyUserAvatar, *photo); err != nil {
			log.Printf("[Session] Failed to cache avatar: %v", err)
		}
		if len(*photo) > MaxProviderPhotoBytes {
			changes.PhotoURL = nil
		}
	}

	if _, err := s.provider.UpdateProfile(ctx, changes); err != nil {
		log.Printf("[Session] Profile update error: %v", err)
		return false, err
	}

	s.mu.Lock()
	var user *User
	if s.user != nil {
		updated := *s.user
		if v := update.DisplayName; v != nil && *v != "" {
			updated.Name = *v
		}
		if v := update.PhotoURL; v != nil && *v != "" {
			updated.Avatar = *v
		}
		if v := update.PhoneNumber; v != nil && *v != "" {
			updated.Phone = *v
		}
		s.user = &updated
		user = &updated
	}
	s.mu.Unlock()
	if user != nil {
		s.notify(user)
	}
	return true, nil
}

// OnChange registers fn for identity changes and returns its unsubscribe.
func (s *Session) OnChange(fn func(*User)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) notify(user *User) {
	s.mu.Lock()
	listeners := make([]func(*User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(copyUser(user))
	}
}

func (s *Session) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// IsLoading is true while the initial identity is unresolved or an identity
// operation is in flight.
func (s *Session) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateResolving || s.pending > 0
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the user-facing message of the last failed operation.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) begin() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Session) end() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
}

func (s *Session) fail(err error, fallback string) {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *Session) clearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
