package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/identity"
)

// MockProvider is a mock implementation of identity.Provider for testing
type MockProvider struct {
	mu        sync.Mutex
	current   *identity.Identity
	listeners map[int]func(*identity.Identity)
	nextID    int

	SignInErr        error
	SignUpErr        error
	UpdateProfileErr error
	SignOutErr       error

	// For tracking calls in tests
	UpdateProfileCalls []identity.ProfileChanges
	SignOutCalls       int
}

// NewMockProvider creates a MockProvider signed in as current (nil for none)
func NewMockProvider(current *identity.Identity) *MockProvider {
	return &MockProvider{
		current:   current,
		listeners: make(map[int]func(*identity.Identity)),
	}
}

func (m *MockProvider) OnIdentityChanged(fn func(*identity.Identity)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	current := m.current
	m.mu.Unlock()

	fn(current)
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *MockProvider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	if m.SignInErr != nil {
		return nil, m.SignInErr
	}
	id := &identity.Identity{UID: "uid-" + email, Email: email}
	m.Emit(id)
	return id, nil
}

func (m *MockProvider) SignUp(ctx context.Context, email, password string) (*identity.Identity, error) {
	if m.SignUpErr != nil {
		return nil, m.SignUpErr
	}
	id := &identity.Identity{UID: "uid-" + email, Email: email}
	m.Emit(id)
	return id, nil
}

func (m *MockProvider) UpdateProfile(ctx context.Context, changes identity.ProfileChanges) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateProfileCalls = append(m.UpdateProfileCalls, changes)
	if m.UpdateProfileErr != nil {
		return nil, m.UpdateProfileErr
	}
	if m.current == nil {
		return nil, identity.ErrNotSignedIn
	}
	updated := changes.Apply(*m.current)
	m.current = &updated
	return &updated, nil
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.SignOutCalls++
	err := m.SignOutErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.Emit(nil)
	return nil
}

func (m *MockProvider) CurrentIdentity() *identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Emit sets the current identity and notifies listeners
func (m *MockProvider) Emit(id *identity.Identity) {
	m.mu.Lock()
	m.current = id
	listeners := make([]func(*identity.Identity), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}
