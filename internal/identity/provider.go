package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/infrastructure/localcache"
	"github.com/google/uuid"
)

// LocalProvider signs users in against an account registry and remembers the
// current identity under the "user" cache key across restarts.
type LocalProvider struct {
	accounts Accounts
	cache    localcache.Cache

	mu        sync.Mutex
	current   *Identity
	listeners map[int]func(*Identity)
	nextID    int
}

// NewProvider restores the persisted identity, if any.
func NewProvider(accounts Accounts, cache localcache.Cache) *LocalProvider {
	p := &LocalProvider{
		accounts:  accounts,
		cache:     cache,
		listeners: make(map[int]func(*Identity)),
	}

	var saved Identity
	ok, err := cache.Get(localcache.KeyUser, &saved)
	if err != nil {
		log.Printf("[Identity] Ignoring unreadable persisted user: %v", err)
	}
	if ok && err == nil && saved.UID != "" {
		p.current = &saved
	}
	return p
}

func (p *LocalProvider) OnIdentityChanged(fn func(*Identity)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	current := copyIdentity(p.current)
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrInvalidEmail
	}

	acc, err := p.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	if !auth.CheckPassword(password, acc.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	id := acc.Identity
	p.setCurrent(&id)
	return copyIdentity(&id), nil
}

// SignUp registers a new account and signs it in.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrInvalidEmail
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	acc := Account{
		Identity: Identity{
			UID:   uuid.New().String(),
			Email: NormalizeEmail(email),
		},
		PasswordHash: hash,
	}
	if err := p.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}

	id := acc.Identity
	p.setCurrent(&id)
	return copyIdentity(&id), nil
}

// UpdateProfile changes the current identity without notifying listeners.
func (p *LocalProvider) UpdateProfile(ctx context.Context, changes ProfileChanges) (*Identity, error) {
	p.mu.Lock()
	current := copyIdentity(p.current)
	p.mu.Unlock()
	if current == nil {
		return nil, ErrNotSignedIn
	}

	acc, err := p.accounts.FindByEmail(ctx, current.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	acc.Identity = changes.Apply(acc.Identity)
	if err := p.accounts.Update(ctx, *acc); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	updated := changes.Apply(*current)
	p.mu.Lock()
	if p.current != nil && p.current.UID == updated.UID {
		p.current = &updated
	}
	p.mu.Unlock()
	p.persist(&updated)
	return copyIdentity(&updated), nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

func (p *LocalProvider) CurrentIdentity() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

func (p *LocalProvider) setCurrent(id *Identity) {
	p.mu.Lock()
	p.current = copyIdentity(id)
	listeners := make([]func(*Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	p.persist(id)
	for _, fn := range listeners {
		fn(copyIdentity(id))
	}
}

func (p *LocalProvider) persist(id *Identity) {
	var err error
	if id == nil {
		err = p.cache.Remove(localcache.KeyUser)
	} else {
		err = p.cache.Set(localcache.KeyUser, id)
	}
	if err != nil {
		log.Printf("[Identity] Failed to persist current user: %v", err)
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
