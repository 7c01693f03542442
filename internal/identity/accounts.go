package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/infrastructure/docstore"
	"github.com/example/storefront/internal/infrastructure/localcache"
)

const (
	UsersCollection = "users"

	DemoUID      = "1"
	DemoName     = "Demo User"
	DemoEmail    = "demo@example.com"
	DemoPassword = "password"
)

// CacheAccounts keeps accounts under the "registeredUsers" cache key.
type CacheAccounts struct {
	mu    sync.Mutex
	cache localcache.Cache
}

func NewCacheAccounts(cache localcache.Cache) *CacheAccounts {
	return &CacheAccounts{cache: cache}
}

func (a *CacheAccounts) load() ([]Account, error) {
	var accounts []Account
	if _, err := a.cache.Get(localcache.KeyRegisteredUsers, &accounts); err != nil {
		return nil, fmt.Errorf("failed to read registered users: %w", err)
	}
	return accounts, nil
}

func (a *CacheAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	accounts, err := a.load()
	if err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	for _, acc := range accounts {
		if NormalizeEmail(acc.Email) == email {
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (a *CacheAccounts) Create(ctx context.Context, account Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	accounts, err := a.load()
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if NormalizeEmail(acc.Email) == NormalizeEmail(account.Email) {
			return ErrEmailInUse
		}
	}
	return a.cache.Set(localcache.KeyRegisteredUsers, append(accounts, account))
}

func (a *CacheAccounts) Update(ctx context.Context, account Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	accounts, err := a.load()
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].UID == account.UID {
			accounts[i] = account
			return a.cache.Set(localcache.KeyRegisteredUsers, accounts)
		}
	}
	return ErrAccountNotFound
}

// DocumentAccounts keeps one document per account in the "users" collection,
// keyed by uid.
type DocumentAccounts struct {
	store docstore.Store
}

func NewDocumentAccounts(store docstore.Store) *DocumentAccounts {
	return &DocumentAccounts{store: store}
}

func (a *DocumentAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	docs, err := a.store.QueryDocuments(ctx, UsersCollection,
		[]docstore.Where{{Field: "email", Op: docstore.OpEqual, Value: NormalizeEmail(email)}}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrAccountNotFound
	}

	var acc Account
	if err := docs[0].DataTo(&acc); err != nil {
		return nil, err
	}
	acc.UID = docs[0].ID
	return &acc, nil
}

func (a *DocumentAccounts) Create(ctx context.Context, account Account) error {
	_, err := a.FindByEmail(ctx, account.Email)
	if err == nil {
		return ErrEmailInUse
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	account.Email = NormalizeEmail(account.Email)
	return a.store.AtomicMultiWrite(ctx, []docstore.Write{{
		Kind:       docstore.WriteSet,
		Collection: UsersCollection,
		ID:         account.UID,
		Data:       account,
	}})
}

func (a *DocumentAccounts) Update(ctx context.Context, account Account) error {
	err := a.store.UpdateDocument(ctx, UsersCollection, account.UID, map[string]any{
		"displayName": account.DisplayName,
		"photoURL":    account.PhotoURL,
		"phoneNumber": account.PhoneNumber,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

// SeedDemo registers the demo account unless it already exists.
func SeedDemo(ctx context.Context, accounts Accounts) error {
	_, err := accounts.FindByEmail(ctx, DemoEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}
	err = accounts.Create(ctx, Account{
		Identity: Identity{
			UID:         DemoUID,
			Email:       DemoEmail,
			DisplayName: DemoName,
		},
		PasswordHash: hash,
	})
	if errors.Is(err, ErrEmailInUse) {
		return nil
	}
	return err
}
