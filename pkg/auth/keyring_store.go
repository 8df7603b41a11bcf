package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/zalando/go-keyring"
)

const keyringService = "mediamirror"

// KeyringStore keeps each account as one keychain secret named
// "<site>/<username>". The keychain cannot be enumerated, so a per-site
// index secret lists the stored usernames.
type KeyringStore struct{}

// NewKeyringStore returns a store when the system keychain is usable.
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "availability-check"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func indexKey(site string) string {
	return site + "#accounts"
}

// Store saves account and records it in the site index.
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Site == "" || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(keyringService, accountKey(account.Site, account.Username), string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	names, err := k.index(account.Site)
	if err != nil {
		return err
	}
	if !slices.Contains(names, account.Username) {
		names = append(names, account.Username)
		slices.Sort(names)
		return k.setIndex(account.Site, names)
	}
	return nil
}

// Retrieve reads the account of username on site.
func (k *KeyringStore) Retrieve(site, username string) (*Account, error) {
	if site == "" || username == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, accountKey(site, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns the indexed accounts of site. Index entries whose secret is
// gone are skipped.
func (k *KeyringStore) List(site string) ([]*Account, error) {
	names, err := k.index(site)
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account, err := k.Retrieve(site, name)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes the account and its index entry.
func (k *KeyringStore) Delete(site, username string) error {
	if site == "" || username == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, accountKey(site, username))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	names, err := k.index(site)
	if err != nil {
		return err
	}
	names = slices.DeleteFunc(names, func(n string) bool { return n == username })
	if len(names) == 0 {
		_ = keyring.Delete(keyringService, indexKey(site))
		return nil
	}
	return k.setIndex(site, names)
}

func (k *KeyringStore) index(site string) ([]string, error) {
	data, err := keyring.Get(keyringService, indexKey(site))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("corrupt keyring index for %s: %w", site, err)
	}
	return names, nil
}

func (k *KeyringStore) setIndex(site string, names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, indexKey(site), string(data)); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}
