package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Account holds the credentials of one account on one site.
type Account struct {
	Site         string    `json:"site"`
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// accountKey identifies an account across sites.
func accountKey(site, username string) string {
	return site + "/" + username
}

// CredentialStore keeps accounts grouped by site.
type CredentialStore interface {
	// Store saves account under account.Site.
	Store(account *Account) error

	// Retrieve returns the account of username on site.
	Retrieve(site, username string) (*Account, error)

	// List returns every account stored for site.
	List(site string) ([]*Account, error)

	// Delete removes the account of username on site.
	Delete(site, username string) error
}

// SiteFromURL returns the site key for a members URL: its lower-cased host
// with any port.
func SiteFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid site URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("site URL %q has no host", raw)
	}
	return strings.ToLower(u.Host), nil
}

// Manager stores and looks up the accounts of one site, trying its stores in
// order.
type Manager struct {
	site   string
	stores []CredentialStore
}

// NewManager creates a credential manager for the site of membersURL. It
// tries the system keychain, then the encrypted file when MEDIAMIRROR_PASSPHRASE
// is set, then the environment.
func NewManager(membersURL string) (*Manager, error) {
	site, err := SiteFromURL(membersURL)
	if err != nil {
		return nil, err
	}

	var stores []CredentialStore
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	if passphrase := os.Getenv(PassphraseEnv); passphrase != "" {
		configDir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		fs, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"), passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to open encrypted store: %w", err)
		}
		stores = append(stores, fs)
	}

	stores = append(stores, NewEnvironmentStore())

	return &Manager{site: site, stores: stores}, nil
}

// NewManagerWithStores creates a Manager for site over the given stores.
func NewManagerWithStores(site string, stores ...CredentialStore) *Manager {
	return &Manager{site: strings.ToLower(site), stores: stores}
}

// Site returns the site key the manager is scoped to.
func (m *Manager) Site() string {
	return m.site
}

// Store saves account in the first store that accepts it.
func (m *Manager) Store(account *Account) error {
	if account.Username == "" {
		return errors.New("username is required")
	}
	if account.Password == "" {
		return errors.New("password is required")
	}

	account.Site = m.site
	account.LastModified = time.Now()

	var errs []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to store credentials: %w", errors.Join(errs...))
	}
	return fmt.Errorf("no writable credential store; unlock the system keychain or set %s", PassphraseEnv)
}

// Retrieve gets the account of username from the first store holding it.
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(m.site, username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("no credentials for %s on %s", username, m.site)
}

// RetrieveDefault returns the environment account, or else the first stored
// account in name order.
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(m.site, ""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, fmt.Errorf("no credentials found for %s", m.site)
}

// List returns the site's accounts from all stores in name order. When two
// stores hold the same user the newer entry wins.
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List(m.site)
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byName[account.Username]; !ok || account.LastModified.After(existing.LastModified) {
				byName[account.Username] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// Delete removes username from every store that holds it.
func (m *Manager) Delete(username string) error {
	var deleted bool
	var errs []error
	for _, store := range m.stores {
		err := store.Delete(m.site, username)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete credentials: %w", errors.Join(errs...))
	}
	if !deleted {
		return fmt.Errorf("no credentials for %s on %s", username, m.site)
	}
	return nil
}

// DeleteAll removes every account of the site.
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	var errs []error
	for _, account := range accounts {
		if err := m.Delete(account.Username); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mediamirror")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "mediamirror")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "mediamirror")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "mediamirror")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount creates a copy of the account with the password masked.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	masked := *account
	masked.Password = maskString(account.Password)
	return &masked
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
