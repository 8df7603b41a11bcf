package auth

import (
	"os"
	"time"
)

const (
	usernameEnv = "MEDIAMIRROR_USERNAME"
	passwordEnv = "MEDIAMIRROR_PASSWORD"
)

// EnvironmentStore reads a single read-only account from
// MEDIAMIRROR_USERNAME and MEDIAMIRROR_PASSWORD. The account applies to
// whichever site is asked for.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. A non-empty username must match
// MEDIAMIRROR_USERNAME.
func (e *EnvironmentStore) Retrieve(site, username string) (*Account, error) {
	envUser := os.Getenv(usernameEnv)
	password := os.Getenv(passwordEnv)

	if envUser == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Site:         site,
		Username:     envUser,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account when both variables are set.
func (e *EnvironmentStore) List(site string) ([]*Account, error) {
	account, err := e.Retrieve(site, "")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(site, username string) error {
	return ErrStoreUnavailable
}
