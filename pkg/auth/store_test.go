package auth

import "sync"

// memoryStore is an in-memory CredentialStore with error injection.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account

	storeErr error
	listErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[string]Account)}
}

func (m *memoryStore) Store(account *Account) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountKey(account.Site, account.Username)] = *account
	return nil
}

func (m *memoryStore) Retrieve(site, username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountKey(site, username)]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *memoryStore) List(site string) ([]*Account, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Account
	for _, account := range m.accounts {
		if account.Site == site {
			acc := account
			result = append(result, &acc)
		}
	}
	return result, nil
}

func (m *memoryStore) Delete(site, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := accountKey(site, username)
	if _, ok := m.accounts[key]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, key)
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}
