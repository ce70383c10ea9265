package config

import (
	"fmt"
	"sync"

	"github.com/nexusmail/nexusmail/internal/credential"
)

// Secrets abstracts the keyring so tests can substitute an in-memory
// implementation.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Manager couples the YAML config file with the secret store and
// serializes concurrent updates coming through the router.
type Manager struct {
	path    string
	secrets Secrets

	mu  sync.Mutex
	cfg *AppConfig
}

// NewManager loads the config at path. A missing file yields
// defaults.
func NewManager(path string, secrets Secrets) (*Manager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, secrets: secrets, cfg: cfg}, nil
}

// Config returns a copy of the current configuration.
func (m *Manager) Config() AppConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cfg
}

// SaveAccount persists the account settings and puts the password in
// the secret store.
func (m *Manager) SaveAccount(acc AccountConfig, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if password != "" {
		if err := m.secrets.Set(credential.KeyAccountPassword, password); err != nil {
			return fmt.Errorf("storing account password: %w", err)
		}
	}

	m.cfg.Account = acc
	return SaveConfig(m.path, m.cfg)
}

// AccountPassword retrieves the stored account password.
func (m *Manager) AccountPassword() (string, error) {
	return m.secrets.Get(credential.KeyAccountPassword)
}

// SaveAI persists the AI settings and puts the API key in the secret
// store.
func (m *Manager) SaveAI(ai AIConfig, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if apiKey != "" {
		if err := m.secrets.Set(credential.KeyAIAPIKey, apiKey); err != nil {
			return fmt.Errorf("storing AI API key: %w", err)
		}
	}

	if ai.BaseURL != "" {
		m.cfg.AI.BaseURL = ai.BaseURL
	}
	if ai.Model != "" {
		m.cfg.AI.Model = ai.Model
	}
	return SaveConfig(m.path, m.cfg)
}

// AIKey retrieves the stored AI API key. A missing key is returned
// as empty, not as an error.
func (m *Manager) AIKey() string {
	key, err := m.secrets.Get(credential.KeyAIAPIKey)
	if err != nil {
		return ""
	}
	return key
}
