package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AccountConfig holds the non-secret part of the mail account
// settings. The password lives in the keyring.
type AccountConfig struct {
	// User is the account login, usually the address itself.
	User string `mapstructure:"user" yaml:"user"`

	// Host is the IMAP server host.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the IMAP server port.
	Port int `mapstructure:"port" yaml:"port"`

	// TLS selects implicit TLS; false means STARTTLS upgrade.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// AIConfig holds the non-secret AI service settings. The API key
// lives in the keyring.
type AIConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// ServerConfig holds the local router listen address.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// StorageConfig holds local storage settings.
type StorageConfig struct {
	// DBPath is the SQLite database location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// Secret seeds the draft encryption key.
	Secret string `mapstructure:"secret" yaml:"secret"`
}

// SyncConfig controls the background mailbox watcher.
type SyncConfig struct {
	Mailbox     string `mapstructure:"mailbox" yaml:"mailbox"`
	IntervalSec int    `mapstructure:"interval_sec" yaml:"interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account AccountConfig `mapstructure:"account" yaml:"account"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
}

// DefaultConfigPath returns the default configuration file location,
// ~/.config/nexusmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "nexusmail", "config.yaml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "nexusmail.db")
	}
	return filepath.Join(home, ".config", "nexusmail", "nexusmail.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			Port: 993,
			TLS:  true,
		},
		AI: AIConfig{
			BaseURL: "https://api.deepseek.com/v1",
			Model:   "deepseek-chat",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8765",
		},
		Storage: StorageConfig{
			DBPath: defaultDBPath(),
			Secret: "nexus-mail-secret",
		},
		Sync: SyncConfig{
			Mailbox:     "INBOX",
			IntervalSec: 120,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default
// configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("account.port", 993)
	v.SetDefault("account.tls", true)
	v.SetDefault("ai.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("ai.model", "deepseek-chat")
	v.SetDefault("server.listen", "127.0.0.1:8765")
	v.SetDefault("storage.db_path", defaultDBPath())
	v.SetDefault("storage.secret", "nexus-mail-secret")
	v.SetDefault("sync.mailbox", "INBOX")
	v.SetDefault("sync.interval_sec", 120)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("ai", cfg.AI)
	v.Set("server", cfg.Server)
	v.Set("storage", cfg.Storage)
	v.Set("sync", cfg.Sync)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
