package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// MailboxConfig holds the IMAP/SMTP settings for the mailbox provider.
type MailboxConfig struct {
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password may be left empty, in which case it is resolved from
	// the OS keyring or environment at startup.
	Password string `mapstructure:"password" yaml:"password"`

	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// MonitorConfig holds the polling settings.
type MonitorConfig struct {
	// CheckIntervalSec is the delay between poll cycles.
	CheckIntervalSec int `mapstructure:"check_interval_sec" yaml:"check_interval_sec"`

	// Addresses are the sender addresses to monitor. Empty means no
	// sender filtering.
	Addresses []string `mapstructure:"addresses" yaml:"addresses"`

	// ReadOnly logs intended actions without mutating the mailbox.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only"`

	// RulesPath is the rule configuration file.
	RulesPath string `mapstructure:"rules_path" yaml:"rules_path"`
}

// AIConfig holds settings for the AI rule evaluation backend.
type AIConfig struct {
	// APIKey may be left empty, in which case it is resolved from the
	// OS keyring or the ANTHROPIC_API_KEY environment variable.
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ReportConfig holds daily report settings.
type ReportConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Time is the local time of day after which the daily report may
	// be sent, in "15:04" form.
	Time string `mapstructure:"time" yaml:"time"`

	// Store selects the action store backend: "file" or "sqlite".
	Store string `mapstructure:"store" yaml:"store"`

	// StorePath is the action store location (JSON file or SQLite
	// database, depending on Store).
	StorePath string `mapstructure:"store_path" yaml:"store_path"`

	// RetentionDays is how long action records are kept.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Reports ReportConfig  `mapstructure:"reports" yaml:"reports"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/stoppls/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "stoppls", "config.yaml")
}

// DefaultRulesPath returns the default path for the rule
// configuration file.
func DefaultRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "rules.yaml")
	}
	return filepath.Join(home, ".config", "stoppls", "rules.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	configDir := filepath.Join(home, ".config", "stoppls")

	return &AppConfig{
		Mailbox: MailboxConfig{
			IMAPPort: "993",
			SMTPPort: "465",
			TLS:      true,
		},
		Monitor: MonitorConfig{
			CheckIntervalSec: 60,
			RulesPath:        filepath.Join(configDir, "rules.yaml"),
		},
		AI: AIConfig{
			Model:     "claude-3-haiku-20240307",
			MaxTokens: 100,
		},
		Reports: ReportConfig{
			Time:          "09:00",
			Store:         "file",
			StorePath:     filepath.Join(configDir, "actions.json"),
			RetentionDays: 30,
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
	v.SetDefault("mailbox.imap_port", "993")
	v.SetDefault("mailbox.smtp_port", "465")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("monitor.check_interval_sec", 60)
	v.SetDefault("ai.model", "claude-3-haiku-20240307")
	v.SetDefault("ai.max_tokens", 100)
	v.SetDefault("reports.time", "09:00")
	v.SetDefault("reports.store", "file")
	v.SetDefault("reports.retention_days", 30)

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

	if cfg.Monitor.CheckIntervalSec <= 0 {
		cfg.Monitor.CheckIntervalSec = 60
	}
	if cfg.Reports.RetentionDays <= 0 {
		cfg.Reports.RetentionDays = 30
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

	v.Set("mailbox", cfg.Mailbox)
	v.Set("monitor", cfg.Monitor)
	v.Set("ai", cfg.AI)
	v.Set("reports", cfg.Reports)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
