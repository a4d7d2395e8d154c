// Package credential resolves secrets for the monitor: from explicit
// configuration, the OS keyring, or the environment, in that order.
package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "stoppls"

// Well-known credential keys.
const (
	KeyAnthropicAPIKey = "anthropic_api_key"
	KeyMailboxPassword = "mailbox_password"
)

// EnvAnthropicAPIKey is the environment fallback for the AI credential.
const EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/stoppls/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("stoppls-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// ResolveAPIKey returns the Anthropic API key: the explicit value if
// non-empty, else the keyring entry, else the environment variable.
// An empty result means AI rule evaluation stays disabled.
func ResolveAPIKey(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, err := Get(KeyAnthropicAPIKey); err == nil && v != "" {
		return v
	}
	return os.Getenv(EnvAnthropicAPIKey)
}

// ResolveMailboxPassword returns the mailbox password: the explicit
// value if non-empty, else the keyring entry, else the
// STOPPLS_MAILBOX_PASSWORD environment variable.
func ResolveMailboxPassword(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, err := Get(KeyMailboxPassword); err == nil && v != "" {
		return v
	}
	return os.Getenv("STOPPLS_MAILBOX_PASSWORD")
}
