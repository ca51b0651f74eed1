package config

import (
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/blueman82/go-counsel/internal/errs"
)

// ServiceName is the keyring service under which adapter credentials
// are stored.
const ServiceName = "go-counsel"

const keyringPrefix = "keyring:"

// GetSecretFromKeyring retrieves a secret previously saved with
// SaveSecretToKeyring.
func GetSecretFromKeyring(key string) (string, error) {
	return keyring.Get(ServiceName, key)
}

// SaveSecretToKeyring saves a secret to the system keyring (Keychain on
// macOS, Credential Manager on Windows, Secret Service on Linux).
func SaveSecretToKeyring(key, value string) error {
	return keyring.Set(ServiceName, key, value)
}

// DeleteSecretFromKeyring removes a secret from the system keyring.
func DeleteSecretFromKeyring(key string) error {
	return keyring.Delete(ServiceName, key)
}

// resolveSecret resolves a config value that may carry the
// "keyring:<name>" convention, looking the named secret up in the OS
// keyring instead of taking it literally. Values without the prefix
// pass through unchanged.
func resolveSecret(value string) (string, error) {
	name, ok := strings.CutPrefix(value, keyringPrefix)
	if !ok {
		return value, nil
	}
	name = strings.TrimSpace(name)
	secret, err := GetSecretFromKeyring(name)
	if err != nil {
		return "", errs.Validation("resolving keyring secret %q: %v", name, err)
	}
	return secret, nil
}
