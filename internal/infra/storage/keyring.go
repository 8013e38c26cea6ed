package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
)

// Keyring is a SecretStore over the OS credential store (Keychain, Secret Service, wincred).
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

// GetSecret returns "" without error when the item does not exist.
func (k *Keyring) GetSecret(name string) (string, error) {
	secret, err := keyringGet(k.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf(
			"failed to read keyring item service=%q account=%q: %w",
			k.service,
			name,
			err,
		)
	}
	return strings.TrimSpace(secret), nil
}

func (k *Keyring) SetSecret(name, value string) error {
	if err := keyringSet(k.service, name, value); err != nil {
		return fmt.Errorf(
			"failed to store keyring item service=%q account=%q: %w",
			k.service,
			name,
			err,
		)
	}
	return nil
}

func (k *Keyring) DeleteSecret(name string) error {
	err := keyringDelete(k.service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring item service=%q account=%q: %w", k.service, name, err)
	}
	return nil
}
