package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const serviceName = "tasksync"

// TokenKey is the keyring entry holding the API bearer token.
const TokenKey = "api-token"

// TokenEnv overrides the keyring token when set.
const TokenEnv = "TASKSYNC_TOKEN"

// ErrNoToken is returned when neither the environment nor the keyring
// holds a bearer token.
var ErrNoToken = errors.New("no API token: run `tasksync login` or set " + TokenEnv)

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
		FileDir:                  "~/.config/tasksync/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("tasksync-file-key"),
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

// TokenSource resolves the bearer token attached to API requests.
// The environment variable wins over the keyring.
type TokenSource struct {
	// Lookup reads a keyring entry; defaults to Get.
	Lookup func(key string) (string, error)
}

// Token implements oauth2.TokenSource.
func (s TokenSource) Token() (*oauth2.Token, error) {
	if v := os.Getenv(TokenEnv); v != "" {
		return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
	}

	lookup := s.Lookup
	if lookup == nil {
		lookup = Get
	}
	v, err := lookup(TokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrNoToken
		}
		return nil, err
	}
	if v == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
}

// NewTokenSource returns a caching oauth2.TokenSource over the keyring.
// Tokens carry no expiry, so the keyring is read once per process.
func NewTokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, TokenSource{})
}
