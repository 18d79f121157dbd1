// Package credential resolves secret config values from the OS keyring.
package credential

import (
	"fmt"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "pomodoro"
	// Prefix marks a config value as a keyring key rather than a literal secret.
	Prefix = "keyring:"
)

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
		FileDir:                  "~/.config/pomodoro/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("pomodoro-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Resolver turns "keyring:NAME" values into the stored secret. The keyring
// is opened on first use, so configs without keyring references never touch it.
type Resolver struct {
	open func() (keyring.Keyring, error)

	once sync.Once
	ring keyring.Keyring
	err  error
}

// NewResolver uses the system keyring.
func NewResolver() *Resolver { return &Resolver{open: openKeyring} }

// NewResolverFor uses ring directly.
func NewResolverFor(ring keyring.Keyring) *Resolver {
	return &Resolver{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// Resolve returns v unchanged unless it carries Prefix.
func (r *Resolver) Resolve(v string) (string, error) {
	v = strings.TrimSpace(v)
	key, ok := strings.CutPrefix(v, Prefix)
	if !ok {
		return v, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty keyring reference %q", v)
	}
	r.once.Do(func() { r.ring, r.err = r.open() })
	if r.err != nil {
		return "", r.err
	}
	item, err := r.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}
