// Package secret stores API credentials outside the settings files.
//
// Secrets live in a JSON file in the user configuration directory, with
// values either plaintext or sealed by an SSH-key-derived AES key.
// Observers can subscribe to individual keys to learn when a credential
// changes.
package secret

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileName is the secrets file inside the user configuration directory.
const FileName = "secrets.json"

// KeyAPIKey is the secret key holding the completion API credential for a
// provider; the full key is KeyAPIKey + "." + provider.
const KeyAPIKey = "apiKey"

// ErrNotFound is returned when a secret key has no stored value.
var ErrNotFound = errors.New("secret not found")

// APIKeyFor returns the secret key for a provider's API credential.
func APIKeyFor(provider string) string {
	return KeyAPIKey + "." + provider
}

// Store is a file-backed secret store.
type Store struct {
	mu sync.RWMutex

	path   string
	cipher Cipher
	values map[string]string // key -> base64 of (possibly sealed) value

	observers map[string][]func()
}

// NewStore opens the secret store at the given file path. A nil cipher
// stores values unencrypted.
func NewStore(path string, cipher Cipher) (*Store, error) {
	if cipher == nil {
		cipher = Plaintext{}
	}

	s := &Store{
		path:      path,
		cipher:    cipher,
		values:    make(map[string]string),
		observers: make(map[string][]func()),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading secrets: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		return fmt.Errorf("decoding secrets: %w", err)
	}
	return nil
}

// save persists the store. Callers must hold the lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0o600)
}

// Get returns the secret for a key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	encoded, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", key, err)
	}
	plaintext, err := s.cipher.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("secret %s: %w", key, err)
	}
	return string(plaintext), nil
}

// Set stores a secret and notifies the key's observers. An empty value
// deletes the key.
func (s *Store) Set(key, value string) error {
	if value == "" {
		return s.Delete(key)
	}

	sealed, err := s.cipher.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("secret %s: %w", key, err)
	}

	s.mu.Lock()
	s.values[key] = base64.StdEncoding.EncodeToString(sealed)
	if err := s.save(); err != nil {
		s.mu.Unlock()
		return err
	}
	observers := s.observersFor(key)
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
	return nil
}

// Delete removes a secret and notifies the key's observers. Deleting a
// missing key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	if _, ok := s.values[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.values, key)
	if err := s.save(); err != nil {
		s.mu.Unlock()
		return err
	}
	observers := s.observersFor(key)
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
	return nil
}

// Has reports whether a key has a stored value.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Keys returns all stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscription unregisters a secret observer.
type Subscription struct {
	cancel func()
	once   sync.Once
}

// Unsubscribe removes the observer.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Subscribe registers an observer called whenever the key's value changes
// or is removed.
func (s *Store) Subscribe(key string, fn func()) *Subscription {
	s.mu.Lock()
	s.observers[key] = append(s.observers[key], fn)
	idx := len(s.observers[key]) - 1
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.observers[key]
		if idx < len(list) {
			list[idx] = nil
		}
	}}
}

// observersFor returns a snapshot of live observers for a key. Callers
// must hold the lock.
func (s *Store) observersFor(key string) []func() {
	var out []func()
	for _, fn := range s.observers[key] {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}
