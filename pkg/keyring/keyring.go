// Package keyring stores the CLI's session cookie in the OS keyring, one
// entry per server URL.
package keyring

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	gokeyring "github.com/zalando/go-keyring"
)

const serviceName = "kalender"

// ErrNoSession is returned by Load when no session is stored for the server.
var ErrNoSession = errors.New("no stored session, run kalender login")

// Backend is the minimal secret storage the session store needs.
type Backend interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
	Delete(service, user string) error
}

type osBackend struct{}

// OS returns the operating system keyring.
func OS() Backend {
	return osBackend{}
}

func (osBackend) Get(service, user string) (string, error) {
	secret, err := gokeyring.Get(service, user)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("read OS keyring: %w", err)
	}
	return secret, nil
}

func (osBackend) Set(service, user, secret string) error {
	return gokeyring.Set(service, user, secret)
}

func (osBackend) Delete(service, user string) error {
	err := gokeyring.Delete(service, user)
	if errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}
	return err
}

// MemoryBackend keeps secrets in a map. Used by tests.
type MemoryBackend struct {
	mu      sync.Mutex
	secrets map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{secrets: make(map[string]string)}
}

func (m *MemoryBackend) Get(service, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secret, ok := m.secrets[service+"/"+user]
	if !ok {
		return "", ErrNoSession
	}
	return secret, nil
}

func (m *MemoryBackend) Set(service, user, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[service+"/"+user] = secret
	return nil
}

func (m *MemoryBackend) Delete(service, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, service+"/"+user)
	return nil
}

var (
	_ Backend = osBackend{}
	_ Backend = (*MemoryBackend)(nil)
)

// SessionStore maps server URLs to session cookie values.
type SessionStore struct {
	backend Backend
}

func NewSessionStore(backend Backend) *SessionStore {
	return &SessionStore{backend: backend}
}

func key(serverURL string) string {
	return strings.TrimSuffix(strings.TrimSpace(serverURL), "/")
}

func (s *SessionStore) Load(serverURL string) (string, error) {
	value, err := s.backend.Get(serviceName, key(serverURL))
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", ErrNoSession
	}
	return value, nil
}

func (s *SessionStore) Save(serverURL, value string) error {
	if err := s.backend.Set(serviceName, key(serverURL), value); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing a missing session is not an error.
func (s *SessionStore) Clear(serverURL string) error {
	return s.backend.Delete(serviceName, key(serverURL))
}
