package client

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/adrg/xdg"
)

// SecretStorage is the host key-value storage primitive the client persists
// its session into. Implementations must retain values across restarts
// (MemoryStorage, used in tests, deliberately does not).
type SecretStorage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is a thread-safe in-memory SecretStorage.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStorage persists values as a single JSON file in the XDG state
// directory, created with owner-only permissions. It is the default for
// standalone embeddings without a platform keychain.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a FileStorage under the XDG state home,
// e.g. ~/.local/state/puku/auth.json.
func NewFileStorage() (*FileStorage, error) {
	path, err := xdg.StateFile("puku/auth.json")
	if err != nil {
		return nil, err
	}
	return &FileStorage{path: path}, nil
}

// NewFileStorageAt creates a FileStorage at an explicit path.
func NewFileStorageAt(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (s *FileStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		// A corrupt file reads as empty; the next Set rewrites it
		return make(map[string]string), nil
	}
	return values, nil
}

func (s *FileStorage) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

var (
	_ SecretStorage = (*MemoryStorage)(nil)
	_ SecretStorage = (*FileStorage)(nil)
)
