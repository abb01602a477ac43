package custodymem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"keyward/internal/domain"
)

// Store keeps private keys and API keys per identity in process memory.
// Every operation runs under one mutex.
type Store struct {
	mu       sync.Mutex
	privkeys map[domain.Identity]map[string]string
	apiKeys  map[domain.Identity]string
	// first-registration order of identities holding an API key
	apiOrder []domain.Identity
}

func NewStore() *Store {
	return &Store{
		privkeys: make(map[domain.Identity]map[string]string),
		apiKeys:  make(map[domain.Identity]string),
	}
}

func (s *Store) CountPrivateKeys(_ context.Context, identity domain.Identity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.privkeys[identity]), nil
}

func (s *Store) NextKeyID(_ context.Context, identity domain.Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(len(s.privkeys[identity])), nil
}

func (s *Store) SetPrivateKey(_ context.Context, identity domain.Identity, keyID, keyHex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(identity, keyID, keyHex)
}

func (s *Store) GetPrivateKey(_ context.Context, identity domain.Identity, keyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyHex, ok := s.privkeys[identity][keyID]
	if !ok {
		return "", fmt.Errorf("%w: identity %q key %q", domain.ErrKeyNotFound, identity, keyID)
	}
	return keyHex, nil
}

// AddPrivateKey allocates the next key id and stores keyHex under it.
func (s *Store) AddPrivateKey(_ context.Context, identity domain.Identity, keyHex string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keyID := strconv.Itoa(len(s.privkeys[identity]))
	if err := s.insertLocked(identity, keyID, keyHex); err != nil {
		return "", err
	}
	return keyID, nil
}

func (s *Store) SetAPIKey(_ context.Context, identity domain.Identity, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apiKeys[identity]; !ok {
		s.apiOrder = append(s.apiOrder, identity)
	}
	s.apiKeys[identity] = apiKey
	return nil
}

// GetAPIKeyOwner scans identities in registration order and returns the
// first whose current API key equals apiKey.
func (s *Store) GetAPIKeyOwner(_ context.Context, apiKey string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.apiOrder {
		if s.apiKeys[identity] == apiKey {
			return identity, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) insertLocked(identity domain.Identity, keyID, keyHex string) error {
	keys, ok := s.privkeys[identity]
	if !ok {
		keys = make(map[string]string)
		s.privkeys[identity] = keys
	}
	if _, exists := keys[keyID]; exists {
		return fmt.Errorf("%w: identity %q key %q", domain.ErrDuplicateKey, identity, keyID)
	}
	keys[keyID] = keyHex
	return nil
}
