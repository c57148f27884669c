package profile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Identity provisions the durable per-installation user id. The id is
// generated once, stored under UserIDKey and reused thereafter.
type Identity struct {
	cache Cache
	newID func() string

	mu sync.Mutex
	id string
}

// NewIdentity creates an Identity backed by cache.
func NewIdentity(cache Cache) *Identity {
	return &Identity{
		cache: cache,
		newID: uuid.NewString,
	}
}

// UserID returns the durable user id, generating and persisting it on first
// use. Only a successful result is memoized; a cache error is retried on
// the next call.
func (i *Identity) UserID() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.id != "" {
		return i.id, nil
	}
	id, err := i.provision()
	if err != nil {
		return "", err
	}
	i.id = id
	return id, nil
}

func (i *Identity) provision() (string, error) {
	v, ok, err := i.cache.GetCacheKey(UserIDKey)
	if err != nil {
		return "", fmt.Errorf("reading user id: %w", err)
	}
	if ok && strings.TrimSpace(v) != "" {
		return v, nil
	}

	id := i.newID()
	if err := i.cache.SetCacheKey(UserIDKey, id); err != nil {
		return "", fmt.Errorf("storing user id: %w", err)
	}
	return id, nil
}
