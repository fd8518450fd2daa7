// Package session maps opaque session ids to carts. Each session owns one
// independent cart persisted under cart.StorageKey(id).
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/storage"
)

var (
	// ErrNotFound is returned for ids with no cart in memory or storage.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("invalid session id")
)

// Registry hands out carts by session id. Carts are loaded from storage on
// first use, so sessions survive a restart when storage is durable.
type Registry struct {
	deps cart.Deps

	mu    sync.Mutex
	carts map[string]*cart.Store
}

// NewRegistry builds a registry. deps is the template for every cart; its Key
// is replaced per session.
func NewRegistry(deps cart.Deps) *Registry {
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory()
	}
	return &Registry{deps: deps, carts: make(map[string]*cart.Store)}
}

// Create starts a new session with an empty cart and stores it.
func (r *Registry) Create(ctx context.Context) (string, *cart.Store, error) {
	id := uuid.NewString()
	s, err := r.open(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if err := s.Save(ctx); err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}

	r.mu.Lock()
	r.carts[id] = s
	r.mu.Unlock()
	return id, s, nil
}

// Get returns the cart for id, loading it from storage if needed.
func (r *Registry) Get(ctx context.Context, id string) (*cart.Store, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	id = parsed.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.carts[id]; ok {
		return s, nil
	}

	if _, err := r.deps.Storage.Get(ctx, cart.StorageKey(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("looking up session %s: %w", id, err)
	}
	s, err := r.open(ctx, id)
	if err != nil {
		return nil, err
	}
	r.carts[id] = s
	return s, nil
}

// Delete forgets a session and removes its stored cart. Deleting an unknown
// session is not an error.
func (r *Registry) Delete(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	id = parsed.String()

	r.mu.Lock()
	delete(r.carts, id)
	r.mu.Unlock()
	return r.deps.Storage.Delete(ctx, cart.StorageKey(id))
}

// IDs lists every stored session.
func (r *Registry) IDs(ctx context.Context) ([]string, error) {
	prefix := cart.StorageKey("") + ":"
	keys, err := r.deps.Storage.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, prefix))
	}
	return ids, nil
}

func (r *Registry) open(ctx context.Context, id string) (*cart.Store, error) {
	deps := r.deps
	deps.Key = cart.StorageKey(id)
	if deps.Logger != nil {
		deps.Logger = deps.Logger.With("session", id)
	}
	s, err := cart.New(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("opening session %s: %w", id, err)
	}
	return s, nil
}
