package catalog

import (
	"context"
	"fmt"
	"time"

	"rpucella.net/red-drive/internal/storage"
)

// Store is the catalog as the rest of the program sees it: listings come
// from the cache, lookups and mutations go to the repository, and every
// mutation invalidates the cache.
type Store struct {
	repo  *Repository
	cache *Cache
}

func NewStore(repo *Repository, ttl time.Duration, clock Clock) *Store {
	return &Store{repo, NewCache(repo, ttl, clock)}
}

func (s *Store) Repository() *Repository {
	return s.repo
}

func (s *Store) Backend() storage.Backend {
	return s.repo.Backend()
}

func (s *Store) Cache() *Cache {
	return s.cache
}

func (s *Store) List(ctx context.Context) ([]Resource, error) {
	return s.cache.List(ctx)
}

func (s *Store) Search(ctx context.Context, query string) ([]Resource, error) {
	rs, err := s.cache.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(rs, query), nil
}

func (s *Store) Get(ctx context.Context, id string) (Resource, error) {
	return s.repo.Get(ctx, id)
}

// Select picks resources by id from the cached catalog, in the order of
// ids. Unknown ids fail with ErrNotFound.
func (s *Store) Select(ctx context.Context, ids []string) ([]Resource, error) {
	rs, err := s.cache.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Resource, len(rs))
	for _, r := range rs {
		byID[r.ID] = r
	}
	result := make([]Resource, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		seen[id] = true
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) Save(ctx context.Context, r Resource) (Resource, error) {
	saved, err := s.repo.Save(ctx, r)
	if err != nil {
		return Resource{}, err
	}
	s.cache.Invalidate()
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	// Invalidate even on failure: some blobs may already be gone.
	defer s.cache.Invalidate()
	return s.repo.Delete(ctx, id)
}

func (s *Store) Invalidate() {
	s.cache.Invalidate()
}
