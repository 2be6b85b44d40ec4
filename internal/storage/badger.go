package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// Badger keeps blobs in an embedded key-value store, one key per path.
// Tokens are the commit versions of the keys, and every write runs in a
// transaction so both preconditions are exact.
type Badger struct {
	db   *badger.DB
	path string
}

func NewBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db, path}, nil
}

func (s *Badger) Name() string {
	if s.path == "" {
		return "badger::memory"
	}
	return fmt.Sprintf("badger::%s", s.path)
}

func (s *Badger) Close() error {
	return s.db.Close()
}

func (s *Badger) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}
	seek := []byte(prefix)
	if prefix != "" {
		seek = append(seek, '/')
	}
	seen := make(map[string]bool)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: seek})
		defer it.Close()
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			name, isFolder, ok := childOf(prefix, string(it.Item().Key()))
			if ok {
				seen[name] = seen[name] || isFolder
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, prefix, err)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{name, seen[name]})
	}
	return entries, nil
}

func (s *Badger) Read(ctx context.Context, path string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	path, err := cleanPath(path)
	if err != nil {
		return Blob{}, err
	}
	var blob Blob
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		blob.Token = strconv.FormatUint(item.Version(), 10)
		blob.Data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Blob{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Blob{}, fmt.Errorf("%w: read %s: %w", ErrUnavailable, path, err)
	}
	return blob, nil
}

func (s *Badger) Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	key := []byte(path)
	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		exists := err == nil
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		switch mode {
		case CreateOnly:
			if exists {
				return ErrConflict
			}
		case UpdateOnly:
			if !exists {
				return ErrNotFound
			}
			if token != "" && token != strconv.FormatUint(item.Version(), 10) {
				return ErrConflict
			}
		default:
			return fmt.Errorf("unknown write mode %d", mode)
		}
		return txn.Set(key, data)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%s: %w", path, ErrConflict)
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return fmt.Errorf("%w: write %s: %w", ErrUnavailable, path, err)
}

func (s *Badger) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	key := []byte(path)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrUnavailable, path, err)
	}
	return nil
}
