package storage

import (
	"context"
	"errors"
	"fmt"
)

// Step records which write shape ended up persisting a Put.
type Step int

const (
	Created Step = iota + 1
	Updated
)

func (s Step) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "none"
}

// maxPutRounds bounds the create/update ping-pong when another writer
// keeps deleting or replacing the same path.
const maxPutRounds = 3

// Put writes data at path: create first, and only on ErrConflict read the
// current token and update with it. If the object vanishes between the
// read and the update the create is retried.
func Put(ctx context.Context, b Backend, path string, data []byte) (Step, error) {
	for round := 0; round < maxPutRounds; round++ {
		err := b.Write(ctx, path, data, CreateOnly, "")
		if err == nil {
			return Created, nil
		}
		if !errors.Is(err, ErrConflict) {
			return 0, fmt.Errorf("create %s: %w", path, err)
		}
		current, err := b.Read(ctx, path)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read %s for update: %w", path, err)
		}
		err = b.Write(ctx, path, data, UpdateOnly, current.Token)
		if err == nil {
			return Updated, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			continue
		}
		return 0, fmt.Errorf("update %s: %w", path, err)
	}
	return 0, fmt.Errorf("put %s: %w: gave up after %d rounds", path, ErrConflict, maxPutRounds)
}

// Remove deletes path, treating an already-missing object as success.
func Remove(ctx context.Context, b Backend, path string) (bool, error) {
	err := b.Delete(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}
	return true, nil
}
