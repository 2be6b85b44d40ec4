package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists or changed")
	ErrUnavailable = errors.New("backend unavailable")
	ErrInvalidPath = errors.New("invalid path")
)

// WriteMode selects between the two write shapes a backend offers.
// There is no upsert: see Put.
type WriteMode int

const (
	CreateOnly WriteMode = iota
	UpdateOnly
)

func (m WriteMode) String() string {
	switch m {
	case CreateOnly:
		return "create"
	case UpdateOnly:
		return "update"
	}
	return "unknown"
}

type Entry struct {
	Name     string
	IsFolder bool
}

// Blob is the content of an object plus the precondition token
// required to update it.
type Blob struct {
	Data  []byte
	Token string
}

// Backend is a folder-of-files persistence medium. Paths are
// slash-separated and relative to the backend root.
//
// Write with CreateOnly fails with ErrConflict if the path exists.
// Write with UpdateOnly fails with ErrNotFound if the path is absent and
// with ErrConflict if token is set and no longer matches the stored object.
// Read and Delete fail with ErrNotFound if the path is absent.
type Backend interface {
	Name() string
	List(ctx context.Context, prefix string) ([]Entry, error)
	Read(ctx context.Context, path string) (Blob, error)
	Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error
	Delete(ctx context.Context, path string) error
}

// Closer is implemented by backends holding a client or database handle.
type Closer interface {
	Close() error
}

func Close(b Backend) error {
	if c, ok := b.(Closer); ok {
		return c.Close()
	}
	return nil
}
