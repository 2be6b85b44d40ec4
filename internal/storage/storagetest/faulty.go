// Package storagetest provides a backend wrapper that injects faults,
// for tests of code built on storage.Backend.
package storagetest

import (
	"context"
	"sync"

	"rpucella.net/red-drive/internal/storage"
)

// Op names a backend call.
type Op string

const (
	OpList   Op = "list"
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// Call describes one backend call as seen by a Hook.
type Call struct {
	Op   Op
	Path string
	Mode storage.WriteMode
}

// Hook runs before every call. A non-nil error fails the call without
// reaching the inner backend.
type Hook func(ctx context.Context, c Call) error

// Faulty wraps a backend and records every call it forwards.
type Faulty struct {
	storage.Backend

	mu    sync.Mutex
	hook  Hook
	calls []Call
}

func Wrap(b storage.Backend) *Faulty {
	return &Faulty{Backend: b}
}

func (f *Faulty) SetHook(h Hook) {
	f.mu.Lock()
	f.hook = h
	f.mu.Unlock()
}

// Calls returns the calls made so far.
func (f *Faulty) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many calls of kind op were made.
func (f *Faulty) Count(op Op) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *Faulty) before(ctx context.Context, c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h := f.hook
	f.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, c)
}

func (f *Faulty) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	if err := f.before(ctx, Call{Op: OpList, Path: prefix}); err != nil {
		return nil, err
	}
	return f.Backend.List(ctx, prefix)
}

func (f *Faulty) Read(ctx context.Context, path string) (storage.Blob, error) {
	if err := f.before(ctx, Call{Op: OpRead, Path: path}); err != nil {
		return storage.Blob{}, err
	}
	return f.Backend.Read(ctx, path)
}

func (f *Faulty) Write(ctx context.Context, path string, data []byte, mode storage.WriteMode, token string) error {
	if err := f.before(ctx, Call{Op: OpWrite, Path: path, Mode: mode}); err != nil {
		return err
	}
	return f.Backend.Write(ctx, path, data, mode, token)
}

func (f *Faulty) Delete(ctx context.Context, path string) error {
	if err := f.before(ctx, Call{Op: OpDelete, Path: path}); err != nil {
		return err
	}
	return f.Backend.Delete(ctx, path)
}
