package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutBackend struct {
	inner   Backend
	timeout time.Duration
}

// WithTimeout bounds every call on b. A call that runs out of time fails
// with ErrUnavailable wrapping the context error.
func WithTimeout(b Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		return b
	}
	return &timeoutBackend{b, timeout}
}

func (t *timeoutBackend) Name() string {
	return t.inner.Name()
}

func (t *timeoutBackend) Close() error {
	return Close(t.inner)
}

func (t *timeoutBackend) List(ctx context.Context, prefix string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	entries, err := t.inner.List(ctx, prefix)
	return entries, deadline(ctx, err)
}

func (t *timeoutBackend) Read(ctx context.Context, path string) (Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	blob, err := t.inner.Read(ctx, path)
	return blob, deadline(ctx, err)
}

func (t *timeoutBackend) Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return deadline(ctx, t.inner.Write(ctx, path, data, mode, token))
}

func (t *timeoutBackend) Delete(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return deadline(ctx, t.inner.Delete(ctx, path))
}

func deadline(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
