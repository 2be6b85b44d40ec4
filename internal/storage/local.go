package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"rpucella.net/red-drive/internal/util"
)

const tmpPrefix = ".reddrive-tmp-"

// LocalFileSystem keeps blobs as plain files under root. Tokens are the
// CRC32C of the file content.
type LocalFileSystem struct {
	root string
	mu   sync.Mutex // serializes check-then-write within the process
}

func NewLocalFileSystem(root string) *LocalFileSystem {
	return &LocalFileSystem{root: root}
}

func (s *LocalFileSystem) Name() string {
	return fmt.Sprintf("local::%s", s.root)
}

func (s *LocalFileSystem) resolve(path string) (string, error) {
	clean, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// missing reports whether err means no file lives at the path: nothing
// there, a plain file where a folder was expected, or a folder.
func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) || errors.Is(err, syscall.EISDIR)
}

func (s *LocalFileSystem) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(dir)
	if missing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadDir: %w", err)
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item.Name(), tmpPrefix) {
			continue
		}
		entries = append(entries, Entry{item.Name(), item.IsDir()})
	}
	return entries, nil
}

func (s *LocalFileSystem) Read(ctx context.Context, path string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	target, err := s.resolve(path)
	if err != nil {
		return Blob{}, err
	}
	data, err := os.ReadFile(target)
	if missing(err) {
		return Blob{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Blob{}, fmt.Errorf("os.ReadFile: %w", err)
	}
	return Blob{data, util.Checksum(data)}, nil
}

func (s *LocalFileSystem) Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case CreateOnly:
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("os.MkdirAll: %w", err)
		}
		tmp, err := writeTemp(target, data)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		// Link fails if target exists, which makes the create atomic on disk.
		if err := os.Link(tmp, target); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%s: %w", path, ErrConflict)
			}
			return fmt.Errorf("os.Link: %w", err)
		}
		return nil
	case UpdateOnly:
		current, err := os.ReadFile(target)
		if missing(err) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("os.ReadFile: %w", err)
		}
		if token != "" && util.Checksum(current) != token {
			return fmt.Errorf("%s: stale token: %w", path, ErrConflict)
		}
		tmp, err := writeTemp(target, data)
		if err != nil {
			return err
		}
		if err := os.Rename(tmp, target); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("os.Rename: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown write mode %d", mode)
}

func writeTemp(target string, data []byte) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(target), tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("os.CreateTemp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

func (s *LocalFileSystem) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(target)
	if missing(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("os.Stat: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a folder", ErrInvalidPath, path)
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("os.Remove: %w", err)
	}
	// Folders only exist through their blobs: drop emptied parents.
	root := filepath.Clean(s.root)
	for dir := filepath.Dir(target); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}
