// Package upload persists new and edited resources as a sequence of
// single-blob writes followed by one metadata write.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/describe"
	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/storage"
)

const maxIDAttempts = 3

type File struct {
	Name string
	Data []byte
}

// Request describes a resource to create. With an empty ID a new one is
// derived from Title; with an empty Description one is generated from
// the files and Hint.
type Request struct {
	ID          string
	Title       string
	Category    string
	Hint        string
	Description string
	Files       []File
}

// Edit changes an existing resource. Nil fields are left alone.
type Edit struct {
	Title       *string
	Category    *string
	Description *string
	Add         []File
	Remove      []string
}

type Coordinator struct {
	store     *catalog.Store
	describer *describe.Describer
	workers   int
	log       *logrus.Entry
}

func NewCoordinator(store *catalog.Store, describer *describe.Describer, workers int, log *logrus.Entry) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	return &Coordinator{store, describer, workers, logger.OrDefault(log, "upload")}
}

// Upload writes every file of req, then the metadata record. A failed
// file write stops the upload before the metadata is written and is
// reported as an *Error.
func (c *Coordinator) Upload(ctx context.Context, req Request) (catalog.Resource, error) {
	if req.Title == "" {
		return catalog.Resource{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if len(req.Files) == 0 {
		return catalog.Resource{}, fmt.Errorf("%w: at least one file is required", ErrInvalidRequest)
	}
	if err := checkFiles(req.Files); err != nil {
		return catalog.Resource{}, err
	}
	id := req.ID
	if id == "" {
		var err error
		if id, err = c.newID(ctx, req.Title); err != nil {
			return catalog.Resource{}, err
		}
	} else if err := storage.ValidateName(id); err != nil {
		return catalog.Resource{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	log := c.log.WithField("id", id)

	description := req.Description
	if description == "" {
		description = c.describer.Describe(ctx, describe.Digest(toDigest(req.Files), 0), req.Hint)
	}

	written, err := c.writeFiles(ctx, id, req.Files)
	if err != nil {
		return catalog.Resource{}, err
	}
	files, err := c.reconcile(ctx, id, written)
	if err != nil {
		return catalog.Resource{}, &Error{id, catalog.METADATA_FILE, written, err}
	}
	res, err := c.store.Save(ctx, catalog.Resource{
		ID:          id,
		Title:       req.Title,
		Category:    req.Category,
		Description: description,
		Files:       files,
	})
	if err != nil {
		return catalog.Resource{}, &Error{id, catalog.METADATA_FILE, written, err}
	}
	log.WithField("files", len(res.Files)).Info("resource uploaded")
	return res, nil
}

// Edit applies e to the resource id: added files are written, removed
// files deleted, and the metadata rewritten to match the folder.
func (c *Coordinator) Edit(ctx context.Context, id string, e Edit) (catalog.Resource, error) {
	res, err := c.store.Get(ctx, id)
	if err != nil {
		return catalog.Resource{}, err
	}
	if err := checkFiles(e.Add); err != nil {
		return catalog.Resource{}, err
	}
	if e.Title != nil {
		if *e.Title == "" {
			return catalog.Resource{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
		}
		res.Title = *e.Title
	}
	if e.Category != nil {
		res.Category = *e.Category
	}
	if e.Description != nil {
		res.Description = *e.Description
	}
	log := c.log.WithField("id", id)

	written, err := c.writeFiles(ctx, id, e.Add)
	if err != nil {
		return catalog.Resource{}, err
	}
	added := make(map[string]bool, len(e.Add))
	for _, f := range e.Add {
		added[f.Name] = true
	}
	removed := make(map[string]bool, len(e.Remove))
	for _, name := range e.Remove {
		if added[name] || storage.ValidateName(name) != nil || name == catalog.METADATA_FILE {
			continue
		}
		if _, err := storage.Remove(ctx, c.store.Backend(), storage.Join(res.Path, name)); err != nil {
			return catalog.Resource{}, &Error{id, name, written, err}
		}
		removed[name] = true
	}

	var files []string
	for _, f := range res.Files {
		if !removed[f] {
			files = append(files, f)
		}
	}
	files, err = c.reconcile(ctx, id, append(files, written...))
	if err != nil {
		return catalog.Resource{}, &Error{id, catalog.METADATA_FILE, written, err}
	}
	res.Files = files
	res, err = c.store.Save(ctx, res)
	if err != nil {
		return catalog.Resource{}, &Error{id, catalog.METADATA_FILE, written, err}
	}
	log.WithFields(logrus.Fields{"added": len(written), "removed": len(removed)}).Info("resource edited")
	return res, nil
}

// writeFiles puts every file under the resource folder, at most
// c.workers at a time. The names written before the first failure are
// returned in request order.
func (c *Coordinator) writeFiles(ctx context.Context, id string, files []File) ([]string, error) {
	backend := c.store.Backend()
	folder := c.store.Repository().PathOf(id)

	var mu sync.Mutex
	done := make(map[string]bool, len(files))
	var failed string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			step, err := storage.Put(gctx, backend, storage.Join(folder, f.Name), f.Data)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if failed == "" {
					failed = f.Name
				}
				return err
			}
			done[f.Name] = true
			c.log.WithFields(logrus.Fields{"id": id, "file": f.Name, "step": step}).Debug("file written")
			return nil
		})
	}
	err := g.Wait()

	var written []string
	for _, f := range files {
		if done[f.Name] {
			written = append(written, f.Name)
		}
	}
	if err != nil {
		if failed == "" {
			failed = firstMissing(files, done)
		}
		c.log.WithFields(logrus.Fields{"id": id, "file": failed}).WithError(err).Warn("upload stopped")
		return written, &Error{id, failed, written, err}
	}
	return written, nil
}

// reconcile orders the metadata file list: names in files that exist on
// the backend, then any other blob found in the folder.
func (c *Coordinator) reconcile(ctx context.Context, id string, files []string) ([]string, error) {
	blobs, err := c.store.Repository().Blobs(ctx, id)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(blobs))
	for _, b := range blobs {
		present[b] = true
	}
	var result []string
	for _, f := range catalog.CleanFiles(files) {
		if present[f] {
			result = append(result, f)
			delete(present, f)
		}
	}
	var extra []string
	for b := range present {
		extra = append(extra, b)
	}
	sort.Strings(extra)
	return append(result, extra...), nil
}

func (c *Coordinator) newID(ctx context.Context, title string) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := NewID(title)
		blobs, err := c.store.Repository().Blobs(ctx, id)
		if err != nil {
			return "", err
		}
		if len(blobs) == 0 {
			return id, nil
		}
	}
	return "", errors.New("cannot find a free resource id")
}

func checkFiles(files []File) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if err := storage.ValidateName(f.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		if f.Name == catalog.METADATA_FILE {
			return fmt.Errorf("%w: %s is reserved", ErrInvalidRequest, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate file %s", ErrInvalidRequest, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func firstMissing(files []File, done map[string]bool) string {
	for _, f := range files {
		if !done[f.Name] {
			return f.Name
		}
	}
	return ""
}

func toDigest(files []File) []describe.File {
	result := make([]describe.File, len(files))
	for i, f := range files {
		result[i] = describe.File{Name: f.Name, Data: f.Data}
	}
	return result
}
