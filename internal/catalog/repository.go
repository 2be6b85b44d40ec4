package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/storage"
)

const scanWorkers = 8

// Repository maps resource folders under root to Resources. It is the
// only writer of METADATA_FILE.
type Repository struct {
	backend storage.Backend
	root    string
	log     *logrus.Entry
}

func NewRepository(backend storage.Backend, root string, log *logrus.Entry) *Repository {
	return &Repository{backend, root, logger.OrDefault(log, "catalog")}
}

func (r *Repository) Backend() storage.Backend {
	return r.backend
}

// PathOf is the backend prefix of the resource folder id.
func (r *Repository) PathOf(id string) string {
	return storage.Join(r.root, id)
}

// List scans the immediate sub-folders of root. Folders without a valid
// METADATA_FILE are skipped. The result is sorted by title, descending,
// ties by id.
func (r *Repository) List(ctx context.Context) ([]Resource, error) {
	entries, err := r.backend.List(ctx, r.root)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", r.root, err)
	}
	var folders []string
	for _, e := range entries {
		if e.IsFolder {
			folders = append(folders, e.Name)
		}
	}

	loaded := make([]*Resource, len(folders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)
	for i, name := range folders {
		g.Go(func() error {
			res, err := r.load(gctx, name)
			if errors.Is(err, ErrNotFound) {
				// Skip errors silently, other than a log line.
				r.log.WithField("id", name).WithError(err).Debug("skipping folder")
				return nil
			}
			if err != nil {
				return err
			}
			loaded[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]Resource, 0, len(loaded))
	for _, res := range loaded {
		if res != nil {
			result = append(result, *res)
		}
	}
	sortResources(result)
	return result, nil
}

func sortResources(rs []Resource) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Title != rs[j].Title {
			return rs[i].Title > rs[j].Title
		}
		return rs[i].ID < rs[j].ID
	})
}

// Get loads one resource. Absent folders and absent or corrupt metadata
// all fail with ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (Resource, error) {
	if err := storage.ValidateName(id); err != nil {
		return Resource{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return r.load(ctx, id)
}

func (r *Repository) load(ctx context.Context, id string) (Resource, error) {
	path := r.PathOf(id)
	blob, err := r.backend.Read(ctx, storage.Join(path, METADATA_FILE))
	if errors.Is(err, storage.ErrNotFound) {
		return Resource{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Resource{}, fmt.Errorf("cannot read %s: %w", id, err)
	}
	res, err := decodeRecord(blob.Data)
	if err != nil {
		r.log.WithField("id", id).WithError(err).Warn("unreadable metadata")
		return Resource{}, fmt.Errorf("%s: %w: %w", id, ErrNotFound, err)
	}
	res.ID = id
	res.Path = path
	return res, nil
}

// Save writes the metadata record of res, creating or replacing it.
func (r *Repository) Save(ctx context.Context, res Resource) (Resource, error) {
	if err := storage.ValidateName(res.ID); err != nil {
		return Resource{}, fmt.Errorf("bad resource id: %w", err)
	}
	res = res.Clone()
	res.Files = CleanFiles(res.Files)
	res.Path = r.PathOf(res.ID)
	data, err := encodeRecord(res)
	if err != nil {
		return Resource{}, err
	}
	step, err := storage.Put(ctx, r.backend, storage.Join(res.Path, METADATA_FILE), data)
	if err != nil {
		return Resource{}, fmt.Errorf("cannot save %s: %w", res.ID, err)
	}
	r.log.WithFields(logrus.Fields{"id": res.ID, "step": step}).Debug("metadata saved")
	return res, nil
}

// Blobs lists the file names stored in the resource folder, metadata
// excluded.
func (r *Repository) Blobs(ctx context.Context, id string) ([]string, error) {
	entries, err := r.backend.List(ctx, r.PathOf(id))
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", id, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsFolder && e.Name != METADATA_FILE {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// Delete removes every blob of the resource. The metadata goes first so
// the resource stops being listed before its files disappear. Blobs that
// are already gone count as deleted, so deleting a missing id succeeds.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := storage.ValidateName(id); err != nil {
		return fmt.Errorf("bad resource id: %w", err)
	}
	path := r.PathOf(id)
	if _, err := storage.Remove(ctx, r.backend, storage.Join(path, METADATA_FILE)); err != nil {
		return fmt.Errorf("cannot delete %s: %w", id, err)
	}
	if err := r.removeTree(ctx, path); err != nil {
		return fmt.Errorf("cannot delete %s: %w", id, err)
	}
	r.log.WithField("id", id).Info("resource deleted")
	return nil
}

func (r *Repository) removeTree(ctx context.Context, prefix string) error {
	entries, err := r.backend.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := storage.Join(prefix, e.Name)
		if e.IsFolder {
			if err := r.removeTree(ctx, p); err != nil {
				return err
			}
			continue
		}
		removed, err := storage.Remove(ctx, r.backend, p)
		if err != nil {
			return err
		}
		if !removed {
			r.log.WithField("path", p).Debug("already deleted")
		}
	}
	return nil
}
