// Package archive bundles the files of resources into one ZIP stream.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"

	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/logger"
	"rpucella.net/red-drive/internal/storage"
)

const (
	ArchiveName = "RedDrive_Archive.zip"
	ContentType = "application/zip"
)

var ErrMissingFile = errors.New("file missing from backend")

// Policy decides what happens to a file listed in a resource but absent
// from the backend. Other read errors always abort.
type Policy int

const (
	Skip Policy = iota
	Abort
)

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "skip":
		return Skip, nil
	case "abort":
		return Abort, nil
	}
	return Skip, fmt.Errorf("unknown missing-file policy %q", s)
}

func (p Policy) String() string {
	if p == Abort {
		return "abort"
	}
	return "skip"
}

type Missing struct {
	ID   string
	File string
}

// Report lists what went into the archive.
type Report struct {
	Entries []string
	Skipped []Missing
}

type Bundler struct {
	backend storage.Backend
	policy  Policy
	log     *logrus.Entry
}

func NewBundler(backend storage.Backend, policy Policy, log *logrus.Entry) *Bundler {
	return &Bundler{backend, policy, logger.OrDefault(log, "archive")}
}

// Bundle writes one ZIP of every file of resources to w. A single
// resource is stored flat; several are each put in a folder named after
// their title.
func (b *Bundler) Bundle(ctx context.Context, w io.Writer, resources []catalog.Resource) (Report, error) {
	var report Report
	folders := Folders(resources)
	zw := zip.NewWriter(w)
	for i, r := range resources {
		for _, name := range r.Files {
			if err := ctx.Err(); err != nil {
				zw.Close()
				return report, err
			}
			blob, err := b.backend.Read(ctx, storage.Join(r.Path, name))
			if errors.Is(err, storage.ErrNotFound) {
				log := b.log.WithFields(logrus.Fields{"id": r.ID, "file": name})
				if b.policy == Abort {
					log.Warn("missing file, aborting archive")
					zw.Close()
					return report, fmt.Errorf("%s/%s: %w", r.ID, name, ErrMissingFile)
				}
				log.Warn("missing file left out of archive")
				report.Skipped = append(report.Skipped, Missing{r.ID, name})
				continue
			}
			if err != nil {
				zw.Close()
				return report, fmt.Errorf("cannot read %s/%s: %w", r.ID, name, err)
			}
			entry := storage.Join(folders[i], name)
			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     entry,
				Method:   zip.Deflate,
				Modified: time.Now(),
			})
			if err != nil {
				return report, fmt.Errorf("zip %s: %w", entry, err)
			}
			if _, err := fw.Write(blob.Data); err != nil {
				return report, fmt.Errorf("zip %s: %w", entry, err)
			}
			report.Entries = append(report.Entries, entry)
		}
	}
	if err := zw.Close(); err != nil {
		return report, fmt.Errorf("zip close: %w", err)
	}
	return report, nil
}

// Folders returns the archive folder of each resource: none for a single
// resource, else the sanitized title, or the id when the title sanitizes
// to nothing. A name shared by several resources gets _id appended, and
// any clash left after that a numeric suffix, so folders never collide.
func Folders(resources []catalog.Resource) []string {
	folders := make([]string, len(resources))
	if len(resources) < 2 {
		return folders
	}
	count := make(map[string]int, len(resources))
	for i, r := range resources {
		folders[i] = catalog.Sanitize(r.Title)
		if folders[i] == "" {
			folders[i] = r.ID
		}
		count[folders[i]]++
	}
	for i, r := range resources {
		if count[folders[i]] > 1 {
			folders[i] = folders[i] + "_" + r.ID
		}
	}
	taken := make(map[string]bool, len(resources))
	for i, base := range folders {
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		folders[i] = name
	}
	return folders
}
