package upload

import (
	"strings"

	"github.com/google/uuid"

	"rpucella.net/red-drive/internal/catalog"
)

const idSuffixLength = 8

// NewID derives a folder name from title plus a random suffix, e.g.
//   NewID("My Demo!") == "MyDemo_1f3a9c0d"
func NewID(title string) string {
	base := catalog.Sanitize(title)
	if base == "" {
		base = "resource"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
	return base + "_" + suffix
}
