package describe

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

const (
	ExcerptLength = 2000
	DigestLength  = 16000
)

var textExtensions = []string{".py", ".js", ".html", ".css", ".json", ".txt", ".md", ".gs", ".sh", ".csv"}

type File struct {
	Name string
	Data []byte
}

// isText decides from the name first and falls back to sniffing the
// content.
func isText(f File) bool {
	ext := strings.ToLower(path.Ext(f.Name))
	for _, e := range textExtensions {
		if ext == e {
			return true
		}
	}
	mtype := mimetype.Detect(f.Data)
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return strings.HasPrefix(mtype.String(), "text/")
}

// Digest concatenates an excerpt of every text file, at most ExcerptLength
// characters each, and a marker for the other files. The result is cut at
// limit characters; limit <= 0 means DigestLength.
func Digest(files []File, limit int) string {
	if limit <= 0 {
		limit = DigestLength
	}
	var b strings.Builder
	for _, f := range files {
		switch {
		case !isText(f):
			fmt.Fprintf(&b, "\n--- File: %s (Binary) ---\n", f.Name)
		case !utf8.Valid(f.Data):
			fmt.Fprintf(&b, "\n--- File: %s (Binary/Unreadable) ---\n", f.Name)
		default:
			fmt.Fprintf(&b, "\n--- File: %s ---\n%s\n", f.Name, truncate(string(f.Data), ExcerptLength))
		}
	}
	return truncate(b.String(), limit)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
