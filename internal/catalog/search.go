package catalog

import (
	"strings"
)

// Matches reports whether query occurs, ignoring case, in the id, title,
// category, description or one of the file names of r. An empty query
// matches everything.
func Matches(r Resource, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	fields := append([]string{r.ID, r.Title, r.Category, r.Description}, r.Files...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func Filter(rs []Resource, query string) []Resource {
	result := make([]Resource, 0, len(rs))
	for _, r := range rs {
		if Matches(r, query) {
			result = append(result, r)
		}
	}
	return result
}
