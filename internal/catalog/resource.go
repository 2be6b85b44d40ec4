package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// METADATA_FILE is the record every resource folder carries.
const METADATA_FILE = "info.json"

var (
	ErrNotFound        = errors.New("resource not found")
	ErrMetadataCorrupt = errors.New("resource metadata corrupt")
)

// Categories is the suggested vocabulary. The store does not enforce it.
var Categories = []string{"Workflow", "Prompt", "Data", "Tool"}

// Resource is one catalog entry: a folder of files plus its metadata.
// ID is the folder name and Path the backend prefix of the folder.
type Resource struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
	Path        string   `json:"path"`

	// Fields of info.json this program does not know about.
	extra map[string]json.RawMessage
}

// HasFile reports whether name is one of the resource's files.
func (r Resource) HasFile(name string) bool {
	for _, f := range r.Files {
		if f == name {
			return true
		}
	}
	return false
}

// Clone copies the resource so callers can edit Files freely.
func (r Resource) Clone() Resource {
	c := r
	c.Files = append([]string(nil), r.Files...)
	if r.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			c.extra[k] = v
		}
	}
	return c
}

// CleanFiles drops the metadata file name, empty names and duplicates,
// keeping the first occurrence order.
func CleanFiles(files []string) []string {
	seen := make(map[string]bool, len(files))
	result := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" || f == METADATA_FILE || seen[f] {
			continue
		}
		seen[f] = true
		result = append(result, f)
	}
	return result
}

// Sanitize keeps the letters and digits of title. Ids and archive
// folders are built from it.
func Sanitize(title string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, title)
}

var knownFields = []string{"title", "category", "description", "files"}

// decodeRecord parses info.json. title is required; category and
// description default to empty, files to an empty list.
func decodeRecord(data []byte) (Resource, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Resource{}, fmt.Errorf("%w: %v", ErrMetadataCorrupt, err)
	}
	if fields == nil {
		return Resource{}, fmt.Errorf("%w: not an object", ErrMetadataCorrupt)
	}
	var r Resource
	raw, ok := fields["title"]
	if !ok {
		return Resource{}, fmt.Errorf("%w: missing title", ErrMetadataCorrupt)
	}
	if err := json.Unmarshal(raw, &r.Title); err != nil {
		return Resource{}, fmt.Errorf("%w: title: %v", ErrMetadataCorrupt, err)
	}
	if raw, ok := fields["category"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.Category); err != nil {
			return Resource{}, fmt.Errorf("%w: category: %v", ErrMetadataCorrupt, err)
		}
	}
	if raw, ok := fields["description"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.Description); err != nil {
			return Resource{}, fmt.Errorf("%w: description: %v", ErrMetadataCorrupt, err)
		}
	}
	if raw, ok := fields["files"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &r.Files); err != nil {
			return Resource{}, fmt.Errorf("%w: files: %v", ErrMetadataCorrupt, err)
		}
	}
	r.Files = CleanFiles(r.Files)
	for _, k := range knownFields {
		delete(fields, k)
	}
	if len(fields) > 0 {
		r.extra = fields
	}
	return r, nil
}

// encodeRecord renders info.json, carrying unknown fields through.
func encodeRecord(r Resource) ([]byte, error) {
	fields := make(map[string]any, len(r.extra)+len(knownFields))
	for k, v := range r.extra {
		fields[k] = v
	}
	files := CleanFiles(r.Files)
	fields["title"] = r.Title
	fields["category"] = r.Category
	fields["description"] = r.Description
	fields["files"] = files

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", METADATA_FILE, err)
	}
	return buf.Bytes(), nil
}
