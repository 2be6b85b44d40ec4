package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "resources/demo/a.txt", Join("resources", "demo", "a.txt"))
	assert.Equal(t, "demo/a.txt", Join("", "demo/", "/a.txt"))
	assert.Equal(t, "", Join())
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "a\x00b"} {
		assert.ErrorIs(t, ValidateName(name), ErrInvalidPath, "name %q", name)
	}
	assert.NoError(t, ValidateName("Notes_1a2b3c4d"))
	assert.NoError(t, ValidateName(".hidden"))
}

func TestChildOf(t *testing.T) {
	tests := []struct {
		prefix, key string
		name        string
		isFolder    bool
		ok          bool
	}{
		{"r", "r/a/info.json", "a", true, true},
		{"r", "r/a.txt", "a.txt", false, true},
		{"r", "rr/a.txt", "", false, false},
		{"", "a/b", "a", true, true},
		{"", "a", "a", false, true},
	}
	for _, tt := range tests {
		name, isFolder, ok := childOf(tt.prefix, tt.key)
		assert.Equal(t, tt.ok, ok, "%s in %s", tt.key, tt.prefix)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.isFolder, isFolder)
	}
}
