package archive

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpucella.net/red-drive/internal/catalog"
	"rpucella.net/red-drive/internal/storage"
	"rpucella.net/red-drive/internal/upload"
)

func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(content)
	}
	return files
}

func keys(m map[string]string) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

func TestBundleUploadedResource(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemory()
	store := catalog.NewStore(catalog.NewRepository(b, "res", nil), time.Hour, nil)
	coord := upload.NewCoordinator(store, nil, 2, nil)
	_, err := coord.Upload(ctx, upload.Request{
		ID:       "demo_ab12",
		Title:    "Demo",
		Category: "Tool",
		Files:    []upload.File{{Name: "a.txt", Data: []byte("alpha")}, {Name: "b.txt", Data: []byte("bravo")}},
	})
	require.NoError(t, err)

	rs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, []string{"a.txt", "b.txt"}, rs[0].Files)

	var buf bytes.Buffer
	report, err := NewBundler(b, Skip, nil).Bundle(ctx, &buf, rs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, report.Entries)
	files := unzip(t, buf.Bytes())
	assert.Equal(t, []string{"a.txt", "b.txt"}, keys(files))
	assert.Equal(t, "bravo", files["b.txt"])
}

func seedResource(t *testing.T, b storage.Backend, id, title string, files map[string]string) catalog.Resource {
	t.Helper()
	r := catalog.Resource{ID: id, Title: title, Path: storage.Join("res", id)}
	for name, content := range files {
		require.NoError(t, b.Write(context.Background(), storage.Join(r.Path, name), []byte(content), storage.CreateOnly, ""))
		r.Files = append(r.Files, name)
	}
	sort.Strings(r.Files)
	return r
}

func TestBundleNamespacesSeveralResources(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemory()
	rs := []catalog.Resource{
		seedResource(t, b, "q1_aaaa", "Q1 Sales", map[string]string{"report.txt": "q1"}),
		seedResource(t, b, "q2_bbbb", "Q2 Sales", map[string]string{"report.txt": "q2"}),
	}

	var buf bytes.Buffer
	_, err := NewBundler(b, Skip, nil).Bundle(ctx, &buf, rs)
	require.NoError(t, err)
	files := unzip(t, buf.Bytes())
	assert.Equal(t, map[string]string{"Q1Sales/report.txt": "q1", "Q2Sales/report.txt": "q2"}, files)
}

func TestBundleUntitledResourceNamedLikeATitle(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemory()
	rs := []catalog.Resource{
		seedResource(t, b, "d_1", "Demo", map[string]string{"report.txt": "titled"}),
		seedResource(t, b, "Demo", "!!!", map[string]string{"report.txt": "untitled"}),
	}

	var buf bytes.Buffer
	report, err := NewBundler(b, Skip, nil).Bundle(ctx, &buf, rs)
	require.NoError(t, err)
	assert.Len(t, report.Entries, 2)
	files := unzip(t, buf.Bytes())
	assert.Equal(t, map[string]string{"Demo_d_1/report.txt": "titled", "Demo_Demo/report.txt": "untitled"}, files)
}

func TestBundleMissingFile(t *testing.T) {
	ctx := context.Background()
	b := storage.NewMemory()
	r := seedResource(t, b, "d_1", "D", map[string]string{"a.txt": "a"})
	r.Files = append(r.Files, "gone.txt")

	t.Run("skip", func(t *testing.T) {
		var buf bytes.Buffer
		report, err := NewBundler(b, Skip, nil).Bundle(ctx, &buf, []catalog.Resource{r})
		require.NoError(t, err)
		assert.Equal(t, []Missing{{"d_1", "gone.txt"}}, report.Skipped)
		assert.Equal(t, []string{"a.txt"}, keys(unzip(t, buf.Bytes())))
	})

	t.Run("abort", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := NewBundler(b, Abort, nil).Bundle(ctx, &buf, []catalog.Resource{r})
		assert.ErrorIs(t, err, ErrMissingFile)
	})
}

func TestBundleNothing(t *testing.T) {
	var buf bytes.Buffer
	report, err := NewBundler(storage.NewMemory(), Skip, nil).Bundle(context.Background(), &buf, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	assert.Empty(t, unzip(t, buf.Bytes()))
}

func TestFolders(t *testing.T) {
	assert.Equal(t, []string{""}, Folders([]catalog.Resource{{ID: "a", Title: "A"}}))
	assert.Equal(t,
		[]string{"Notes_n_1", "Notes_n_2", "x_3", "Other"},
		Folders([]catalog.Resource{
			{ID: "n_1", Title: "Notes"},
			{ID: "n_2", Title: "Notes!"},
			{ID: "x_3", Title: "???"},
			{ID: "o_4", Title: "Other"},
		}))

	t.Run("id fallback shares a title's name", func(t *testing.T) {
		assert.Equal(t,
			[]string{"Demo_d_1", "Demo_Demo"},
			Folders([]catalog.Resource{
				{ID: "d_1", Title: "Demo"},
				{ID: "Demo", Title: "!!!"},
			}))
		assert.Equal(t,
			[]string{"Demo_d_1", "Demo_d_1_2", "Demo_Demo"},
			Folders([]catalog.Resource{
				{ID: "d_1", Title: "Demo"},
				{ID: "Demo_d_1", Title: ""},
				{ID: "Demo", Title: "!!!"},
			}))
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("abort")
	require.NoError(t, err)
	assert.Equal(t, Abort, p)
	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Skip, p)
	_, err = ParsePolicy("maybe")
	assert.Error(t, err)
}
