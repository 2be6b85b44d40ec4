package storage

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"hash/crc32"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "reddrive-test"

type fakeObject struct {
	data []byte
	gen  int64
}

// fakeBucket is the object map behind the GCS and S3 test servers. Each
// write bumps a bucket-wide generation.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	gen     int64
	updated time.Time
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string]fakeObject{}, updated: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (b *fakeBucket) store(name string, data []byte) fakeObject {
	b.gen++
	obj := fakeObject{data, b.gen}
	b.objects[name] = obj
	return obj
}

// children splits the names under prefix at the next "/".
func (b *fakeBucket) children(prefix string) (names []string, prefixes []string) {
	seen := map[string]bool{}
	for name := range b.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			p := prefix + rest[:i+1]
			if !seen[p] {
				seen[p] = true
				prefixes = append(prefixes, p)
			}
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	sort.Strings(prefixes)
	return names, prefixes
}

// fakeGCS answers the JSON API calls and XML reads the storage client
// makes against STORAGE_EMULATOR_HOST.
type fakeGCS struct {
	*fakeBucket
}

func (f fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const objects = "/storage/v1/b/" + testBucket + "/o"
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload"+objects:
		f.insert(w, r)
	case r.Method == http.MethodGet && r.URL.Path == objects:
		q := r.URL.Query()
		names, prefixes := f.children(q.Get("prefix"))
		items := []map[string]any{}
		for _, name := range names {
			items = append(items, gcsResource(name, f.objects[name]))
		}
		gcsJSON(w, http.StatusOK, map[string]any{"kind": "storage#objects", "items": items, "prefixes": prefixes})
	case strings.HasPrefix(r.URL.Path, objects+"/"):
		name := strings.TrimPrefix(r.URL.Path, objects+"/")
		obj, ok := f.objects[name]
		if !ok {
			gcsError(w, http.StatusNotFound, "No such object: "+name)
			return
		}
		switch r.Method {
		case http.MethodGet:
			gcsJSON(w, http.StatusOK, gcsResource(name, obj))
		case http.MethodDelete:
			delete(f.objects, name)
			w.WriteHeader(http.StatusNoContent)
		default:
			gcsError(w, http.StatusMethodNotAllowed, r.Method)
		}
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/"+testBucket+"/"):
		obj, ok := f.objects[strings.TrimPrefix(r.URL.Path, "/"+testBucket+"/")]
		if !ok {
			http.Error(w, "NoSuchKey", http.StatusNotFound)
			return
		}
		w.Header().Set("X-Goog-Generation", strconv.FormatInt(obj.gen, 10))
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
		w.Write(obj.data)
	default:
		gcsError(w, http.StatusBadRequest, "unexpected "+r.Method+" "+r.URL.Path)
	}
}

func (f fakeGCS) insert(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		gcsError(w, http.StatusBadRequest, err.Error())
		return
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	var meta struct {
		Name string `json:"name"`
	}
	part, err := mr.NextPart()
	if err == nil {
		err = json.NewDecoder(part).Decode(&meta)
	}
	if err == nil {
		part, err = mr.NextPart()
	}
	if err != nil {
		gcsError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(part)
	if err != nil {
		gcsError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = meta.Name
	}
	if cond := r.URL.Query().Get("ifGenerationMatch"); cond != "" {
		want, _ := strconv.ParseInt(cond, 10, 64)
		if f.objects[name].gen != want {
			gcsError(w, http.StatusPreconditionFailed, "At least one of the pre-conditions you specified did not hold.")
			return
		}
	}
	gcsJSON(w, http.StatusOK, gcsResource(name, f.store(name, data)))
}

func gcsResource(name string, obj fakeObject) map[string]any {
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.Checksum(obj.data, crc32.MakeTable(crc32.Castagnoli)))
	return map[string]any{
		"kind":           "storage#object",
		"bucket":         testBucket,
		"name":           name,
		"generation":     strconv.FormatInt(obj.gen, 10),
		"metageneration": "1",
		"size":           strconv.Itoa(len(obj.data)),
		"crc32c":         base64.StdEncoding.EncodeToString(crc[:]),
	}
}

func gcsJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func gcsError(w http.ResponseWriter, status int, message string) {
	gcsJSON(w, status, map[string]any{"error": map[string]any{"code": status, "message": message}})
}

// fakeS3 answers the path-style requests of an anonymous minio client:
// bucket HEAD, ListObjectsV2 and object HEAD/GET/PUT/DELETE with
// If-Match and If-None-Match on PUT.
type fakeS3 struct {
	*fakeBucket
}

type s3Contents struct {
	Key          string
	LastModified string
	ETag         string
	Size         int64
}

type s3Prefix struct {
	Prefix string
}

type s3ListResult struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	Name           string
	Prefix         string
	Delimiter      string
	KeyCount       int
	MaxKeys        int
	IsTruncated    bool
	Contents       []s3Contents
	CommonPrefixes []s3Prefix
}

func s3ETag(obj fakeObject) string {
	return fmt.Sprintf("etag-%d", obj.gen)
}

func (f fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/"+testBucket) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+testBucket), "/")
	if key == "" {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			prefix := r.URL.Query().Get("prefix")
			names, prefixes := f.children(prefix)
			result := s3ListResult{Name: testBucket, Prefix: prefix, Delimiter: "/", MaxKeys: 1000}
			for _, name := range names {
				obj := f.objects[name]
				result.Contents = append(result.Contents, s3Contents{
					Key:          name,
					LastModified: f.updated.Format(time.RFC3339),
					ETag:         `"` + s3ETag(obj) + `"`,
					Size:         int64(len(obj.data)),
				})
			}
			for _, p := range prefixes {
				result.CommonPrefixes = append(result.CommonPrefixes, s3Prefix{p})
			}
			result.KeyCount = len(result.Contents) + len(result.CommonPrefixes)
			w.Header().Set("Content-Type", "application/xml")
			xml.NewEncoder(w).Encode(result)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	obj, exists := f.objects[key]
	switch r.Method {
	case http.MethodHead, http.MethodGet:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.objectHeaders(w, obj)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(obj.data)
		}
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("If-None-Match") == "*" && exists {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		if match := r.Header.Get("If-Match"); match != "" {
			if !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if match != "*" && strings.Trim(match, `"`) != s3ETag(obj) {
				w.WriteHeader(http.StatusPreconditionFailed)
				return
			}
		}
		obj = f.store(key, data)
		w.Header().Set("ETag", `"`+s3ETag(obj)+`"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f fakeS3) objectHeaders(w http.ResponseWriter, obj fakeObject) {
	w.Header().Set("ETag", `"`+s3ETag(obj)+`"`)
	w.Header().Set("Last-Modified", f.updated.Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.Header().Set("Content-Type", "application/octet-stream")
}

func newTestGCS(t *testing.T) *GoogleCloud {
	t.Helper()
	srv := httptest.NewServer(fakeGCS{newFakeBucket()})
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", srv.Listener.Addr().String())
	gcs, err := NewGoogleCloud(context.Background(), testBucket)
	require.NoError(t, err)
	t.Cleanup(func() { gcs.Close() })
	return gcs
}

func newTestMinIO(t *testing.T) *MinIO {
	t.Helper()
	srv := httptest.NewServer(fakeS3{newFakeBucket()})
	t.Cleanup(srv.Close)
	m, err := NewMinIO(context.Background(), MinIOConfig{
		Endpoint: srv.Listener.Addr().String(),
		Bucket:   testBucket,
		Region:   "us-east-1",
	})
	require.NoError(t, err)
	return m
}

func TestRemoteConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	remotes := map[string]Backend{
		"gcs":   newTestGCS(t),
		"minio": newTestMinIO(t),
	}
	for name, b := range remotes {
		t.Run(name, func(t *testing.T) {
			const writers = 6
			var wg sync.WaitGroup
			errs := make([]error, writers)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = b.Write(ctx, "race/info.json", []byte(strconv.Itoa(i)), CreateOnly, "")
				}()
			}
			wg.Wait()

			created := 0
			for _, err := range errs {
				if err == nil {
					created++
					continue
				}
				assert.ErrorIs(t, err, ErrConflict)
			}
			assert.Equal(t, 1, created)
		})
	}
}

func TestRemoteUpdateOfDeletedObject(t *testing.T) {
	ctx := context.Background()
	remotes := map[string]Backend{
		"gcs":   newTestGCS(t),
		"minio": newTestMinIO(t),
	}
	for name, b := range remotes {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Write(ctx, "gone/a.txt", []byte("a"), CreateOnly, ""))
			blob, err := b.Read(ctx, "gone/a.txt")
			require.NoError(t, err)
			require.NoError(t, b.Delete(ctx, "gone/a.txt"))

			err = b.Write(ctx, "gone/a.txt", []byte("b"), UpdateOnly, blob.Token)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
