package hub

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// annotationArchive builds a minimal COCO annotation zip with the given
// instances JSON body.
func annotationArchive(t *testing.T, instancesJSON string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(instancesEntryName)
	require.NoError(t, err)
	_, err = w.Write([]byte(instancesJSON))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCategoryCacheNames(t *testing.T) {
	archive := annotationArchive(t, `{
		"categories": [
			{"id": 3, "name": "car"},
			{"id": 1, "name": "person"},
			{"id": 2, "name": "bicycle"}
		]
	}`)

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	cache, err := NewCategoryCache(dir, server.URL+"/annotations.zip")
	require.NoError(t, err)

	names, err := cache.Names(context.Background())
	require.NoError(t, err)
	// Ordered by category id, not archive order.
	assert.Equal(t, []string{"person", "bicycle", "car"}, names)
	assert.EqualValues(t, 1, hits.Load())

	// The names are now cached as a text file; no second download.
	_, err = os.Stat(filepath.Join(dir, categoryFileName))
	require.NoError(t, err)
	again, err := cache.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, names, again)
	assert.EqualValues(t, 1, hits.Load())

	// The temporary archive is cleaned up.
	_, err = os.Stat(filepath.Join(dir, annotationsTempName))
	assert.True(t, os.IsNotExist(err))
}

func TestCategoryCacheUsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, categoryFileName),
		[]byte("person\nbicycle\n"), 0o644))

	// Unreachable URL proves the cached file short-circuits the download.
	cache, err := NewCategoryCache(dir, "http://127.0.0.1:1/annotations.zip")
	require.NoError(t, err)

	names, err := cache.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "bicycle"}, names)
}

func TestCategoryCacheClassName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, categoryFileName),
		[]byte("person\nbicycle\ncar\n"), 0o644))

	cache, err := NewCategoryCache(dir, "http://127.0.0.1:1/annotations.zip")
	require.NoError(t, err)

	name, err := cache.ClassName(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "person", name)

	name, err = cache.ClassName(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "car", name)

	// Background and out-of-range indices are rejected.
	_, err = cache.ClassName(context.Background(), 0)
	assert.Error(t, err)
	_, err = cache.ClassName(context.Background(), 4)
	assert.Error(t, err)
}

func TestCategoryCacheDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cache, err := NewCategoryCache(t.TempDir(), server.URL+"/annotations.zip")
	require.NoError(t, err)

	_, err = cache.Names(context.Background())
	var derr *DownloadError
	assert.ErrorAs(t, err, &derr)
}

func TestCategoryCacheMissingInstancesEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("annotations/captions_val2017.json")
	require.NoError(t, err)
	_, err = w.Write([]byte("{}"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	cache, err := NewCategoryCache(t.TempDir(), server.URL+"/annotations.zip")
	require.NoError(t, err)

	_, err = cache.Names(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instances_val2017.json")
}
