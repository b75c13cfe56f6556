package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	assert.Equal(t, "2019-08", DateOf("catalog-2019-08.txt"))
	assert.Equal(t, "2017-01", DateOf("2017-01-catalog.txt"))
	assert.Equal(t, "", DateOf("catalog.txt"))
	assert.Equal(t, "", DateOf("catalog-2019-13.txt"), "month 13 is not a period")
	assert.Equal(t, "", DateOf("catalog-2019-00.txt"))
}

func TestDiscoverFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"catalog-2020-01.txt", "catalog-2019-08.txt", "notes.md", "catalog-2019-08.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive", "catalog-2018-01.txt"), []byte("x"), 0o644))

	docs, err := Discover(dir, ".txt")
	require.NoError(t, err)
	require.Len(t, docs, 2, "non-matching extensions and sub-directories are skipped")
	assert.Equal(t, "catalog-2019-08.txt", docs[0].Name)
	assert.Equal(t, "2019-08", docs[0].CatalogDate)
	assert.Equal(t, "catalog-2020-01.txt", docs[1].Name)
}

func TestDiscoverNormalizesExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog-2019-08.txt"), []byte("x"), 0o644))

	docs, err := Discover(dir, "txt")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestFromPaths(t *testing.T) {
	docs := FromPaths([]string{"/data/catalog-2019-08.txt", "plain.txt"})
	require.Len(t, docs, 2)
	assert.Equal(t, "catalog-2019-08.txt", docs[0].Name)
	assert.Equal(t, "2019-08", docs[0].CatalogDate)
	assert.Equal(t, "", docs[1].CatalogDate)
}

func TestReadCountsFormFeedPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog-2019-08.txt")
	require.NoError(t, os.WriteFile(path, []byte("page one\fpage two\fpage three"), 0o644))

	text, pages, err := Read(Document{Path: path, Name: "catalog-2019-08.txt"})
	require.NoError(t, err)
	assert.Contains(t, text, "page two")
	assert.Equal(t, 3, pages)
}

func TestReadEstimatesPagesFromLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog-2019-08.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*charsPerPage+100), 0o644))

	_, pages, err := Read(Document{Path: path, Name: "catalog-2019-08.txt"})
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestReadShortTextIsOnePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog-2019-08.txt")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o644))

	_, pages, err := Read(Document{Path: path, Name: "catalog-2019-08.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestReadMissingFile(t *testing.T) {
	_, _, err := Read(Document{Path: filepath.Join(t.TempDir(), "absent.txt")})
	assert.Error(t, err)
}
