package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/pkg/models"
	"mediamirror/pkg/storage"
)

func newWriter(t *testing.T, opts Options) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	lib, err := storage.NewManager(root)
	require.NoError(t, err)
	return NewWriter(lib, opts), root
}

func TestDumpWritesPageAndDetails(t *testing.T) {
	w, root := newWriter(t, DefaultOptions())
	details := &models.ItemDetails{
		URL:   "https://example.com/videos/one",
		Title: "One",
		Tags:  []models.Link{{Item: "Outdoor", Link: "https://example.com/tags/outdoor"}},
	}

	require.NoError(t, w.Dump("videos_one", []byte("<h1>One</h1>"), details))

	page, err := os.ReadFile(filepath.Join(root, "videos_one", "video_page.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>One</h1>", string(page))

	raw, err := os.ReadFile(filepath.Join(root, "videos_one", "details.json"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "\n    \"title\": \"One\""), "indented by four spaces")

	loaded, err := w.LoadDetails("videos_one")
	require.NoError(t, err)
	assert.Equal(t, details.Title, loaded.Title)
	assert.Equal(t, details.Tags, loaded.Tags)

	cached, err := w.LoadPage("videos_one")
	require.NoError(t, err)
	assert.Equal(t, page, cached)
}

func TestDumpHonorsOptions(t *testing.T) {
	w, root := newWriter(t, Options{SavePage: false, SaveDetails: true, DetailsFilename: "info.json"})
	require.NoError(t, w.Dump("item", []byte("page"), &models.ItemDetails{Title: "x"}))

	assert.NoFileExists(t, filepath.Join(root, "item", "video_page.html"))
	assert.FileExists(t, filepath.Join(root, "item", "info.json"))
	assert.Equal(t, "video_page.html", w.Options().PageFilename)
}

func TestLoadMissing(t *testing.T) {
	w, _ := newWriter(t, DefaultOptions())
	_, err := w.LoadDetails("nothing")
	assert.Error(t, err)
	_, err = w.LoadPage("nothing")
	assert.Error(t, err)
}
