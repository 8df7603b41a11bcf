package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/internal/downloader"
	"mediamirror/pkg/crawler"
	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/fetch"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/metadata"
	"mediamirror/pkg/retry"
	"mediamirror/pkg/session"
	"mediamirror/pkg/site"
	"mediamirror/pkg/storage"
)

type fakeItem struct {
	slug      string
	title     string
	tags      []string
	downloads bool
	missing   bool
	// videoGone makes the item's download links answer 404.
	videoGone bool
}

// fakeSite serves a two page listing, item pages and their videos.
type fakeSite struct {
	items       []fakeItem
	loginStatus int

	mu        sync.Mutex
	pageHits  map[string]int
	fileHits  []string
	videoSize int
}

func newFakeSite(items ...fakeItem) *fakeSite {
	return &fakeSite{
		items:       items,
		loginStatus: http.StatusOK,
		pageHits:    make(map[string]int),
		videoSize:   4096,
	}
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/login":
		w.WriteHeader(s.loginStatus)
	case path == "/videos":
		s.listing(w, r.URL.Query().Get("page"))
	case strings.HasPrefix(path, "/videos/"):
		s.itemPage(w, strings.TrimPrefix(path, "/videos/"))
	case strings.HasPrefix(path, "/files/"):
		for _, it := range s.items {
			if it.videoGone && strings.HasPrefix(path, "/files/"+it.slug+"-") {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
		}
		if r.Method == http.MethodGet {
			s.mu.Lock()
			s.fileHits = append(s.fileHits, path)
			s.mu.Unlock()
		}
		http.ServeContent(w, r, "video.mp4", time.Time{}, bytes.NewReader(bytes.Repeat([]byte("v"), s.videoSize)))
	default:
		http.NotFound(w, r)
	}
}

// listing puts the first two items on page one and the rest on page two.
func (s *fakeSite) listing(w http.ResponseWriter, page string) {
	items, next := s.items, ""
	if page == "" && len(items) > 2 {
		items, next = items[:2], `<a class="next" href="/videos?page=2">Next</a>`
	} else if page == "2" {
		items = items[2:]
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	for _, it := range items {
		fmt.Fprintf(&b, `<a class="thumbnail-link" href="/videos/%s">x</a>`, it.slug)
	}
	b.WriteString(next)
	b.WriteString("</body></html>")
	fmt.Fprint(w, b.String())
}

func (s *fakeSite) itemPage(w http.ResponseWriter, slug string) {
	s.mu.Lock()
	s.pageHits[slug]++
	s.mu.Unlock()

	for _, it := range s.items {
		if it.slug != slug {
			continue
		}
		if it.missing {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<html><body><h1>%s</h1>", it.title)
		b.WriteString(`<div class="video-tags-wrapper">`)
		for _, tag := range it.tags {
			fmt.Fprintf(&b, `<a href="/tags/%s">%s</a>`, strings.ToLower(tag), tag)
		}
		b.WriteString(`</div>`)
		if it.downloads {
			fmt.Fprintf(&b, `<div class="downloads-link-wrapper"><a href="/files/%[1]s-360.mp4">SD 360p</a><a href="/files/%[1]s-1080.mp4">HD 1080p</a><a href="/files/%[1]s-720.mp4">HD 720p</a></div>`, slug)
		}
		b.WriteString("</body></html>")
		fmt.Fprint(w, b.String())
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (s *fakeSite) hits(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageHits[slug]
}

func (s *fakeSite) files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fileHits...)
}

type harness struct {
	scraper *Scraper
	library *storage.Manager
	root    string
	log     *logger.TestLogger
}

func newHarness(t *testing.T, fs *fakeSite, opts Options, prepare func(root string)) *harness {
	t.Helper()
	ts := httptest.NewServer(fs)
	t.Cleanup(ts.Close)

	root := t.TempDir()
	if prepare != nil {
		prepare(root)
	}
	lib, err := storage.NewManager(root)
	require.NoError(t, err)

	log := logger.NewTestLogger()
	sess := session.New(session.Options{
		MembersURL: ts.URL + "/members",
		LoginURL:   ts.URL + "/login",
	}, log)
	exec := fetch.New(sess, fetch.Options{Attempts: 3}, log).WithBackoff(&retry.ConstantBackoff{})

	s, err := New(Deps{
		Session:    sess,
		Pages:      exec,
		Links:      crawler.New(exec, site.ListingExtractor{}, crawler.Options{StartURL: ts.URL + "/videos"}, log),
		Parser:     site.ItemParser{},
		Downloader: downloader.New(sess, exec, downloader.Options{Attempts: 3}, log),
		Library:    lib,
		Metadata:   metadata.NewWriter(lib, metadata.DefaultOptions()),
	}, opts, log)
	require.NoError(t, err)

	return &harness{scraper: s, library: lib, root: root, log: log}
}

func threeItems() *fakeSite {
	return newFakeSite(
		fakeItem{slug: "alpha", title: "Alpha", tags: []string{"Outdoor"}, downloads: true},
		fakeItem{slug: "beta", title: "Beta", tags: []string{"Indoor"}, downloads: true},
		fakeItem{slug: "gamma", title: "Gamma", downloads: true},
	)
}

func TestRunMirrorsEveryItem(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{}, nil)

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, int64(3*fs.videoSize), summary.Bytes)
	assert.Zero(t, summary.Failed)
	assert.ElementsMatch(t, []string{
		"/files/alpha-1080.mp4",
		"/files/beta-1080.mp4",
		"/files/gamma-1080.mp4",
	}, fs.files())

	for _, folder := range []string{"videos_alpha", "videos_beta", "videos_gamma"} {
		assert.True(t, h.library.HasVideo(folder), folder)
		assert.FileExists(t, filepath.Join(h.root, folder, "video_page.html"))
		assert.FileExists(t, filepath.Join(h.root, folder, "details.json"))
		assert.NoFileExists(t, filepath.Join(h.root, folder, folder+".mp4"+downloader.PartSuffix))
	}
	assert.Equal(t, 3, h.library.GetDownloadedCount())

	details, err := metadata.NewWriter(h.library, metadata.DefaultOptions()).LoadDetails("videos_alpha")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", details.Title)
	assert.Equal(t, []string{"Outdoor"}, details.TagNames())
}

func TestRunSkipsExistingVideos(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{}, func(root string) {
		dir := filepath.Join(root, "videos_beta")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "videos_beta.mp4"), []byte("old"), 0644))
	})

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Existing)
	assert.Equal(t, 2, summary.Completed)
	assert.Zero(t, fs.hits("beta"), "existing item page is not fetched")

	got, err := os.ReadFile(filepath.Join(h.root, "videos_beta", "videos_beta.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestRunForceDownloadRevisitsExisting(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{ForceDownload: true}, func(root string) {
		dir := filepath.Join(root, "videos_alpha")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "videos_alpha.mp4"), []byte("stale"), 0644))
	})

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Existing)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 1, fs.hits("alpha"))
}

func TestRunStopsAtVideoLimit(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{VideoLimit: 2}, nil)

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Completed)
	assert.Zero(t, fs.hits("gamma"))
	assert.True(t, h.log.HasMessage("Video limit reached"))
}

func TestRunMetadataOnly(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{MetadataOnly: true}, nil)

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.MetadataOnly)
	assert.Zero(t, summary.Completed)
	assert.Empty(t, fs.files())
	assert.FileExists(t, filepath.Join(h.root, "videos_gamma", "details.json"))
	assert.False(t, h.library.HasVideo("videos_gamma"))
}

func TestRunAppliesFilter(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{Filter: `"Outdoor" in tags`}, nil)

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, []string{"/files/alpha-1080.mp4"}, fs.files())
	assert.NoDirExists(t, filepath.Join(h.root, "videos_beta"))
}

func TestRunSkipsUnavailableItems(t *testing.T) {
	fs := newFakeSite(
		fakeItem{slug: "gone", missing: true},
		fakeItem{slug: "photos-only", title: "Photos", downloads: false},
		fakeItem{slug: "ok", title: "Fine", downloads: true},
	)
	h := newHarness(t, fs, Options{}, nil)

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Completed)
	assert.FileExists(t, filepath.Join(h.root, "videos_photos_only", "details.json"), "metadata is kept without a video")
	assert.True(t, h.log.HasMessage("Item page offers no video download"))
}

func TestRunSkipsVideoMissingOnServer(t *testing.T) {
	fs := newFakeSite(
		fakeItem{slug: "dead", title: "Dead link", downloads: true, videoGone: true},
		fakeItem{slug: "ok", title: "Fine", downloads: true},
	)
	h := newHarness(t, fs, Options{}, nil)

	summary, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Completed)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, []string{"/files/ok-1080.mp4"}, fs.files(), "the missing video is never fetched")
	assert.False(t, h.library.HasVideo("videos_dead"))
	assert.NoFileExists(t, filepath.Join(h.root, "videos_dead", "videos_dead.mp4"+downloader.PartSuffix))
	assert.FileExists(t, filepath.Join(h.root, "videos_dead", "details.json"))
	assert.True(t, h.library.HasVideo("videos_ok"))
	assert.True(t, h.log.HasMessage("Skipping download"))
}

func TestRunLoginFailure(t *testing.T) {
	fs := threeItems()
	fs.loginStatus = http.StatusUnauthorized
	h := newHarness(t, fs, Options{}, nil)

	_, err := h.scraper.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuthFailed))
	assert.Zero(t, fs.hits("alpha"))
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, threeItems(), Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.scraper.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadFilter(t *testing.T) {
	_, err := New(Deps{}, Options{Filter: "views >"}, nil)
	assert.Error(t, err)
}

func TestRebuildFromCachedPages(t *testing.T) {
	fs := threeItems()
	h := newHarness(t, fs, Options{MetadataOnly: true}, nil)
	_, err := h.scraper.Run(context.Background())
	require.NoError(t, err)

	w := metadata.NewWriter(h.library, metadata.DefaultOptions())
	before, err := w.LoadDetails("videos_beta")
	require.NoError(t, err)

	// Strip the details down to the URL; the folder without a page is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "videos_beta", "details.json"), []byte(`{"url": "`+before.URL+`"}`), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(h.root, "no_page"), 0755))

	n, err := h.scraper.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	after, err := w.LoadDetails("videos_beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta", after.Title)
	assert.Equal(t, before.URL, after.URL)
	assert.Equal(t, []string{"Indoor"}, after.TagNames())
}

func TestRebuildReportsUnparseablePages(t *testing.T) {
	h := newHarness(t, newFakeSite(), Options{}, func(root string) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "broken", "video_page.html"), []byte("<p>no title</p>"), 0644))
	})

	n, err := h.scraper.Rebuild(context.Background())
	assert.Zero(t, n)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}
