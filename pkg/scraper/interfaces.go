package scraper

import (
	"context"
	"iter"

	"mediamirror/internal/downloader"
	"mediamirror/pkg/models"
	"mediamirror/pkg/session"
)

// Authenticator brings the session to an authenticated state.
type Authenticator interface {
	RestoreOrLogin(ctx context.Context) error
}

// PageFetcher retrieves item pages with retries.
type PageFetcher interface {
	Get(ctx context.Context, url string) (*session.Response, error)
}

// LinkSource enumerates item page links.
type LinkSource interface {
	Links(ctx context.Context) iter.Seq2[string, error]
}

// ItemParser extracts item details from a page.
type ItemParser interface {
	Parse(body []byte, pageURL string) (*models.ItemDetails, error)
}

// VideoDownloader fetches a video into the library.
type VideoDownloader interface {
	Download(ctx context.Context, url, dest string) (*downloader.Result, error)
	Progress() (written, total int64, active bool)
}
