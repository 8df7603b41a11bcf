package crawler

import (
	"context"
	"iter"
	"net/http"

	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/session"
)

// Listing is what one listing page contributes to a crawl.
type Listing struct {
	// Items are absolute item URLs in page order.
	Items []string
	// Next is the following listing page, empty on the last one.
	Next string
}

// LinkExtractor reads a listing page. baseURL is the page's final URL.
type LinkExtractor interface {
	Extract(body []byte, baseURL string) (*Listing, error)
}

// Fetcher retrieves listing pages.
type Fetcher interface {
	Get(ctx context.Context, url string) (*session.Response, error)
}

// Options bounds a crawl. Zero limits mean unbounded.
type Options struct {
	StartURL  string
	PageLimit int
	ItemLimit int
}

// Crawler walks a paginated listing.
type Crawler struct {
	fetcher   Fetcher
	extractor LinkExtractor
	opts      Options
	logger    logger.Logger
}

// New creates a Crawler.
func New(fetcher Fetcher, extractor LinkExtractor, opts Options, log logger.Logger) *Crawler {
	return &Crawler{
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
		logger:    logger.OrNop(log).WithField("component", "crawler"),
	}
}

// Links lazily yields item links, fetching the next listing page only once
// the previous one is used up. Each call starts a fresh crawl. An error is
// yielded once and ends the sequence.
func (c *Crawler) Links(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		visited := make(map[string]bool)
		pages, items := 0, 0
		next := c.opts.StartURL

		for next != "" {
			if c.opts.PageLimit > 0 && pages >= c.opts.PageLimit {
				c.logger.InfoWithFields("Page limit reached", map[string]interface{}{"limit": c.opts.PageLimit})
				return
			}
			if c.opts.ItemLimit > 0 && items >= c.opts.ItemLimit {
				c.logger.InfoWithFields("Item limit reached", map[string]interface{}{"limit": c.opts.ItemLimit})
				return
			}
			if visited[next] {
				c.logger.WarnWithFields("Listing loops back to a visited page", map[string]interface{}{"url": next})
				return
			}
			visited[next] = true

			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			listing, err := c.page(ctx, next)
			if err != nil {
				yield("", err)
				return
			}
			pages++
			logger.LogCrawlProgress(c.logger, pages, items+len(listing.Items))

			for _, link := range listing.Items {
				if c.opts.ItemLimit > 0 && items >= c.opts.ItemLimit {
					c.logger.InfoWithFields("Item limit reached", map[string]interface{}{"limit": c.opts.ItemLimit})
					return
				}
				items++
				if !yield(link, nil) {
					return
				}
			}
			next = listing.Next
		}
		c.logger.DebugWithFields("Reached the last listing page", map[string]interface{}{
			"pages": pages,
			"items": items,
		})
	}
}

func (c *Crawler) page(ctx context.Context, url string) (*Listing, error) {
	c.logger.DebugWithFields("Fetching listing page", map[string]interface{}{"url": url})

	resp, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, errs.ServerError(url, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.NotFound(url, resp.StatusCode)
	}

	base := resp.FinalURL
	if base == "" {
		base = url
	}
	listing, err := c.extractor.Extract(resp.Body, base)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to parse listing page "+url, err)
	}
	return listing, nil
}
