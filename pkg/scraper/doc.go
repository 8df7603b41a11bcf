// Package scraper mirrors the members area of a site into a local library.
//
// A Scraper walks the listing through a LinkSource and, for every item
// page it yields:
//   - skips items whose video is already in the library unless forced
//   - fetches and parses the item page, then applies the optional filter
//   - stores the page and its extracted details in the item folder
//   - downloads the best quality video with resume support
//
// Failures of a single item are counted and logged; the run carries on with
// the next item. Authentication failures, crawl errors and cancellation end
// the run.
//
// Usage:
//
//	s, err := scraper.New(scraper.Deps{
//	    Session:    sess,
//	    Pages:      exec,
//	    Links:      crawler.New(exec, site.ListingExtractor{}, crawlOpts, log),
//	    Parser:     site.ItemParser{},
//	    Downloader: dl,
//	    Library:    lib,
//	    Metadata:   metadata.NewWriter(lib, metadata.DefaultOptions()),
//	}, scraper.Options{VideoLimit: 10}, log)
//	if err != nil {
//	    return err
//	}
//	summary, err := s.Run(ctx)
//
// Rebuild regenerates details.json for every library item from its cached
// page without any network access.
package scraper
