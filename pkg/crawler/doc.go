// Package crawler enumerates item links from a paginated listing.
//
// Links returns a range-over-func sequence. Pages are fetched on demand, so
// a consumer that stops early never triggers further requests. The crawl
// ends at the last page, at a page or item limit, or when a next-page link
// points back to a page already seen.
package crawler
