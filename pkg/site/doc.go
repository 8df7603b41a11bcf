// Package site knows the markup of the mirrored site.
//
// ListingExtractor feeds the crawler with item links and the next listing
// page. ItemParser turns an item page into models.ItemDetails, and
// BestQuality chooses which of its downloads to mirror.
package site
