package site

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediamirror/pkg/crawler"
)

const (
	itemLinkSelector = "a.thumbnail-link"
	nextPageSelector = "a.next"
)

// ListingExtractor reads the site's listing pages.
type ListingExtractor struct{}

var _ crawler.LinkExtractor = ListingExtractor{}

// Extract returns the item links and the next page link of a listing page.
// Links are resolved against the scheme and host of baseURL; the host in a
// protocol-relative next link is ignored.
func (ListingExtractor) Extract(body []byte, baseURL string) (*crawler.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, err := siteRoot(baseURL)
	if err != nil {
		return nil, err
	}

	listing := &crawler.Listing{}
	doc.Find(itemLinkSelector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			listing.Items = append(listing.Items, onSite(base, href))
		}
	})
	if href, ok := doc.Find(nextPageSelector).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		listing.Next = onSite(base, href)
	}
	return listing, nil
}

// siteRoot returns scheme://host/ of raw.
func siteRoot(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}

// onSite places href's path and query on base's host.
func onSite(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return strings.TrimRight(base.String(), "/") + href
	}
	ref.Scheme = ""
	ref.Host = ""
	ref.User = nil
	if !strings.HasPrefix(ref.Path, "/") {
		ref.Path = "/" + ref.Path
	}
	return base.ResolveReference(ref).String()
}

// absolute keeps absolute http(s) links and places the rest on base's host.
func absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return onSite(base, href)
}
