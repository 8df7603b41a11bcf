package site

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/models"
)

const (
	titleSelector        = "h1"
	descriptionSelector  = "div.description-content"
	descriptionFallback  = "div.video-description"
	releasedSelector     = "span.info-item.date"
	studioSelector       = "span.studio-name"
	directorSelector     = "span.info-item.director"
	infoItemsSelector    = "div.info-items"
	bannerSelector       = "img#titleImage"
	thumbnailSelector    = "video.video-js.vjs-default-skin"
	castSelector         = "div.video-cast a.thumbnail-link"
	castImageSelector    = "img.thumbnail-img"
	tagsSelector         = "div.video-tags-wrapper a"
	downloadsSelector    = "div.downloads-link-wrapper a"
	photoGallerySelector = "div.main-section.video-gallery a"
)

// View and like counts sit in commented-out markup inside the info block.
var (
	viewsRe = regexp.MustCompile(`(?i)<span class="info-item views"><i [- a-z="]+></i>\s*([0-9.km]+)\s*views</span>`)
	likesRe = regexp.MustCompile(`(?i)<span class="like-count">([0-9.km]+)</span>`)
)

// ItemFolderName derives the library folder for an item page URL: the last
// two path segments joined by "_", with "-" replaced by "_".
func ItemFolderName(pageURL string) string {
	parts := strings.Split(strings.TrimRight(pageURL, "/"), "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.ReplaceAll(strings.Join(parts, "_"), "-", "_")
}

// ItemParser extracts ItemDetails from item pages.
type ItemParser struct {
	// Now supplies "today" for relative release dates.
	Now func() time.Time
}

// Parse reads an item page fetched from pageURL. A page without a title is
// not an item page and yields a parsing error. Fields that are missing or
// unreadable are left empty.
func (p ItemParser) Parse(body []byte, pageURL string) (*models.ItemDetails, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to read item page", err)
	}
	base, err := siteRoot(pageURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "bad item page url", err)
	}

	title := doc.Find(titleSelector).First()
	if title.Length() == 0 {
		e := errs.New(errs.ErrorTypeParsing, "item page has no title")
		e.URL = pageURL
		return nil, e
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	d := &models.ItemDetails{
		URL:        pageURL,
		Title:      flatten(title),
		Studio:     flatten(doc.Find(studioSelector).First()),
		Director:   director(doc),
		Cast:       []models.CastMember{},
		Tags:       links(doc, base, tagsSelector),
		Downloads:  links(doc, base, downloadsSelector),
		PhotoLinks: []string{},
	}

	desc := doc.Find(descriptionSelector).First()
	if desc.Length() == 0 {
		desc = doc.Find(descriptionFallback).First()
	}
	d.Description = flatten(desc)

	if raw := flatten(doc.Find(releasedSelector).First()); raw != "" {
		if t, err := ParseReleaseDate(raw, now()); err == nil {
			d.Released = t.Format(DateLayout)
		}
	}

	comments := commentText(doc.Find(infoItemsSelector).First())
	d.Views = countFrom(viewsRe, comments)
	d.Likes = countFrom(likesRe, comments)

	d.BannerImage, _ = doc.Find(bannerSelector).First().Attr("src")
	d.ThumbnailImage, _ = doc.Find(thumbnailSelector).First().Attr("poster")

	doc.Find(castSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name, _ := s.Attr("title")
		thumb, _ := s.Find(castImageSelector).First().Attr("src")
		d.Cast = append(d.Cast, models.CastMember{
			Page:      onSite(base, href),
			Name:      name,
			Thumbnail: thumb,
		})
	})

	for _, l := range links(doc, base, photoGallerySelector) {
		d.PhotoLinks = append(d.PhotoLinks, l.Link)
	}

	return d, nil
}

func director(doc *goquery.Document) string {
	text := flatten(doc.Find(directorSelector).First())
	if strings.HasPrefix(strings.ToLower(text), "director") {
		text = strings.TrimSpace(strings.TrimLeft(text[len("director"):], ":"))
	}
	return text
}

func links(doc *goquery.Document, base *url.URL, selector string) []models.Link {
	out := []models.Link{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = append(out, models.Link{Item: flatten(s), Link: absolute(base, href)})
	})
	return out
}

// flatten returns the text under s. Text nodes are trimmed and joined with
// spaces, and every paragraph ends a line. Comments are skipped.
func flatten(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text == "" {
				return
			}
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte(' ')
			}
			b.WriteString(text)
		case html.ElementNode, html.DocumentNode:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			if n.Type == html.ElementNode && n.Data == "p" {
				b.WriteByte('\n')
			}
		}
	}
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// commentText concatenates every comment below s.
func commentText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}

func countFrom(re *regexp.Regexp, text string) int64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := ParseCount(m[1])
	if err != nil {
		return 0
	}
	return n
}
