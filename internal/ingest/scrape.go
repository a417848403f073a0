package ingest

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"moviehub/pkg/models"
	"moviehub/pkg/utils"
)

// Scraper turns a detail page into a ScrapedItem using fixed selectors.
type Scraper struct {
	Source    Source
	Selectors utils.Selectors
}

func NewScraper(src Source, sel utils.Selectors) *Scraper {
	return &Scraper{Source: src, Selectors: sel}
}

// Scrape fetches the candidate's permalink and extracts its fields. A page without
// a title element keeps the feed title.
func (s *Scraper) Scrape(ctx context.Context, c Candidate) (models.ScrapedItem, error) {
	raw, err := s.Source.FetchPage(ctx, c.Permalink)
	if err != nil {
		return models.ScrapedItem{}, err
	}
	item, err := ParseDetail(raw, c.Permalink, s.Selectors)
	if err != nil {
		return models.ScrapedItem{}, err
	}
	if item.Title == "" {
		item.Title = c.Title
	}
	return item, nil
}

// ParseDetail extracts a ScrapedItem from raw HTML. Selectors that match nothing
// leave their field nil; URL attributes are resolved against pageURL.
func ParseDetail(raw []byte, pageURL string, sel utils.Selectors) (models.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return models.ScrapedItem{}, &ParseError{What: "detail", URL: pageURL, Err: err}
	}

	item := models.ScrapedItem{
		Title:           models.Deref(text(doc, sel.Title)),
		PrimaryMediaURL: urlAttr(doc, sel.Player, "src", pageURL),
		TrailerURL:      urlAttr(doc, sel.Trailer, "src", pageURL),
		GenreLabels:     texts(doc, sel.Genres),
		Duration:        text(doc, sel.Duration),
		ReleaseYear:     text(doc, sel.ReleaseYear),
		RatingLabel:     text(doc, sel.Rating),
		Synopsis:        text(doc, sel.Synopsis),
		ThumbnailURL:    urlAttr(doc, sel.Thumbnail, "content", pageURL),
	}
	return item, nil
}

func first(doc *goquery.Document, selector string) *goquery.Selection {
	if strings.TrimSpace(selector) == "" {
		return nil
	}
	s := doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	return s
}

func text(doc *goquery.Document, selector string) *string {
	s := first(doc, selector)
	if s == nil {
		return nil
	}
	return nonBlank(collapseSpace(s.Text()))
}

func texts(doc *goquery.Document, selector string) []string {
	out := []string{}
	if strings.TrimSpace(selector) == "" {
		return out
	}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v := collapseSpace(s.Text()); v != "" {
			out = append(out, v)
		}
	})
	return out
}

func urlAttr(doc *goquery.Document, selector, attr, pageURL string) *string {
	s := first(doc, selector)
	if s == nil {
		return nil
	}
	v, ok := s.Attr(attr)
	if !ok {
		return nil
	}
	return nonBlank(resolveURL(pageURL, v))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonBlank(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
