package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Candidate is a feed entry that has not been checked against the catalog yet.
type Candidate struct {
	Title     string
	Permalink string
}

// ParseFeed decodes an RSS payload into candidates in feed order. Entries without a
// title or link are dropped; relative links are resolved against base.
func ParseFeed(raw []byte, base string) ([]Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &ParseError{What: "feed", URL: base, Err: err}
	}
	if feed.FeedType != "rss" {
		return nil, &ParseError{What: "feed", URL: base, Err: fmt.Errorf("expected rss channel, got %q", feed.FeedType)}
	}

	out := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := resolveURL(base, item.Link)
		if title == "" || link == "" {
			continue
		}
		out = append(out, Candidate{Title: title, Permalink: link})
	}
	return out, nil
}

// resolveURL makes href absolute against base. It returns "" for blank or
// unparseable input, and href unchanged when base is empty or invalid.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil || b.Scheme == "" {
		return u.String()
	}
	return b.ResolveReference(u).String()
}
