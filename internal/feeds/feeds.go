// Package feeds reads RSS and Atom feeds directly, for feed widgets that
// point at a URL instead of a Home Assistant feedreader entity.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/izdev-digital/e-paper-dashboard-sub000/internal/aggregator"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxItems = 20
)

type Fetcher struct {
	parser   *gofeed.Parser
	maxItems int
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = "izBoard"
	return &Fetcher{parser: p, maxItems: DefaultMaxItems}
}

// Fetch returns the feed's entries, newest first.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]aggregator.FeedEntry, error) {
	u, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("feed %q: only http and https URLs are supported", feedURL)
	}
	parsed, err := f.parser.ParseURLWithContext(u.String(), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", u.Host, err)
	}

	out := make([]aggregator.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil || (item.Title == "" && item.Link == "") {
			continue
		}
		e := aggregator.FeedEntry{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: item.Description,
		}
		if e.Description == "" {
			e.Description = item.Content
		}
		switch {
		case item.PublishedParsed != nil:
			e.Published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			e.Published = *item.UpdatedParsed
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	if len(out) > f.maxItems {
		out = out[:f.maxItems]
	}
	return out, nil
}
