package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Local news</title>
<item><title>Older</title><link>https://news.example/older</link><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>Newer</title><link>https://news.example/newer</link><description>&lt;b&gt;Big&lt;/b&gt; story</description><pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate></item>
<item><description>no title or link</description></item>
</channel></rss>`

func TestFetchSortsNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssDoc))
	}))
	defer srv.Close()

	entries, err := NewFetcher(srv.Client()).Fetch(context.Background(), srv.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "Newer" || entries[0].Link != "https://news.example/newer" || entries[0].Description != "<b>Big</b> story" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Published.Day() != 2 {
		t.Fatalf("unexpected publish date %v", entries[1].Published)
	}
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	for _, u := range []string{"file:///etc/passwd", "ftp://x/feed", "not a url", ""} {
		if _, err := NewFetcher(nil).Fetch(context.Background(), u); err == nil {
			t.Fatalf("expected error for %q", u)
		}
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	if _, err := NewFetcher(srv.Client()).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error")
	}
}
