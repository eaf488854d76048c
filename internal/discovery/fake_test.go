package discovery

import (
	"context"
	"net/http"
	"sync"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// fakeFetcher serves canned pages keyed by URL and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	ssl      map[string]bool
	requests []string
	settings []crawler.FetchSettings
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, ssl: map[string]bool{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, opts ...crawler.FetchOption) crawler.FetchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, url)
	f.settings = append(f.settings, crawler.ApplyFetchOptions(crawler.FetchSettings{MaxRetry: 3, Timeout: 30}, opts...))
	if f.ssl[url] {
		return crawler.FetchOutcome{Status: crawler.FetchSSLBlocked}
	}
	body, ok := f.pages[url]
	if !ok {
		return crawler.FetchOutcome{Status: crawler.FetchNotFound, Result: crawler.FetchResult{URL: url, StatusCode: http.StatusNotFound}}
	}
	return crawler.FetchOutcome{
		Status: crawler.FetchOK,
		Result: crawler.FetchResult{URL: url, StatusCode: http.StatusOK, Body: []byte(body)},
	}
}

func (f *fakeFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}
