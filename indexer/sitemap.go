package indexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redpanda-data/docs-edge/render"
)

// maxSitemapDepth bounds nested sitemap indexes.
const maxSitemapDepth = 3

// sitemapIndex represents a sitemap index XML file.
type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// urlset represents a sitemap URL set XML file.
type urlset struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// FetchSitemap returns the page URLs listed by the sitemap at sitemapURL,
// following sitemap indexes. Unreachable child sitemaps are logged and
// skipped; an unreachable root is an error.
func FetchSitemap(ctx context.Context, client *http.Client, sitemapURL string) ([]string, error) {
	return fetchSitemap(ctx, client, sitemapURL, 0)
}

func fetchSitemap(ctx context.Context, client *http.Client, sitemapURL string, depth int) ([]string, error) {
	body, resp, err := render.Get(ctx, client, sitemapURL, "application/xml,text/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer: sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		if depth >= maxSitemapDepth {
			return nil, fmt.Errorf("indexer: sitemap %s: nested too deep", sitemapURL)
		}
		var urls []string
		for _, s := range idx.Sitemaps {
			if s.Loc == "" {
				continue
			}
			child, err := fetchSitemap(ctx, client, s.Loc, depth+1)
			if err != nil {
				slog.Warn("indexer: child sitemap skipped", "url", s.Loc, "error", err)
				continue
			}
			urls = append(urls, child...)
		}
		return urls, nil
	}

	var us urlset
	if err := xml.Unmarshal(body, &us); err != nil {
		return nil, fmt.Errorf("indexer: sitemap %s: %w", sitemapURL, err)
	}
	urls := make([]string, 0, len(us.URLs))
	for _, u := range us.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls, nil
}
