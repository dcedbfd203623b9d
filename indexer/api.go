package indexer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/redpanda-data/docs-edge/cleaner"
)

// APIDocPaths are the API reference pages indexed per endpoint.
var APIDocPaths = []string{
	"/api/doc/admin/",
	"/api/doc/http-proxy/",
	"/api/doc/schema-registry/",
	"/api/doc/cloud-controlplane/",
	"/api/doc/cloud-dataplane/",
}

// operationSelector matches one rendered API operation.
const operationSelector = `turbo-frame[id^="operation-"]`

// EndpointRecord is the search record for one API operation.
type EndpointRecord struct {
	ObjectID    string   `json:"objectID"`
	Product     string   `json:"product"`
	Version     string   `json:"version,omitempty"`
	Type        string   `json:"type"`
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url"`
	Tags        []string `json:"_tags"`
}

// ExtractEndpoints returns one record per operation on a rendered API
// reference page. Operations without a method or path are skipped.
func ExtractEndpoints(rawHTML, pageURL string) ([]EndpointRecord, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("indexer: parse %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("indexer: parse html: %w", err)
	}

	version := cleaner.MetaFromDocument(doc).Version
	tag := "Self-Managed"
	if version != "" {
		tag += " v" + version
	}
	origin := u.Scheme + "://" + u.Host

	var records []EndpointRecord
	doc.Find(operationSelector).Each(func(_ int, frame *goquery.Selection) {
		title := frame.Find("h2.operation-title").First()
		method := strings.TrimSpace(frame.Find(".operation-verb").First().Text())
		path := strings.TrimSpace(frame.Find(".operation-path").First().Text())
		if method == "" || path == "" {
			return
		}
		anchor, _ := title.Find("a").First().Attr("href")

		records = append(records, EndpointRecord{
			ObjectID:    u.Path + anchor,
			Product:     "Self-Managed",
			Version:     version,
			Type:        "Endpoint",
			Method:      method,
			Path:        path,
			Title:       strings.TrimSpace(title.Text()),
			Description: strings.TrimSpace(frame.Find(".markdown-content p").First().Text()),
			URL:         origin + anchor,
			Tags:        []string{tag},
		})
	})
	return records, nil
}

// IndexAPI renders every API reference page and saves one record per
// endpoint. Pages that fail to render are logged and skipped.
func (r *Runner) IndexAPI(ctx context.Context) (int, error) {
	base := strings.TrimSuffix(r.cfg.DocsBaseURL, "/")
	pages := make([]string, len(APIDocPaths))
	for i, p := range APIDocPaths {
		pages[i] = base + p
	}

	records, err := collect(ctx, r, pages, func(ctx context.Context, pageURL string) ([]EndpointRecord, error) {
		res, err := r.renderPage(ctx, pageURL, operationSelector)
		if err != nil {
			return nil, err
		}
		return ExtractEndpoints(res.HTML, res.FinalURL)
	})
	if err != nil {
		return 0, err
	}
	return r.save(ctx, "api", toObjects(records))
}
