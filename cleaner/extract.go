package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Meta is page-level metadata read from the document head.
type Meta struct {
	Title       string
	Description string
	Image       string
	Canonical   string
	// Version is the latest Redpanda version advertised by the page, if any.
	Version string
}

// ExtractMeta reads title, description, Open Graph image, canonical URL and
// the latest-redpanda-version marker from rawHTML. Open Graph values are used
// only when the plain tags are absent.
func ExtractMeta(rawHTML string) Meta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Meta{}
	}
	return MetaFromDocument(doc)
}

// MetaFromDocument is ExtractMeta for an already parsed document.
func MetaFromDocument(doc *goquery.Document) Meta {
	m := Meta{
		Title:       strings.TrimSpace(doc.Find("head title").First().Text()),
		Description: metaContent(doc, `meta[name="description"]`),
		Image:       metaContent(doc, `meta[property="og:image"]`),
		Version:     metaContent(doc, `meta[name="latest-redpanda-version"]`),
	}
	m.Canonical, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")

	if m.Title == "" {
		m.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	if m.Description == "" {
		m.Description = metaContent(doc, `meta[property="og:description"]`)
	}
	return m
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}
