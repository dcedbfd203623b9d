package cleaner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Markers the documentation site's embed script looks for in proxied API
// reference pages.
const (
	customHeadMeta = `<meta name="custom-head"/>`
	embedTopID     = "embed-top-body"
	embedBottomID  = "embed-bottom-body"
)

// InjectEmbedMarkers adds the site's embed hooks to an HTML page: a
// custom-head meta tag at the end of <head>, and empty marker divs as the
// first and last children of <body>. Markers already present are not
// duplicated.
func InjectEmbedMarkers(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("cleaner: parse page: %w", err)
	}

	if doc.Find(`meta[name="custom-head"]`).Length() == 0 {
		doc.Find("head").AppendHtml(customHeadMeta)
	}

	body := doc.Find("body")
	if doc.Find("#"+embedTopID).Length() == 0 {
		body.PrependHtml(`<div id="` + embedTopID + `"></div>`)
	}
	if doc.Find("#"+embedBottomID).Length() == 0 {
		body.AppendHtml(`<div id="` + embedBottomID + `"></div>`)
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("cleaner: render page: %w", err)
	}
	return out, nil
}
