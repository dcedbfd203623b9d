package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripElements removes every element matching any of selectors from the
// HTML fragment. The input is returned unchanged if it cannot be parsed or
// selectors is empty.
func StripElements(fragment string, selectors []string) string {
	if len(selectors) == 0 {
		return fragment
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find(strings.Join(selectors, ", ")).Remove()

	// The parser wraps fragments in html/head/body; return only the body.
	out, err := doc.Find("body").Html()
	if err != nil {
		return fragment
	}
	return out
}
