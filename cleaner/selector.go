package cleaner

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// SelectFirst returns the outer HTML of the first element matching the
// earliest selector in selectors that matches anything. Invalid selectors
// are skipped. If nothing matches, rawHTML is returned with found=false.
func SelectFirst(rawHTML string, selectors ...string) (out string, found bool) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML, false
	}

	for _, s := range selectors {
		sel, err := cascadia.Parse(s)
		if err != nil {
			continue
		}
		node := cascadia.Query(doc, sel)
		if node == nil {
			continue
		}
		var buf bytes.Buffer
		if err := html.Render(&buf, node); err != nil {
			return rawHTML, false
		}
		return buf.String(), true
	}
	return rawHTML, false
}
